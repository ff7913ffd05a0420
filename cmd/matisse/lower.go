package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"matisse/internal/diag"
	"matisse/internal/driver"
	"matisse/internal/passmgr"
	"matisse/internal/ssa"
)

var lowerCmd = &cobra.Command{
	Use:   "lower [flags] <file.ssa|directory>...",
	Short: "Allocate C variables for every function in the given IR files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLower,
}

func init() {
	lowerCmd.Flags().String("format", "text", "report format (text|json)")
	lowerCmd.Flags().Bool("groups", false, "list the members of every variable group")
	lowerCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
}

var (
	nameColor   = color.New(color.Bold)
	cachedColor = color.New(color.FgCyan)
	errorColor  = color.New(color.FgRed, color.Bold)
	countColor  = color.New(color.FgGreen)
)

func runLower(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "text" && format != "json" {
		return errInvalidFlag("format", format, "text|json")
	}
	showGroups, err := cmd.Flags().GetBool("groups")
	if err != nil {
		return fmt.Errorf("failed to get groups flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	quiet, err := rootBool(cmd, "quiet")
	if err != nil {
		return err
	}
	showTimings, err := rootBool(cmd, "timings")
	if err != nil {
		return err
	}
	uiValue, err := rootString(cmd, "ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	files, err := driver.ExpandPaths(args)
	if err != nil {
		return err
	}
	req, err := buildLowerRequest(cmd, run.manifest, files)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var res *driver.Result
	if format == "text" && shouldUseTUI(mode, quiet) {
		res, err = runLowerWithUI(ctx, fmt.Sprintf("lowering %d files", len(files)), req)
	} else {
		res, err = driver.LowerFiles(ctx, req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case format == "json":
		if err := writeLowerJSON(out, res); err != nil {
			return err
		}
	case !quiet:
		printLowerReport(out, res, showGroups)
	}
	if text := diag.FormatShort(res.Diagnostics(), res.FileSet, withNotes); text != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), text)
	}
	if showTimings {
		printTimings(cmd.ErrOrStderr(), res.Timings)
	}
	if res.HasErrors() {
		return fmt.Errorf("lowering failed")
	}
	return nil
}

// buildLowerRequest merges command line flags over manifest settings.
func buildLowerRequest(cmd *cobra.Command, manifest *projectManifest, files []string) (*driver.Request, error) {
	var lc lowerConfig
	if manifest != nil {
		lc = manifest.Config.Lower
	}

	strategy, err := rootString(cmd, "strategy")
	if err != nil {
		return nil, err
	}
	if !rootChanged(cmd, "strategy") && lc.Strategy != "" {
		strategy = lc.Strategy
	}
	jobs, err := rootInt(cmd, "jobs")
	if err != nil {
		return nil, err
	}
	if !rootChanged(cmd, "jobs") && lc.Jobs > 0 {
		jobs = lc.Jobs
	}
	maxDiags, err := rootInt(cmd, "max-diagnostics")
	if err != nil {
		return nil, err
	}
	noCache, err := rootBool(cmd, "no-cache")
	if err != nil {
		return nil, err
	}
	useCache := !noCache && (lc.Cache == nil || *lc.Cache)

	req := &driver.Request{
		Files:          files,
		Jobs:           jobs,
		MaxDiagnostics: maxDiags,
		Strategy:       strategy,
		Options: passmgr.Options{
			SkipCSSA: lc.SkipCSSA,
		},
	}
	if policy := policyFor(lc.Policy); policy != nil {
		req.Options.Policy = policy
		req.Policy = lc.Policy
	}
	if len(lc.Disable) > 0 {
		req.Options.Recipe = passmgr.Recipe{disablePass(lc.Disable)}
	}
	if useCache {
		cache, err := driver.OpenDiskCache("matisse")
		if err != nil {
			// a missing cache only costs time
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: disk cache unavailable: %v\n", err)
		} else {
			req.Cache = cache
		}
	}
	return req, nil
}

// disablePass applies manifest-wide "disable optimization" directives.
func disablePass(ids []string) passmgr.Pass {
	return passmgr.PassFunc{PassName: "manifest_directives", Fn: func(_ context.Context, body *ssa.Body) error {
		for _, id := range ids {
			body.DisableOptimization(id)
		}
		return nil
	}}
}

func printLowerReport(out io.Writer, res *driver.Result, showGroups bool) {
	for _, unit := range res.Units {
		if len(unit.Functions) == 0 {
			continue
		}
		nameColor.Fprintln(out, unit.Path)
		width := 0
		for _, fr := range unit.Functions {
			width = max(width, len(fr.Name))
		}
		for _, fr := range unit.Functions {
			fmt.Fprintf(out, "  %-*s  ", width, fr.Name)
			if fr.Err != nil {
				errorColor.Fprintln(out, "failed")
				continue
			}
			names := 0
			for _, g := range fr.Groups {
				names += len(g)
			}
			printer.Fprintf(out, "%d names -> ", names)
			countColor.Fprint(out, printer.Sprintf("%d variables", len(fr.Groups)))
			printer.Fprintf(out, "  (merged %d, interfering %d, rejected %d)", fr.Stats.Merged, fr.Stats.Interfering, fr.Stats.PolicyRejected)
			if fr.Cached {
				cachedColor.Fprint(out, "  cached")
			}
			fmt.Fprintln(out)
			if showGroups {
				for _, g := range fr.Groups {
					fmt.Fprintf(out, "    %s\n", strings.Join(g, " "))
				}
			}
		}
	}
}

type jsonFunction struct {
	Name     string     `json:"name"`
	Groups   [][]string `json:"groups,omitempty"`
	Merged   int        `json:"merged"`
	Rejected int        `json:"rejected"`
	Phis     int        `json:"phis"`
	Copies   int        `json:"copies"`
	Cached   bool       `json:"cached,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type jsonUnit struct {
	Path      string         `json:"path"`
	Functions []jsonFunction `json:"functions"`
}

func writeLowerJSON(out io.Writer, res *driver.Result) error {
	units := make([]jsonUnit, 0, len(res.Units))
	for _, unit := range res.Units {
		ju := jsonUnit{Path: unit.Path, Functions: []jsonFunction{}}
		for _, fr := range unit.Functions {
			jf := jsonFunction{
				Name:     fr.Name,
				Groups:   fr.Groups,
				Merged:   fr.Stats.Merged,
				Rejected: fr.Stats.PolicyRejected,
				Phis:     fr.CSSA.Phis,
				Copies:   fr.CSSA.Copies,
				Cached:   fr.Cached,
			}
			if fr.Err != nil {
				jf.Error = fr.Err.Error()
			}
			ju.Functions = append(ju.Functions, jf)
		}
		units = append(units, ju)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(units)
}
