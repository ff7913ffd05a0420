package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"matisse/internal/cfg"
	"matisse/internal/cssa"
	"matisse/internal/diag"
	"matisse/internal/liveness"
	"matisse/internal/passmgr"
	"matisse/internal/source"
	"matisse/internal/ssa"
)

var liveCmd = &cobra.Command{
	Use:   "live [flags] <file.ssa>",
	Short: "Print the live variables before every instruction",
	Args:  cobra.ExactArgs(1),
	RunE:  runLive,
}

var cfgCmd = &cobra.Command{
	Use:   "cfg [flags] <file.ssa>",
	Short: "Print the control-flow edges of every function",
	Args:  cobra.ExactArgs(1),
	RunE:  runCFG,
}

var cssaCmd = &cobra.Command{
	Use:   "cssa [flags] <file.ssa>",
	Short: "Convert functions to conventional SSA and print them",
	Args:  cobra.ExactArgs(1),
	RunE:  runCSSA,
}

func init() {
	for _, c := range []*cobra.Command{liveCmd, cfgCmd, cssaCmd} {
		c.Flags().String("function", "", "only process the named function")
	}
	liveCmd.Flags().Bool("cssa", false, "convert to conventional SSA before the analysis")
}

// loadBodies parses path and keeps the function selected by --function.
func loadBodies(cmd *cobra.Command, path string) ([]*ssa.Body, error) {
	only, err := cmd.Flags().GetString("function")
	if err != nil {
		return nil, fmt.Errorf("failed to get function flag: %w", err)
	}
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		return nil, err
	}
	bodies, err := ssa.ParseFile(fs.Get(id))
	if err != nil {
		var d diag.Diagnostic
		if errors.As(err, &d) {
			return nil, fmt.Errorf("%s", strings.TrimSpace(diag.FormatShort([]diag.Diagnostic{d}, fs, false)))
		}
		return nil, err
	}
	if only == "" {
		return bodies, nil
	}
	for _, b := range bodies {
		if b.Name == only {
			return []*ssa.Body{b}, nil
		}
	}
	return nil, fmt.Errorf("%s: no function %q", path, only)
}

func runCFG(cmd *cobra.Command, args []string) error {
	bodies, err := loadBodies(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, body := range bodies {
		if err := ssa.Validate(body); err != nil {
			return err
		}
		printCFG(out, body, cfg.Build(body))
	}
	return nil
}

func printCFG(out io.Writer, body *ssa.Body, g *cfg.Graph) {
	nameColor.Fprintf(out, "function %s\n", body.Name)
	for b := range g.NumBlocks() {
		id := ssa.BlockID(b)
		fmt.Fprintf(out, "  #%d -> %s", b, blockList(g.Succs(id)))
		if !g.Reachable(id) {
			fmt.Fprint(out, "  (unreachable)")
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "  exits: %s\n", blockList(g.Exits()))
}

func blockList(ids []ssa.BlockID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}

func runLive(cmd *cobra.Command, args []string) error {
	convert, err := cmd.Flags().GetBool("cssa")
	if err != nil {
		return fmt.Errorf("failed to get cssa flag: %w", err)
	}
	bodies, err := loadBodies(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, body := range bodies {
		if err := ssa.Validate(body); err != nil {
			return err
		}
		if convert {
			if _, err := cssa.Convert(body, cssa.DefaultNamer(body)); err != nil {
				return err
			}
		}
		g := cfg.Build(body)
		printLiveness(out, body, liveness.Analyze(body, g))
	}
	return nil
}

func printLiveness(out io.Writer, body *ssa.Body, info *liveness.Info) {
	nameColor.Fprintf(out, "function %s\n", body.Name)
	for bi := range body.Blocks {
		id := ssa.BlockID(bi)
		fmt.Fprintf(out, "block #%d:  in {%s}\n", bi, strings.Join(info.LiveIn(id), ", "))
		for i, ins := range body.Blocks[bi].Instrs {
			fmt.Fprintf(out, "  %-40s {%s}\n", ins.String(), strings.Join(info.LiveAtEntry(id, i), ", "))
		}
		fmt.Fprintf(out, "  out {%s}\n", strings.Join(info.LiveOut(id), ", "))
	}
	if undef := info.UndefinedAtEntry(); len(undef) > 0 {
		errorColor.Fprintf(out, "  used before definition: %s\n", strings.Join(undef, ", "))
	}
}

func runCSSA(cmd *cobra.Command, args []string) error {
	bodies, err := loadBodies(cmd, args[0])
	if err != nil {
		return err
	}
	pass := &passmgr.CSSAPass{}
	recipe := passmgr.Recipe{passmgr.ValidatePass{}, pass}
	for _, body := range bodies {
		if err := recipe.Apply(cmd.Context(), body); err != nil {
			return err
		}
	}
	return ssa.DumpAll(cmd.OutOrStdout(), bodies)
}
