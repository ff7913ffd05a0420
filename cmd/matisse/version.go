package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"matisse/internal/alloc"
	"matisse/internal/version"
)

type versionInfo struct {
	Version    string
	GitCommit  string
	GitMessage string
	BuildDate  string
}

type versionOptions struct {
	format      string
	showHash    bool
	showMessage bool
	showDate    bool
}

type versionPayload struct {
	Tool       string   `json:"tool"`
	Version    string   `json:"version"`
	Strategies []string `json:"strategies"`
	GitCommit  string   `json:"git_commit,omitempty"`
	GitMessage string   `json:"git_message,omitempty"`
	BuildDate  string   `json:"build_date,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show matisse build information",
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("message", false, "include git commit message")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "show all recorded build metadata")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	full, _ := flags.GetBool("full")
	hash, _ := flags.GetBool("hash")
	msg, _ := flags.GetBool("message")
	date, _ := flags.GetBool("date")

	opts := versionOptions{
		format:      strings.ToLower(format),
		showHash:    hash || full,
		showMessage: msg || full,
		showDate:    date || full,
	}
	info := collectVersionInfo()
	switch opts.format {
	case "json":
		return renderVersionJSON(cmd.OutOrStdout(), info, opts)
	case "pretty":
		renderVersionPretty(cmd.OutOrStdout(), info, opts)
		return nil
	default:
		return errInvalidFlag("format", format, "pretty|json")
	}
}

func collectVersionInfo() versionInfo {
	info := versionInfo{
		Version:    strings.TrimSpace(version.Version),
		GitCommit:  strings.TrimSpace(version.GitCommit),
		GitMessage: strings.TrimSpace(version.GitMessage),
		BuildDate:  strings.TrimSpace(version.BuildDate),
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

// payload keeps only the metadata selected by opts; selected but unrecorded
// fields read "unknown".
func (info versionInfo) payload(opts versionOptions) versionPayload {
	pick := func(on bool, v string) string {
		switch {
		case !on:
			return ""
		case v == "":
			return "unknown"
		}
		return v
	}
	return versionPayload{
		Tool:       "matisse",
		Version:    info.Version,
		Strategies: alloc.StrategyNames(),
		GitCommit:  pick(opts.showHash, info.GitCommit),
		GitMessage: pick(opts.showMessage, info.GitMessage),
		BuildDate:  pick(opts.showDate, info.BuildDate),
	}
}

func renderVersionPretty(out io.Writer, info versionInfo, opts versionOptions) {
	p := info.payload(opts)
	fmt.Fprintf(out, "%s %s\n", p.Tool, version.Colored(p.Version))
	fmt.Fprintf(out, "strategies: %s\n", strings.Join(p.Strategies, ", "))
	for _, row := range [][2]string{{"commit:  ", p.GitCommit}, {"message: ", p.GitMessage}, {"built:   ", p.BuildDate}} {
		if row[1] != "" {
			fmt.Fprintf(out, "%s%s\n", row[0], row[1])
		}
	}
}

func renderVersionJSON(out io.Writer, info versionInfo, opts versionOptions) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(info.payload(opts))
}
