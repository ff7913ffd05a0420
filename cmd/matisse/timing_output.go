package main

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"matisse/internal/observ"
)

// printer formats counts with locale digit grouping.
var printer = message.NewPrinter(language.English)

func printTimings(out io.Writer, report observ.Report) {
	if out == nil || len(report.Phases) == 0 {
		return
	}
	fmt.Fprintln(out, "timings:")
	for _, p := range report.Phases {
		printer.Fprintf(out, "  %-12s %10.2f ms", p.Name, p.DurationMS)
		if p.Count > 1 {
			printer.Fprintf(out, "  x%d", p.Count)
		}
		fmt.Fprintln(out)
	}
	printer.Fprintf(out, "  %-12s %10.2f ms\n", "total", report.TotalMS)
}
