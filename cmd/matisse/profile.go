package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matisse/internal/prof"
)

// setupProfiling starts the profilers named by the persistent flags. The
// returned cleanup reports a failed heap dump on stderr.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	cpuPath, err := rootString(cmd, "cpu-profile")
	if err != nil {
		return nil, err
	}
	memPath, err := rootString(cmd, "mem-profile")
	if err != nil {
		return nil, err
	}
	tracePath, err := rootString(cmd, "runtime-trace")
	if err != nil {
		return nil, err
	}

	session, err := prof.Start(cpuPath, memPath, tracePath)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}, nil
}
