package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matisse/internal/trace"
)

// setupTracing builds the tracer from the trace flags, falling back to the
// [trace] table of the manifest for flags left unset, and attaches it to the
// command context. The returned cleanup flushes and closes it.
func setupTracing(cmd *cobra.Command, manifest *projectManifest) (func(), error) {
	root := cmd.Root()

	traceOutput, err := rootString(cmd, "trace")
	if err != nil {
		return nil, err
	}
	levelStr, err := rootString(cmd, "trace-level")
	if err != nil {
		return nil, err
	}
	modeStr, err := rootString(cmd, "trace-mode")
	if err != nil {
		return nil, err
	}
	ringSize, err := rootInt(cmd, "trace-ring-size")
	if err != nil {
		return nil, err
	}
	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	if manifest != nil {
		tc := manifest.Config.Trace
		if !rootChanged(cmd, "trace") && tc.Output != "" {
			traceOutput = tc.Output
		}
		if !rootChanged(cmd, "trace-level") && tc.Level != "" {
			levelStr = tc.Level
		}
		if !rootChanged(cmd, "trace-mode") && tc.Mode != "" {
			modeStr = tc.Mode
		}
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// an output without a level means "trace the phases"
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if ring, ok := tracer.(*trace.RingTracer); ok {
			if err := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
