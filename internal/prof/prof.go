// Package prof wraps runtime/pprof and runtime/trace for the CLI's
// --cpu-profile, --mem-profile and --runtime-trace flags.
package prof

import (
	"os"
	"runtime"
	"runtime/pprof"
	rtrace "runtime/trace"

	"tlog.app/go/errors"
)

// Session is one profiled run. The zero value profiles nothing.
type Session struct {
	cpu     *os.File
	rt      *os.File
	memPath string
	stopped bool
}

// Start enables every profiler with a non-empty path. memPath is written
// when the session stops.
func Start(cpuPath, memPath, tracePath string) (*Session, error) {
	s := &Session{memPath: memPath}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, errors.Wrap(err, "cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "start cpu profile")
		}
		s.cpu = f
	}
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			s.stopCPU()
			return nil, errors.Wrap(err, "runtime trace")
		}
		if err := rtrace.Start(f); err != nil {
			_ = f.Close()
			s.stopCPU()
			return nil, errors.Wrap(err, "start runtime trace")
		}
		s.rt = f
	}
	return s, nil
}

func (s *Session) stopCPU() {
	if s.cpu == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = s.cpu.Close()
	s.cpu = nil
}

// Stop ends the profilers and writes the heap profile. It is safe to call
// more than once.
func (s *Session) Stop() error {
	if s == nil || s.stopped {
		return nil
	}
	s.stopped = true
	if s.rt != nil {
		rtrace.Stop()
		_ = s.rt.Close()
		s.rt = nil
	}
	s.stopCPU()
	if s.memPath == "" {
		return nil
	}
	return writeHeap(s.memPath)
}

func writeHeap(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "heap profile")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close heap profile")
		}
	}()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrap(err, "write heap profile")
	}
	return nil
}
