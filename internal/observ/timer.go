package observ

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Phase is one timed lowering stage.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer collects stage durations for a single function or a whole run.
// It is not safe for concurrent use; give each goroutine its own Timer and
// combine the reports with Merge.
type Timer struct {
	phases []Phase
	now    func() time.Time
}

// NewTimer returns an empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8), now: time.Now} }

// Begin opens a phase and returns its index for End.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: t.clock()})
	return len(t.phases) - 1
}

// End closes the phase at idx. Out of range indices are ignored.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = t.clock().Sub(p.Start)
	p.Note = note
}

func (t *Timer) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

// Summary renders the phases as an aligned table.
func (t *Timer) Summary() string {
	return t.Report().Summary()
}

// PhaseReport is the serializable form of a Phase.
type PhaseReport struct {
	Name       string  `json:"name" msgpack:"name"`
	DurationMS float64 `json:"duration_ms" msgpack:"duration_ms"`
	Note       string  `json:"note,omitempty" msgpack:"note,omitempty"`
	Count      int     `json:"count,omitempty" msgpack:"count,omitempty"`
}

// Report aggregates phase durations in milliseconds.
type Report struct {
	TotalMS float64       `json:"total_ms" msgpack:"total_ms"`
	Phases  []PhaseReport `json:"phases" msgpack:"phases"`
}

// Report snapshots the timer.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
			Count:      1,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

// Merge sums reports phase by phase. Phases keep the order in which their
// names first appear; notes are dropped since they describe one run only.
func Merge(reports ...Report) Report {
	var out Report
	index := make(map[string]int)
	for _, r := range reports {
		out.TotalMS += r.TotalMS
		for _, p := range r.Phases {
			count := p.Count
			if count == 0 {
				count = 1
			}
			i, ok := index[p.Name]
			if !ok {
				index[p.Name] = len(out.Phases)
				out.Phases = append(out.Phases, PhaseReport{Name: p.Name, DurationMS: p.DurationMS, Count: count})
				continue
			}
			out.Phases[i].DurationMS += p.DurationMS
			out.Phases[i].Count += count
		}
	}
	return out
}

// Slowest returns the n phases with the largest duration, longest first.
func (r Report) Slowest(n int) []PhaseReport {
	phases := slices.Clone(r.Phases)
	slices.SortStableFunc(phases, func(a, b PhaseReport) int {
		switch {
		case a.DurationMS > b.DurationMS:
			return -1
		case a.DurationMS < b.DurationMS:
			return 1
		}
		return 0
	})
	if n >= 0 && n < len(phases) {
		phases = phases[:n]
	}
	return phases
}

// Summary renders the report as an aligned table.
func (r Report) Summary() string {
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range r.Phases {
		fmt.Fprintf(&sb, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Count > 1 {
			fmt.Fprintf(&sb, "  x%d", p.Count)
		}
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-20s %7.2f ms\n", "total", r.TotalMS)
	return sb.String()
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
