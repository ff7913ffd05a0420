package trace

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

// NextSeq returns the next global sequence number. Sinks stamp events with
// it as they accept them.
func NextSeq() uint64 { return seqCounter.Add(1) }

// NextSpanID returns a process-unique span id.
func NextSpanID() uint64 { return spanCounter.Add(1) }

// goid reads N from the "goroutine N [running]:" stack header.
func goid() uint64 {
	var buf [64]byte
	header := string(buf[:runtime.Stack(buf[:], false)])
	fields := strings.Fields(strings.TrimPrefix(header, "goroutine "))
	if len(fields) == 0 {
		return 0
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// active reports whether t records events of scope.
func active(t Tracer, scope Scope) bool {
	return t != nil && t.Enabled() && t.Level().ShouldEmit(scope)
}

// Span is an open Begin/End pair. A Span with no tracer is inert.
type Span struct {
	tracer  Tracer
	head    Event
	started time.Time
	gid     uint64
	extra   map[string]string
}

// Begin opens a span under parent (0 for a root). A disabled tracer or a
// scope finer than its level yields an inert span.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if !active(t, scope) {
		return &Span{}
	}
	s := &Span{
		tracer:  t,
		started: time.Now(),
		gid:     goid(),
	}
	s.head = Event{
		Scope:    scope,
		SpanID:   NextSpanID(),
		ParentID: parent,
		GID:      s.gid,
		Name:     name,
	}
	ev := s.head
	ev.Time, ev.Kind = s.started, KindSpanBegin
	t.Emit(&ev)
	return s
}

// End closes the span and returns its duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	ev := s.head
	ev.Time, ev.Kind = time.Now(), KindSpanEnd
	ev.Detail, ev.Extra = detail, s.extra
	s.tracer.Emit(&ev)
	return ev.Time.Sub(s.started)
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.head.SpanID
}

// Point emits an instant event outside of any span.
func Point(t Tracer, scope Scope, name, detail string) {
	if !active(t, scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		GID:    goid(),
		Name:   name,
		Detail: detail,
	})
}
