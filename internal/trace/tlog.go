package trace

import (
	"maps"
	"slices"

	"tlog.app/go/tlog"
)

// TlogTracer forwards events to a tlog logger as structured messages.
type TlogTracer struct {
	l     *tlog.Logger
	level Level
}

// NewTlogTracer wraps l. A nil logger means the tlog default logger.
func NewTlogTracer(l *tlog.Logger, level Level) *TlogTracer {
	return &TlogTracer{l: l, level: level}
}

func (t *TlogTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	kvs := []any{"kind", ev.Kind.String(), "scope", ev.Scope.String()}
	if ev.SpanID != 0 {
		kvs = append(kvs, "span", ev.SpanID)
	}
	if ev.ParentID != 0 {
		kvs = append(kvs, "parent", ev.ParentID)
	}
	if ev.Detail != "" {
		kvs = append(kvs, "detail", ev.Detail)
	}
	for _, k := range slices.Sorted(maps.Keys(ev.Extra)) {
		kvs = append(kvs, k, ev.Extra[k])
	}
	if t.l == nil {
		tlog.Printw(ev.Name, kvs...)
		return
	}
	t.l.Printw(ev.Name, kvs...)
}

func (t *TlogTracer) Flush() error  { return nil }
func (t *TlogTracer) Close() error  { return nil }
func (t *TlogTracer) Level() Level  { return t.level }
func (t *TlogTracer) Enabled() bool { return t.level > LevelOff }
