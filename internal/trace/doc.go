// Package trace records spans and instant events emitted while lowering
// functions out of SSA.
//
// A Tracer travels through the pipeline in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "liveness", parent)
//	defer span.End("")
//
// Scopes, from coarse to fine: driver (one CLI invocation), pass (one stage
// of Lower), module (one function), node (one merge decision). The Level
// selects how deep events are kept; LevelDebug keeps everything.
//
// Sinks: StreamTracer writes text or NDJSON as events arrive, RingTracer keeps
// the most recent events for a dump on failure, TlogTracer forwards to a tlog
// logger and MultiTracer fans out to several of them.
package trace
