// Package diag defines the diagnostic model shared by the lowering pipeline.
//
// Two kinds of failure travel through it:
//
//   - Diagnostic records user-facing findings (a call that cannot be
//     specialized, a malformed IR file). They carry a Code, a Severity, a
//     message and a primary source.Span, and are collected in a Bag so that
//     sibling functions keep compiling.
//   - InternalError reports a broken invariant left by an earlier stage
//     (duplicate SSA definition, dangling phi operand, conflicting mandatory
//     groups). It aborts the current function only and is never retried.
//
// Package diag does no IO. Rendering for the CLI lives in format.go and takes
// the source.FileSet needed to resolve spans.
package diag
