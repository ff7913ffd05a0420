package driver

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"

	"matisse/internal/alloc"
	"matisse/internal/cssa"
	"matisse/internal/diag"
	"matisse/internal/observ"
	"matisse/internal/passmgr"
	"matisse/internal/source"
	"matisse/internal/ssa"
	"matisse/internal/trace"
)

const defaultMaxDiagnostics = 100

// Request describes one LowerFiles run.
type Request struct {
	Files []string
	// Jobs bounds parallelism; zero means GOMAXPROCS.
	Jobs int
	// MaxDiagnostics caps each file's Bag; zero means 100.
	MaxDiagnostics int
	// Strategy names the allocation strategy; see alloc.LookupStrategy.
	Strategy string
	// Options is passed to passmgr.Lower. When Options.Allocator is nil an
	// alloc.Efficient running Strategy is used. Options.Recipe runs before
	// the cache lookup, so directives it records are part of the key.
	Options passmgr.Options
	// Policy names Options.Policy in cache keys. A custom Options.Policy or
	// Options.Allocator left unnamed bypasses the cache.
	Policy string
	// Cache may be nil.
	Cache    *DiskCache
	Progress ProgressSink
}

// FunctionResult is the outcome of lowering one function.
type FunctionResult struct {
	Name   string
	Span   source.Span
	Groups [][]string
	Stats  alloc.Stats
	CSSA   cssa.Result
	Cached bool
	// Lowered is nil for cache hits and failures.
	Lowered *passmgr.Lowered
	Err     error
}

// UnitResult collects the functions of one file.
type UnitResult struct {
	Path      string
	FileID    source.FileID
	Functions []FunctionResult
	Bag       *diag.Bag
	Timings   observ.Report
}

// Result is the outcome of LowerFiles, units in the order of Request.Files.
type Result struct {
	FileSet *source.FileSet
	Units   []UnitResult
	Timings observ.Report
}

// Diagnostics returns the diagnostics of every unit.
func (r *Result) Diagnostics() []diag.Diagnostic {
	var out []diag.Diagnostic
	for i := range r.Units {
		if r.Units[i].Bag != nil {
			out = append(out, r.Units[i].Bag.Items()...)
		}
	}
	return out
}

// HasErrors reports whether any unit failed to load, parse or lower.
func (r *Result) HasErrors() bool {
	for i := range r.Units {
		if r.Units[i].Bag != nil && r.Units[i].Bag.HasErrors() {
			return true
		}
	}
	return false
}

// LowerFiles loads, parses and lowers every function of req.Files. Files are
// processed in parallel; functions of one file run in order. A broken file
// or function is reported in its unit's Bag and never stops the others.
// The returned error is reserved for cancellation and bad requests.
func LowerFiles(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing lower request")
	}
	strategy, err := alloc.LookupStrategy(req.Strategy)
	if err != nil {
		return nil, diag.NewError(diag.ProjUnknownStrategy, source.Span{}, err.Error())
	}

	span, ctx := trace.Start(ctx, trace.ScopeDriver, "lower_files")
	defer span.End("")

	maxDiags := req.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = defaultMaxDiagnostics
	}

	fileSet := source.NewFileSet()
	res := &Result{FileSet: fileSet, Units: make([]UnitResult, len(req.Files))}
	if len(req.Files) == 0 {
		return res, nil
	}

	// FileSet is not safe for concurrent use; load everything up front.
	for i, path := range req.Files {
		unit := &res.Units[i]
		unit.Path = path
		unit.Bag = diag.NewBag(maxDiags)
		emit(req.Progress, Event{File: path, Stage: StageLoad, Status: StatusQueued})
		id, err := fileSet.Load(path)
		if err != nil {
			unit.Bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{}, "failed to load file: "+err.Error()))
			emit(req.Progress, Event{File: path, Stage: StageLoad, Status: StatusError, Err: err})
			continue
		}
		unit.FileID = id
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(req.Files)))
	for i := range req.Files {
		unit := &res.Units[i]
		if unit.Bag.HasErrors() {
			continue
		}
		file := fileSet.Get(unit.FileID)
		g.Go(func() error {
			return lowerUnit(gctx, req, strategy, file, unit)
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	reports := make([]observ.Report, 0, len(res.Units))
	for i := range res.Units {
		reports = append(reports, res.Units[i].Timings)
	}
	res.Timings = observ.Merge(reports...)
	return res, nil
}

func lowerUnit(ctx context.Context, req *Request, strategy alloc.Strategy, file *source.File, unit *UnitResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	span, ctx := trace.Start(ctx, trace.ScopeModule, "file:"+unit.Path)
	defer span.End("")

	start := time.Now()
	emit(req.Progress, Event{File: unit.Path, Stage: StageParse, Status: StatusWorking})
	bodies, err := ssa.ParseFile(file)
	if err != nil {
		unit.Bag.Add(asDiagnostic(err, diag.IRUnexpectedToken, source.Span{File: file.ID}))
		emit(req.Progress, Event{File: unit.Path, Stage: StageParse, Status: StatusError, Err: err, Elapsed: time.Since(start)})
		return nil
	}

	opts := req.Options
	variant := Variant{Strategy: strategy.Name(), Policy: req.Policy, SkipCSSA: opts.SkipCSSA}
	cache := req.Cache
	if opts.Allocator != nil || (opts.Policy != nil && req.Policy == "") {
		cache = nil
	}
	if opts.Allocator == nil {
		opts.Allocator = &alloc.Efficient{Strategy: strategy, Tracer: trace.FromContext(ctx)}
	}

	var reports []observ.Report
	failed := false
	for _, body := range bodies {
		if err := ctx.Err(); err != nil {
			return err
		}
		fr, report := lowerFunction(ctx, req.Progress, cache, opts, variant, unit, body)
		if fr.Err != nil {
			failed = true
		}
		unit.Functions = append(unit.Functions, fr)
		reports = append(reports, report)
	}
	unit.Timings = observ.Merge(reports...)

	status := StatusDone
	if failed {
		status = StatusError
	}
	emit(req.Progress, Event{File: unit.Path, Stage: StageLower, Status: status, Elapsed: time.Since(start)})
	return nil
}

func lowerFunction(ctx context.Context, progress ProgressSink, cache *DiskCache, opts passmgr.Options, variant Variant, unit *UnitResult, body *ssa.Body) (FunctionResult, observ.Report) {
	fr := FunctionResult{Name: body.Name, Span: body.Span}
	evt := Event{File: unit.Path, Function: body.Name}
	fail := func(err error) (FunctionResult, observ.Report) {
		fr.Err = err
		code := diag.LowInvalidSSA
		if diag.IsInternal(err) {
			code = diag.LowInternal
		}
		unit.Bag.Add(asDiagnostic(err, code, body.Span))
		evt.Stage, evt.Status, evt.Err = StageLower, StatusError, err
		emit(progress, evt)
		return fr, observ.Report{}
	}

	// The recipe may record directives; they must be on the body it digests.
	if len(opts.Recipe) > 0 {
		if err := opts.Recipe.Apply(ctx, body); err != nil {
			return fail(errors.Wrap(err, "%s: recipe", body.Name))
		}
		opts.Recipe = nil
	}

	var key Digest
	if cache != nil {
		key = CacheKey(body, variant)
		var payload DiskPayload
		ok, err := cache.Get(key, &payload)
		if err != nil {
			unit.Bag.Add(diag.New(diag.SevWarning, diag.IOCacheError, body.Span, "cache read: "+err.Error()))
		}
		if ok {
			fr.Groups, fr.Stats, fr.CSSA, fr.Cached = payload.Groups, payload.Stats, payload.CSSA, true
			evt.Stage, evt.Status = StageCache, StatusDone
			emit(progress, evt)
			return fr, observ.Report{}
		}
	}

	evt.Stage, evt.Status = StageLower, StatusWorking
	emit(progress, evt)
	start := time.Now()
	lowered, err := passmgr.Lower(ctx, body, opts)
	evt.Elapsed = time.Since(start)
	if err != nil {
		return fail(err)
	}

	fr.Lowered = lowered
	fr.Groups = lowered.Allocation.Groups()
	fr.Stats = lowered.Allocation.Stats()
	fr.CSSA = lowered.CSSA
	evt.Status = StatusDone
	emit(progress, evt)

	if cache != nil {
		payload := &DiskPayload{Function: body.Name, Variant: variant, Groups: fr.Groups, Stats: fr.Stats, CSSA: fr.CSSA}
		if err := cache.Put(key, payload); err != nil {
			unit.Bag.Add(diag.New(diag.SevWarning, diag.IOCacheError, body.Span, "cache write: "+err.Error()))
		}
	}
	return fr, lowered.Timings
}

// asDiagnostic keeps a diagnostic carried by err and wraps anything else
// under code.
func asDiagnostic(err error, code diag.Code, span source.Span) diag.Diagnostic {
	var d diag.Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return diag.NewError(code, span, err.Error())
}
