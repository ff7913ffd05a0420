package diag_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matisse/internal/diag"
	"matisse/internal/source"
)

func TestBagLimitAndSeverity(t *testing.T) {
	bag := diag.NewBag(2)
	assert.False(t, bag.HasWarnings())

	assert.True(t, bag.Add(diag.New(diag.SevWarning, diag.IOCacheError, source.Span{}, "cache read")))
	assert.True(t, bag.HasWarnings())
	assert.False(t, bag.HasErrors())

	assert.True(t, bag.Add(diag.NewError(diag.SpecNoMatch, source.Span{}, "no match")))
	assert.False(t, bag.Add(diag.NewError(diag.SpecNoMatch, source.Span{}, "dropped")))
	assert.Equal(t, 2, bag.Len())
	assert.True(t, bag.HasErrors())
}

func TestBagMergeGrowsLimit(t *testing.T) {
	a := diag.NewBag(1)
	a.Add(diag.NewError(diag.LowInvalidSSA, source.Span{}, "a"))
	b := diag.NewBag(2)
	b.Add(diag.NewError(diag.LowInvalidSSA, source.Span{}, "b"))
	b.Add(diag.NewError(diag.LowInvalidSSA, source.Span{}, "c"))

	a.Merge(b)
	a.Merge(nil)
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 3, a.Cap())
}

func TestBagSortAndDedup(t *testing.T) {
	bag := diag.NewBag(10)
	late := source.Span{File: 0, Start: 20, End: 25}
	early := source.Span{File: 0, Start: 2, End: 4}
	bag.Add(diag.NewError(diag.SpecNoMatch, late, "late"))
	bag.Add(diag.New(diag.SevWarning, diag.IOCacheError, early, "warn"))
	bag.Add(diag.NewError(diag.LowInvalidSSA, early, "error"))
	bag.Add(diag.NewError(diag.SpecNoMatch, late, "late"))

	bag.Sort()
	items := bag.Items()
	require.Len(t, items, 4)
	assert.Equal(t, "error", items[0].Message, "errors sort before warnings at the same span")
	assert.Equal(t, "warn", items[1].Message)

	bag.Dedup()
	assert.Equal(t, 3, bag.Len())
}

func TestFormatShort(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("lib/scale.ssa", []byte("function scale\nblock #0:\n  y$1 = call bar x$1\n"))
	file := fs.Get(id)

	d := diag.NewError(diag.SpecNoMatch, file.LineSpan(3), "no specialization of bar for (double)").
		WithNote(file.LineSpan(1), "while lowering\nscale")
	other := diag.New(diag.SevWarning, diag.IOCacheError, source.Span{File: 42}, "cache write")

	got := diag.FormatShort([]diag.Diagnostic{d, other}, fs, false)
	assert.Equal(t, "warning IO4002 <unknown>:0:0 cache write\n"+
		"error SPC3001 lib/scale.ssa:3:1 no specialization of bar for (double)", got)

	withNotes := diag.FormatShort([]diag.Diagnostic{d}, fs, true)
	lines := strings.Split(withNotes, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "note SPC3001 lib/scale.ssa:1:1 while lowering scale", lines[0])

	assert.Empty(t, diag.FormatShort(nil, fs, true))
}

type sliceReporter struct {
	got []diag.Diagnostic
}

func (r *sliceReporter) Report(d diag.Diagnostic) {
	r.got = append(r.got, d)
}

func TestReportBuilderEmitsOnce(t *testing.T) {
	r := &sliceReporter{}
	b := diag.ReportWarning(r, diag.LowUndefinedAtEntry, source.Span{}, "x$1 live at entry").
		WithNote(source.Span{Start: 3}, "first use")
	b.Emit()
	b.Emit()

	require.Len(t, r.got, 1)
	assert.Equal(t, diag.SevWarning, r.got[0].Severity)
	require.Len(t, r.got[0].Notes, 1)
	assert.Equal(t, "first use", b.Diagnostic().Notes[0].Msg)

	var nilBuilder *diag.ReportBuilder
	assert.Nil(t, nilBuilder.WithNote(source.Span{}, "ignored"))
	nilBuilder.Emit()
	diag.ReportError(nil, diag.LowInternal, source.Span{}, "nowhere").Emit()
}

func TestBagReporterConcurrent(t *testing.T) {
	bag := diag.NewBag(100)
	r := diag.NewBagReporter(bag)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			diag.ReportError(r, diag.LowInvalidSSA, source.Span{}, fmt.Sprintf("f%d", i)).Emit()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, bag.Len())
}

func TestCodes(t *testing.T) {
	for code, want := range map[diag.Code]string{
		diag.IRBadHeader:         "IR1002",
		diag.LowInternal:         "LOW2003",
		diag.SpecNoMatch:         "SPC3001",
		diag.IOLoadFileError:     "IO4001",
		diag.ProjUnknownStrategy: "PRJ5002",
		diag.UnknownCode:         "E0000",
	} {
		assert.Equal(t, want, code.ID())
	}
	assert.Equal(t, "Unknown error", diag.Code(999).Title())
	assert.Equal(t, "[SPC3003]: Specialized function could not be allocated", diag.SpecAllocationFailed.String())
	assert.Equal(t, "WARNING", diag.SevWarning.String())
}

func TestInternalErrorsUnwrap(t *testing.T) {
	ice := diag.Internal("duplicate definition of %s", "x$1")
	wrapped := fmt.Errorf("lower f: %w", ice)
	assert.True(t, diag.IsInternal(wrapped))
	assert.False(t, diag.IsInternal(errors.New("plain")))
	assert.Equal(t, "internal compiler error: duplicate definition of x$1", ice.Error())
}

func TestDiagnosticAsError(t *testing.T) {
	var err error = diag.NewError(diag.SpecNoMatch, source.Span{}, "no match")
	err = fmt.Errorf("call bar: %w", err)

	var d diag.Diagnostic
	require.True(t, errors.As(err, &d))
	assert.Equal(t, diag.SpecNoMatch, d.Code)
	assert.Equal(t, "call bar: SPC3001: no match", err.Error())
}
