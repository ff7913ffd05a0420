package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matisse/internal/driver"
)

func send(t *testing.T, m tea.Model, ev driver.Event) tea.Model {
	t.Helper()
	next, _ := m.Update(eventMsg(ev))
	return next
}

func TestProgressModelTracksFiles(t *testing.T) {
	events := make(chan driver.Event)
	var m tea.Model = NewProgressModel("lowering 2 files", []string{"a.ssa", "b.ssa"}, events)

	m = send(t, m, driver.Event{File: "a.ssa", Stage: driver.StageParse, Status: driver.StatusWorking})
	m = send(t, m, driver.Event{File: "a.ssa", Function: "scale", Stage: driver.StageLower, Status: driver.StatusWorking})
	view := m.View()
	assert.Contains(t, view, "lowering 2 files")
	assert.Contains(t, view, "a.ssa  scale")
	assert.Contains(t, view, "queued")

	m = send(t, m, driver.Event{File: "a.ssa", Function: "scale", Stage: driver.StageLower, Status: driver.StatusDone})
	m = send(t, m, driver.Event{File: "a.ssa", Function: "copy", Stage: driver.StageCache, Status: driver.StatusDone})
	m = send(t, m, driver.Event{File: "a.ssa", Stage: driver.StageLower, Status: driver.StatusDone})
	m = send(t, m, driver.Event{File: "b.ssa", Stage: driver.StageLoad, Status: driver.StatusError})
	m = send(t, m, driver.Event{File: "unknown.ssa", Stage: driver.StageLoad, Status: driver.StatusError})

	pm := m.(*progressModel)
	assert.Equal(t, "done", pm.rows[0].label)
	assert.Equal(t, "error", pm.rows[1].label)
	assert.InDelta(t, 1.0, pm.fraction(), 1e-9)
	assert.Contains(t, m.View(), "(2 functions, 1 cached)")

	m, cmd := m.Update(doneMsg{})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "done: lowering 2 files")
}

func TestProgressModelListensUntilClosed(t *testing.T) {
	events := make(chan driver.Event, 1)
	m := NewProgressModel("t", []string{"a.ssa"}, events).(*progressModel)

	events <- driver.Event{File: "a.ssa", Stage: driver.StageLoad, Status: driver.StatusQueued}
	assert.Equal(t, eventMsg(driver.Event{File: "a.ssa", Stage: driver.StageLoad, Status: driver.StatusQueued}), m.next()())

	close(events)
	assert.Equal(t, doneMsg{}, m.next()())
}

func TestPartialProgress(t *testing.T) {
	m := NewProgressModel("t", []string{"a.ssa", "b.ssa"}, nil).(*progressModel)
	m.apply(driver.Event{File: "a.ssa", Stage: driver.StageParse, Status: driver.StatusWorking})
	assert.InDelta(t, 0.1, m.fraction(), 1e-9)
	assert.Equal(t, "parsing", m.rows[0].label)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "値値...", truncate("値値値値値値", 7))
	assert.Equal(t, "x", truncate("x", 0))
}

func TestEmptyModelRendersNothing(t *testing.T) {
	assert.Empty(t, NewProgressModel("t", nil, nil).View())
}
