package driver

import "time"

// Stage describes where a file is in the lowering pipeline.
type Stage string

const (
	// StageLoad reads the file from disk.
	StageLoad Stage = "load"
	// StageParse parses the IR text.
	StageParse Stage = "parse"
	// StageLower runs the out-of-SSA pipeline on one function.
	StageLower Stage = "lower"
	// StageCache consults or fills the disk cache.
	StageCache Stage = "cache"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for a file, or for the whole run when File is empty.
// Function is set for per-function lowering events.
type Event struct {
	File     string
	Function string
	Stage    Stage
	Status   Status
	Err      error
	Elapsed  time.Duration
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use: LowerFiles reports from several goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) { f(evt) }

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
