package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"matisse/internal/driver"
	"matisse/internal/ui"
)

type lowerOutcome struct {
	result *driver.Result
	err    error
}

// runLowerWithUI runs LowerFiles in the background while a progress model
// renders its events.
func runLowerWithUI(ctx context.Context, title string, req *driver.Request) (*driver.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing lower request")
	}
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.LowerFiles(ctx, &reqCopy)
		outcomeCh <- lowerOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	if uiErr != nil {
		// keep the producer from blocking on a full channel
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
