package plan

import (
	"context"
	"fmt"
	"os"
	"sync"

	"incplan/internal/delay"
	"incplan/internal/incremental"
)

// DelayLog appends each injected delay to a file as delay(agent,duration,step).
// The file is opened lazily on the first event, so runs without delays leave no file.
type DelayLog struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewDelayLog returns a log that appends to path.
func NewDelayLog(path string) *DelayLog {
	return &DelayLog{path: path}
}

// DelayInjected implements incremental.Observer.
func (l *DelayLog) DelayInjected(_ context.Context, ev delay.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open delay log: %w", err)
		}
		l.f = f
	}
	if _, err := fmt.Fprintln(l.f, ev.LogLine()); err != nil {
		return fmt.Errorf("failed to append to delay log %s: %w", l.path, err)
	}
	return nil
}

// StepCompleted implements incremental.Observer.
func (l *DelayLog) StepCompleted(context.Context, incremental.StepRecord) error {
	return nil
}

// Close closes the underlying file if it was opened.
func (l *DelayLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

var _ incremental.Observer = (*DelayLog)(nil)
