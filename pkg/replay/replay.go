package replay

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/willibrandon/chronosparse/pkg/recorder"
)

// ErrAtBeginning is returned when stepping backward from the first event.
var ErrAtBeginning = errors.New("already at the beginning")

// Replayer interface defines methods for replaying recorded events
type Replayer interface {
	// LoadEvents loads recorded events into the replayer
	LoadEvents([]recorder.Event) error

	// ReplayForward writes all events from the current position to w
	ReplayForward(w io.Writer) error

	// ReplayUntilBreakpoint replays events until a breakpoint is hit
	ReplayUntilBreakpoint(w io.Writer, breakpointCheck func(event recorder.Event) bool) error

	// ReplayToEventIndex moves the current position to idx
	ReplayToEventIndex(idx int) error

	// StepBackward steps backward from the current index
	// returns the new index after stepping back
	StepBackward(currentIdx int) (int, error)

	// CurrentIndex returns the current event index
	CurrentIndex() int

	// Events returns all loaded events
	Events() []recorder.Event

	// Windows returns the capture windows rebuilt from the loaded events
	Windows() []*Window
}

// BasicReplayer implements the Replayer interface
type BasicReplayer struct {
	events     []recorder.Event
	windows    []*Window
	currentIdx int
}

// NewBasicReplayer creates a new BasicReplayer
func NewBasicReplayer() *BasicReplayer {
	return &BasicReplayer{
		events:     []recorder.Event{},
		currentIdx: -1,
	}
}

// LoadEvents loads the given events into the replayer. It fails when an
// exit event does not close the call its window has open.
func (r *BasicReplayer) LoadEvents(events []recorder.Event) error {
	windows, err := BuildWindows(events)
	if err != nil {
		return err
	}
	r.events = events
	r.windows = windows
	r.currentIdx = -1
	return nil
}

// ReplayForward replays all events from current position to the end
func (r *BasicReplayer) ReplayForward(w io.Writer) error {
	return r.ReplayUntilBreakpoint(w, nil)
}

// ReplayUntilBreakpoint replays events until a breakpoint is hit
// If breakpointCheck is nil, replay all events
func (r *BasicReplayer) ReplayUntilBreakpoint(w io.Writer, breakpointCheck func(event recorder.Event) bool) error {
	startIdx := r.currentIdx + 1
	if startIdx < 0 {
		startIdx = 0
	}

	for i := startIdx; i < len(r.events); i++ {
		event := r.events[i]

		// Check if this event hits a breakpoint BEFORE reporting
		if breakpointCheck != nil && breakpointCheck(event) {
			if _, err := fmt.Fprintf(w, "Breakpoint hit at event %d\n", i); err != nil {
				return err
			}
			r.currentIdx = i
			return nil
		}

		if _, err := fmt.Fprintln(w, FormatEvent(event)); err != nil {
			return err
		}
		r.currentIdx = i
	}

	return nil
}

// FormatEvent renders one event as a replay line, indented by its level.
func FormatEvent(e recorder.Event) string {
	ts := e.Timestamp.Format(time.RFC3339Nano)
	switch e.Type {
	case recorder.FuncEntry, recorder.FuncExit:
		indent := strings.Repeat("  ", max(e.Level-1, 0))
		arrow := "->"
		if e.Type == recorder.FuncExit {
			arrow = "<-"
		}
		return fmt.Sprintf("[%s] pid %d %s%s %s", ts, e.PID, indent, arrow, e.FuncName)
	default:
		return fmt.Sprintf("[%s] pid %d %s: %s", ts, e.PID, e.Type, e.Details)
	}
}

// ReplayToEventIndex replays events up to the specified index
func (r *BasicReplayer) ReplayToEventIndex(idx int) error {
	if idx < 0 || idx >= len(r.events) {
		return nil
	}

	r.currentIdx = idx
	return nil
}

// StepBackward moves one step backward in the event log
func (r *BasicReplayer) StepBackward(currentIdx int) (int, error) {
	if currentIdx <= 0 {
		return 0, ErrAtBeginning
	}

	newIdx := currentIdx - 1
	r.currentIdx = newIdx
	return newIdx, nil
}

// CurrentIndex returns the current event index
func (r *BasicReplayer) CurrentIndex() int {
	return r.currentIdx
}

// Events returns all loaded events
func (r *BasicReplayer) Events() []recorder.Event {
	return r.events
}

func (r *BasicReplayer) Windows() []*Window {
	return r.windows
}
