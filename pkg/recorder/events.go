package recorder

import (
	"sync/atomic"
	"time"
)

type EventType int

const (
	FuncEntry EventType = iota
	FuncExit
	ProcessStart
)

// Event is one record in a trace. FuncEntry and FuncExit events come in
// pairs for every call a capture window chose to report.
type Event struct {
	ID        int64
	Timestamp time.Time
	Type      EventType
	Details   string // e.g., process name, free-form annotation
	FuncName  string `json:",omitempty"`
	Level     int    `json:",omitempty"` // 1 is the marked call that opened the window
	WindowID  string `json:",omitempty"`
	PID       int
}

// String returns the string representation of the EventType
func (et EventType) String() string {
	switch et {
	case FuncEntry:
		return "FuncEntry"
	case FuncExit:
		return "FuncExit"
	case ProcessStart:
		return "ProcessStart"
	default:
		return "Unknown"
	}
}

var lastEventID atomic.Int64

// NextEventID returns a process-unique, increasing event id.
func NextEventID() int64 {
	return lastEventID.Add(1)
}

// CurrentTime is the clock used to stamp events.
var CurrentTime = time.Now
