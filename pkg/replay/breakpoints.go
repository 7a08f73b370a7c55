package replay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/willibrandon/chronosparse/pkg/recorder"
)

// BreakpointType defines the type of breakpoint
type BreakpointType int

const (
	// FunctionBreakpoint breaks at the entry of a call whose name contains
	// Function
	FunctionBreakpoint BreakpointType = iota
	// WindowBreakpoint breaks at the first event of a capture window
	WindowBreakpoint
	// LevelBreakpoint breaks at the first call reported at Level or deeper
	LevelBreakpoint
	// EventTypeBreakpoint breaks at a specific event type
	EventTypeBreakpoint
)

// Breakpoint represents a position to stop at during replay
type Breakpoint struct {
	ID        int
	Type      BreakpointType
	Function  string // For FunctionBreakpoint
	Window    string // For WindowBreakpoint
	Level     int    // For LevelBreakpoint
	EventType string // For EventTypeBreakpoint
	Enabled   bool
}

// BreakpointManager manages the breakpoints of a replay
type BreakpointManager struct {
	breakpoints []*Breakpoint
	nextID      int
}

// NewBreakpointManager creates a new breakpoint manager
func NewBreakpointManager() *BreakpointManager {
	return &BreakpointManager{
		breakpoints: make([]*Breakpoint, 0),
		nextID:      1,
	}
}

// AddBreakpoint adds a breakpoint described by location: func:NAME,
// window:ID, level:N, or an event type name such as FuncExit.
func (bm *BreakpointManager) AddBreakpoint(location string) (*Breakpoint, error) {
	bp := &Breakpoint{Enabled: true}

	kind, value, found := strings.Cut(location, ":")
	switch {
	case found && kind == "func":
		bp.Type = FunctionBreakpoint
		bp.Function = value
	case found && kind == "window":
		bp.Type = WindowBreakpoint
		bp.Window = value
	case found && kind == "level":
		level, err := strconv.Atoi(value)
		if err != nil || level < 1 {
			return nil, fmt.Errorf("invalid level %q", value)
		}
		bp.Type = LevelBreakpoint
		bp.Level = level
	case found:
		return nil, fmt.Errorf("invalid breakpoint %q", location)
	default:
		bp.Type = EventTypeBreakpoint
		bp.EventType = location
	}

	bp.ID = bm.nextID
	bm.nextID++
	bm.breakpoints = append(bm.breakpoints, bp)
	return bp, nil
}

// GetBreakpoints returns all breakpoints
func (bm *BreakpointManager) GetBreakpoints() []*Breakpoint {
	return bm.breakpoints
}

// RemoveBreakpoint removes a breakpoint by ID
func (bm *BreakpointManager) RemoveBreakpoint(id int) error {
	for i, bp := range bm.breakpoints {
		if bp.ID == id {
			bm.breakpoints = append(bm.breakpoints[:i], bm.breakpoints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("breakpoint %d not found", id)
}

// EnableBreakpoint enables a breakpoint by ID
func (bm *BreakpointManager) EnableBreakpoint(id int) error {
	return bm.setEnabled(id, true)
}

// DisableBreakpoint disables a breakpoint by ID
func (bm *BreakpointManager) DisableBreakpoint(id int) error {
	return bm.setEnabled(id, false)
}

func (bm *BreakpointManager) setEnabled(id int, enabled bool) error {
	for _, bp := range bm.breakpoints {
		if bp.ID == id {
			bp.Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("breakpoint %d not found", id)
}

// CheckBreakpoint checks if an enabled breakpoint matches e. It has the
// signature ReplayUntilBreakpoint expects.
func (bm *BreakpointManager) CheckBreakpoint(e recorder.Event) bool {
	for _, bp := range bm.breakpoints {
		if bp.Enabled && bp.matches(e) {
			return true
		}
	}
	return false
}

func (bp *Breakpoint) matches(e recorder.Event) bool {
	switch bp.Type {
	case FunctionBreakpoint:
		return e.Type == recorder.FuncEntry && strings.Contains(e.FuncName, bp.Function)
	case WindowBreakpoint:
		return e.WindowID == bp.Window
	case LevelBreakpoint:
		return e.Type == recorder.FuncEntry && e.Level >= bp.Level
	case EventTypeBreakpoint:
		return e.Type.String() == bp.EventType
	}
	return false
}
