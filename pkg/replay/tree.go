package replay

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/willibrandon/chronosparse/pkg/recorder"
)

// Call is one reported call and the reported calls it made.
type Call struct {
	Name     string    `json:"name"`
	Level    int       `json:"level"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Children []*Call   `json:"children,omitempty"`
}

// Duration is zero for calls whose exit was never recorded.
func (c *Call) Duration() time.Duration {
	if c.End.IsZero() {
		return 0
	}
	return c.End.Sub(c.Start)
}

// Window is the call tree of one capture window.
type Window struct {
	ID   string `json:"id"`
	PID  int    `json:"pid"`
	Root *Call  `json:"root"`

	open []*Call
}

// Complete reports whether every call in the window has exited.
func (w *Window) Complete() bool {
	return len(w.open) == 0
}

// Calls counts the reported calls in the window.
func (w *Window) Calls() int {
	var count func(*Call) int
	count = func(c *Call) int {
		n := 1
		for _, child := range c.Children {
			n += count(child)
		}
		return n
	}
	return count(w.Root)
}

// PairingError reports an exit event that does not match the innermost
// open call of its window.
type PairingError struct {
	Event recorder.Event
	Open  string
}

func (e *PairingError) Error() string {
	if e.Open == "" {
		return fmt.Sprintf("event %d: exit of %s with no open call in window %s",
			e.Event.ID, e.Event.FuncName, e.Event.WindowID)
	}
	return fmt.Sprintf("event %d: exit of %s while %s is open in window %s",
		e.Event.ID, e.Event.FuncName, e.Open, e.Event.WindowID)
}

// BuildWindows groups call events by window and rebuilds their call trees.
// Windows are returned in the order they opened. Calls still open at the
// end of the trace are kept with a zero End.
func BuildWindows(events []recorder.Event) ([]*Window, error) {
	var windows []*Window
	byID := make(map[string]*Window)

	for _, e := range events {
		if e.Type != recorder.FuncEntry && e.Type != recorder.FuncExit {
			continue
		}
		key := fmt.Sprintf("%d/%s", e.PID, e.WindowID)
		w := byID[key]

		switch e.Type {
		case recorder.FuncEntry:
			c := &Call{Name: e.FuncName, Level: e.Level, Start: e.Timestamp}
			if w == nil || len(w.open) == 0 {
				// Events without a window id share a key; a new entry after
				// the previous tree closed starts a new window.
				w = &Window{ID: e.WindowID, PID: e.PID, Root: c}
				byID[key] = w
				windows = append(windows, w)
			} else {
				parent := w.open[len(w.open)-1]
				parent.Children = append(parent.Children, c)
			}
			w.open = append(w.open, c)

		case recorder.FuncExit:
			if w == nil || len(w.open) == 0 {
				return nil, &PairingError{Event: e}
			}
			top := w.open[len(w.open)-1]
			if top.Name != e.FuncName {
				return nil, &PairingError{Event: e, Open: top.Name}
			}
			top.End = e.Timestamp
			w.open = w.open[:len(w.open)-1]
		}
	}

	return windows, nil
}

// Summary aggregates a trace.
type Summary struct {
	Processes map[int]string `json:"processes"`
	Windows   int            `json:"windows"`
	Calls     int            `json:"calls"`
	// TopLevel counts windows by the name of the marked call that opened
	// them.
	TopLevel map[string]int `json:"top_level"`
	// ByName counts every reported call by name.
	ByName map[string]int `json:"by_name"`
}

// Summarize computes the summary of events.
func Summarize(events []recorder.Event) (*Summary, error) {
	windows, err := BuildWindows(events)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Processes: make(map[int]string),
		Windows:   len(windows),
		TopLevel:  make(map[string]int),
		ByName:    make(map[string]int),
	}
	for _, e := range events {
		switch e.Type {
		case recorder.ProcessStart:
			s.Processes[e.PID] = e.Details
		case recorder.FuncEntry:
			if _, ok := s.Processes[e.PID]; !ok {
				s.Processes[e.PID] = ""
			}
			s.Calls++
			s.ByName[e.FuncName]++
		}
	}
	for _, w := range windows {
		s.TopLevel[w.Root.Name]++
	}
	return s, nil
}

// WriteTo writes a human readable summary.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Processes: %d\n", len(s.Processes))
	for _, pid := range sortedKeys(s.Processes) {
		fmt.Fprintf(&b, "  %d %s\n", pid, s.Processes[pid])
	}
	fmt.Fprintf(&b, "Windows: %d\n", s.Windows)
	fmt.Fprintf(&b, "Calls: %d\n", s.Calls)

	names := make([]string, 0, len(s.ByName))
	for name := range s.ByName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.ByName[names[i]] != s.ByName[names[j]] {
			return s.ByName[names[i]] > s.ByName[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(&b, "  %6d  %-6d %s\n", s.ByName[name], s.TopLevel[name], name)
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// WriteTree writes the call trees of windows, one indented line per call.
func WriteTree(w io.Writer, windows []*Window) error {
	var write func(c *Call, depth int) error
	write = func(c *Call, depth int) error {
		d := "open"
		if !c.End.IsZero() {
			d = c.Duration().String()
		}
		if _, err := fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth+1), c.Name, d); err != nil {
			return err
		}
		for _, child := range c.Children {
			if err := write(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, win := range windows {
		if _, err := fmt.Fprintf(w, "window %s pid %d\n", win.ID, win.PID); err != nil {
			return err
		}
		if err := write(win.Root, 0); err != nil {
			return err
		}
	}
	return nil
}
