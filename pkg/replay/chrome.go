package replay

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/willibrandon/chronosparse/pkg/recorder"
)

// ChromeEvent is one entry of the Chrome trace event format.
type ChromeEvent struct {
	Name string            `json:"name"`
	Ph   string            `json:"ph"`
	Ts   float64           `json:"ts"`
	Dur  float64           `json:"dur,omitempty"`
	PID  int               `json:"pid"`
	TID  int               `json:"tid"`
	Args map[string]string `json:"args,omitempty"`
}

// ChromeTraceFile is the JSON object format understood by chrome://tracing
// and Perfetto.
type ChromeTraceFile struct {
	TraceEvents     []ChromeEvent `json:"traceEvents"`
	DisplayTimeUnit string        `json:"displayTimeUnit"`
}

// ChromeTrace converts events into complete ("X") events, one per reported
// call, plus process_name metadata. Windows of one process that overlap in
// time are placed on separate thread lanes.
func ChromeTrace(events []recorder.Event) (*ChromeTraceFile, error) {
	windows, err := BuildWindows(events)
	if err != nil {
		return nil, err
	}

	out := &ChromeTraceFile{
		TraceEvents:     []ChromeEvent{},
		DisplayTimeUnit: "ms",
	}

	var end time.Time
	for _, e := range events {
		if e.Type == recorder.ProcessStart {
			out.TraceEvents = append(out.TraceEvents, ChromeEvent{
				Name: "process_name",
				Ph:   "M",
				PID:  e.PID,
				Args: map[string]string{"name": e.Details},
			})
		}
		if e.Timestamp.After(end) {
			end = e.Timestamp
		}
	}

	sorted := append([]*Window(nil), windows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Root.Start.Before(sorted[j].Root.Start)
	})

	// lanes[pid][i] is when lane i of pid frees up.
	lanes := make(map[int][]time.Time)
	for _, w := range sorted {
		rootEnd := w.Root.End
		if rootEnd.IsZero() {
			rootEnd = end
		}

		tid := -1
		for i, free := range lanes[w.PID] {
			if !free.After(w.Root.Start) {
				tid = i
				break
			}
		}
		if tid < 0 {
			tid = len(lanes[w.PID])
			lanes[w.PID] = append(lanes[w.PID], time.Time{})
		}
		lanes[w.PID][tid] = rootEnd

		var add func(c *Call)
		add = func(c *Call) {
			callEnd := c.End
			if callEnd.IsZero() {
				callEnd = end
			}
			out.TraceEvents = append(out.TraceEvents, ChromeEvent{
				Name: c.Name,
				Ph:   "X",
				Ts:   micros(c.Start),
				Dur:  float64(callEnd.Sub(c.Start).Nanoseconds()) / 1e3,
				PID:  w.PID,
				TID:  tid + 1,
			})
			for _, child := range c.Children {
				add(child)
			}
		}
		add(w.Root)
	}

	return out, nil
}

func micros(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e3
}

// WriteChromeTrace writes events to w in the Chrome trace format.
func WriteChromeTrace(w io.Writer, events []recorder.Event) error {
	trace, err := ChromeTrace(events)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(trace)
}
