package sparse

import "sync/atomic"

// Frame identifies one reported call.
type Frame struct {
	Name string
	// Level is the nesting position inside the window; the marked call
	// that opened it is level 1.
	Level int
	// Window is the owner token of the window the call was reported in.
	Window string
}

// Recorder is the trace sink and activation signal the decision core reads.
// EmitCallEvent and EmitReturnEvent report failures through the recorder's
// own error handling, never to the marked function.
type Recorder interface {
	IsRecording() bool
	EmitCallEvent(f Frame)
	EmitReturnEvent(f Frame)
}

type recorderHolder struct {
	r Recorder
}

var defaultRecorder atomic.Pointer[recorderHolder]

// SetDefaultRecorder installs the recorder used by markers created without
// WithRecorder. Passing nil uninstalls it.
func SetDefaultRecorder(r Recorder) {
	defaultRecorder.Store(&recorderHolder{r: r})
}

// DefaultRecorder returns the recorder installed by SetDefaultRecorder.
func DefaultRecorder() Recorder {
	h := defaultRecorder.Load()
	if h == nil {
		return nil
	}
	return h.r
}
