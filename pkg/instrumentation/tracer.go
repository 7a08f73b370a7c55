package instrumentation

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tebeka/atexit"

	"github.com/willibrandon/chronosparse/pkg/recorder"
	"github.com/willibrandon/chronosparse/pkg/sparse"
)

// Tracer binds a recorder to the sparse decision core. It owns the
// process-wide recording flag markers consult, and turns the frames they
// report into recorder events.
type Tracer struct {
	rec       recorder.Recorder
	options   InstrumentationOptions
	pid       int
	recording atomic.Bool
	errCount  atomic.Int64

	shutdownOnce sync.Once
	shutdownErr  error

	// OnError receives recorder failures. When nil they are printed to
	// stderr.
	OnError func(error)
}

// NewTracer creates a stopped tracer writing to rec.
func NewTracer(rec recorder.Recorder, options InstrumentationOptions) *Tracer {
	return &Tracer{
		rec:     rec,
		options: options,
		pid:     os.Getpid(),
	}
}

// Recorder returns the sink the tracer writes to.
func (t *Tracer) Recorder() recorder.Recorder {
	return t.rec
}

// Start begins recording and writes the process metadata event.
func (t *Tracer) Start() {
	if t.recording.Swap(true) {
		return
	}
	t.record(recorder.Event{
		Type:    recorder.ProcessStart,
		Details: processName(t.pid),
	})
}

// Stop ends recording. Windows already open finish reporting; no new
// window opens.
func (t *Tracer) Stop() {
	t.recording.Store(false)
}

func (t *Tracer) IsRecording() bool {
	return t.recording.Load()
}

// EmitCallEvent records a function entry event
func (t *Tracer) EmitCallEvent(f sparse.Frame) {
	t.emit(recorder.FuncEntry, f)
}

// EmitReturnEvent records a function exit event
func (t *Tracer) EmitReturnEvent(f sparse.Frame) {
	t.emit(recorder.FuncExit, f)
}

func (t *Tracer) emit(typ recorder.EventType, f sparse.Frame) {
	// The marked call anchors its window and is never filtered.
	if f.Level > 1 && !t.options.ShouldRecord(f.Name) {
		return
	}
	if t.options.RuntimeTrace {
		logRuntimeTrace(typ, f)
	}
	t.record(recorder.Event{
		Type:     typ,
		FuncName: f.Name,
		Level:    f.Level,
		WindowID: f.Window,
	})
}

func (t *Tracer) record(e recorder.Event) {
	if t.rec == nil {
		return
	}
	e.ID = recorder.NextEventID()
	e.Timestamp = recorder.CurrentTime()
	e.PID = t.pid

	if err := t.rec.RecordEvent(e); err != nil {
		t.handleError(fmt.Errorf("recording %s event for %q: %w", e.Type, e.FuncName, err))
	}
}

func (t *Tracer) handleError(err error) {
	t.errCount.Add(1)
	if t.OnError != nil {
		t.OnError(err)
		return
	}
	fmt.Fprintf(os.Stderr, "Error recording event: %v\n", err)
}

// Errors returns how many recorder failures the tracer has seen.
func (t *Tracer) Errors() int64 {
	return t.errCount.Load()
}

// Shutdown stops recording and closes the recorder if it can be closed.
// Only the first call has an effect.
func (t *Tracer) Shutdown() error {
	t.shutdownOnce.Do(func() {
		t.Stop()
		if c, ok := t.rec.(io.Closer); ok {
			t.shutdownErr = c.Close()
		}
	})
	return t.shutdownErr
}

var (
	globalMu     sync.Mutex
	globalTracer *Tracer
)

// InitInstrumentation creates a stopped tracer around r with default
// options and installs it as the process tracer.
func InitInstrumentation(r recorder.Recorder) *Tracer {
	t := NewTracer(r, DefaultInstrumentationOptions())
	Install(t)
	return t
}

// Install makes t the process tracer and the default recorder of markers.
// Install(nil) uninstalls the current one.
func Install(t *Tracer) {
	globalMu.Lock()
	defer globalMu.Unlock()

	globalTracer = t
	if t == nil {
		sparse.SetDefaultRecorder(nil)
		return
	}
	sparse.SetDefaultRecorder(t)
}

// Global returns the process tracer, or nil.
func Global() *Tracer {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalTracer
}

// StartFromEnvironment starts the process tracer configured by the
// CHRONOGO_* environment. It returns a nil tracer when tracing is not
// enabled.
func StartFromEnvironment() (*Tracer, error) {
	options := LoadOptionsFromEnvironment()
	if !options.Enabled {
		return nil, nil
	}
	return StartWithOptions(options)
}

// StartWithOptions creates the recorder selected by options, installs a
// tracer around it and starts recording. The recorder is closed by
// Shutdown or when the program leaves through atexit.Exit.
func StartWithOptions(options InstrumentationOptions) (*Tracer, error) {
	rec, err := NewRecorder(options, os.Getpid())
	if err != nil {
		return nil, err
	}

	t := NewTracer(rec, options)
	Install(t)
	t.Start()

	atexit.Register(func() { t.Shutdown() })

	return t, nil
}

// Shutdown shuts the process tracer down and uninstalls it.
func Shutdown() error {
	t := Global()
	if t == nil {
		return nil
	}
	Install(nil)
	return t.Shutdown()
}

// NewRecorder creates the sink options select for the process pid.
func NewRecorder(options InstrumentationOptions, pid int) (recorder.Recorder, error) {
	switch options.Sink {
	case SinkFile, "":
		compression, err := recorder.ParseCompressionType(options.Compression)
		if err != nil {
			return nil, err
		}
		fr, err := recorder.NewFileRecorderWithOptions(
			recorder.SegmentPath(options.Output, pid),
			recorder.FileRecorderOptions{CompressionType: compression},
		)
		if err != nil {
			return nil, err
		}
		return fr, nil
	case SinkSQLite:
		sr, err := recorder.NewSQLiteRecorder(fmt.Sprintf("%s.%d", options.Output, pid))
		if err != nil {
			return nil, err
		}
		return sr, nil
	case SinkMemory:
		return recorder.NewInMemoryRecorder(), nil
	case SinkOTel:
		return recorder.NewSpanRecorder(nil), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", options.Sink)
	}
}
