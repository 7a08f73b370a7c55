package sparse

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
)

// DefaultStackDepth is the depth of a marker attached without
// WithStackDepth: only the marked call itself is reported.
const DefaultStackDepth = 1

var (
	ErrInvalidStackDepth = errors.New("stack depth must be a positive integer")
	ErrMissingName       = errors.New("marker name is empty")
)

// Config is fixed when a marker is attached.
type Config struct {
	StackDepth int
}

// Option configures a marker.
type Option func(*markerOptions)

type markerOptions struct {
	cfg Config
	rec Recorder
}

// WithStackDepth sets how many levels, counting the marked call as level 1,
// a window opened by the marker reports.
func WithStackDepth(depth int) Option {
	return func(o *markerOptions) {
		o.cfg.StackDepth = depth
	}
}

// WithRecorder binds the marker to r instead of the default recorder.
func WithRecorder(r Recorder) Option {
	return func(o *markerOptions) {
		o.rec = r
	}
}

// Marker instruments calls of one function.
type Marker struct {
	name string
	cfg  Config
	rec  Recorder
}

// Mark attaches a marker. Invalid configuration is rejected here, never at
// call time.
func Mark(name string, opts ...Option) (*Marker, error) {
	if name == "" {
		return nil, ErrMissingName
	}

	o := markerOptions{cfg: Config{StackDepth: DefaultStackDepth}}
	for _, opt := range opts {
		opt(&o)
	}

	if o.cfg.StackDepth < 1 {
		return nil, fmt.Errorf("marker %s: %w (got %d)", name, ErrInvalidStackDepth, o.cfg.StackDepth)
	}

	return &Marker{name: name, cfg: o.cfg, rec: o.rec}, nil
}

// MustMark is like Mark but panics on invalid configuration. It suits
// package-level marker variables.
func MustMark(name string, opts ...Option) *Marker {
	m, err := Mark(name, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// MarkFunc attaches a marker named after fn.
func MarkFunc(fn any, opts ...Option) (*Marker, error) {
	return Mark(FuncName(fn), opts...)
}

// FuncName returns the fully qualified name of the function fn, or "" if fn
// is not a function.
func FuncName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return f.Name()
}

func (m *Marker) Name() string {
	return m.name
}

func (m *Marker) Config() Config {
	return m.cfg
}

func (m *Marker) recorder() Recorder {
	if m.rec != nil {
		return m.rec
	}
	return DefaultRecorder()
}

// Do runs fn as a marked call. fn receives the context to pass on to the
// calls it makes; its error and any panic reach the caller unchanged, after
// the window the call opened has been closed.
func (m *Marker) Do(ctx context.Context, fn func(context.Context) error) error {
	s := StackFrom(ctx)
	if s != nil && s.InWindow() {
		// Nearest enclosing marker wins; this call is just a nested call
		// of that window, whatever the state of its own recorder.
		defer enter(s, m.name)()
		return fn(ctx)
	}

	rec := m.recorder()
	if rec == nil || !rec.IsRecording() {
		return fn(ctx)
	}

	if s == nil {
		s = NewStack()
		ctx = WithStack(ctx, s)
	}

	tok, owner := s.TryOpen(m.cfg.StackDepth, rec)
	if !owner {
		// The window belongs to another goroutine sharing ctx.
		s = NewStack()
		ctx = WithStack(ctx, s)
		tok, _ = s.TryOpen(m.cfg.StackDepth, rec)
	}
	defer s.Close(tok)

	s.ConsumeLevel()
	f := Frame{Name: m.name, Level: 1, Window: tok.String()}
	rec.EmitCallEvent(f)
	defer rec.EmitReturnEvent(f)

	return fn(ctx)
}

// Wrap returns fn instrumented by m.
func Wrap[T any](m *Marker, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var out T
		err := m.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx)
			return err
		})
		return out, err
	}
}

// WrapFunc returns fn, which takes one argument, instrumented by m.
func WrapFunc[A, T any](m *Marker, fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		var out T
		err := m.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx, arg)
			return err
		})
		return out, err
	}
}

// Call runs fn, which cannot fail, as a marked call and returns its result.
func Call[T any](ctx context.Context, m *Marker, fn func(context.Context) T) T {
	var out T
	m.Do(ctx, func(ctx context.Context) error {
		out = fn(ctx)
		return nil
	})
	return out
}
