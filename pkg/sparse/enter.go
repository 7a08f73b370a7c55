package sparse

import (
	"context"
	"runtime"

	lru "github.com/hashicorp/golang-lru"
)

func noop() {}

// Enter is the call hook of an unmarked function. Place it at the top of
// the function and defer the returned func:
//
//	defer sparse.Enter(ctx, "f")()
//
// Outside a capture window it does nothing. Inside one, the call is
// reported at its nesting level while the window's depth budget lasts.
// Calls on a goroutine other than the one that opened the window are not
// reported, even when they share its context.
func Enter(ctx context.Context, name string) func() {
	s := StackFrom(ctx)
	if s == nil || !s.InWindow() {
		return noop
	}
	return enter(s, name)
}

// EnterCaller is Enter with the calling function's name.
func EnterCaller(ctx context.Context) func() {
	s := StackFrom(ctx)
	if s == nil || !s.InWindow() {
		return noop
	}
	return enter(s, callerName(1))
}

func enter(s *Stack, name string) func() {
	if !s.ConsumeLevel() {
		return noop
	}

	tok := s.Owner()
	rec := s.Recorder()
	f := Frame{Name: name, Level: s.Level(), Window: tok.String()}
	rec.EmitCallEvent(f)

	return func() {
		rec.EmitReturnEvent(f)
		if s.Owner() == tok {
			s.ReleaseLevel()
		}
	}
}

var callerNames, _ = lru.New(4096)

// callerName returns the name of the function skip frames above its
// caller.
func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	if name, ok := callerNames.Get(pc); ok {
		return name.(string)
	}

	name := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
	}
	callerNames.Add(pc, name)
	return name
}
