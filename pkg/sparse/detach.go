package sparse

import "context"

// Detach returns a copy of ctx carrying a fresh, closed stack. Use it for
// any call path that starts on another goroutine or in another process: a
// window open in the parent is never inherited.
func Detach(ctx context.Context) context.Context {
	return WithStack(ctx, NewStack())
}

// Go runs fn on a new goroutine with a detached context.
func Go(ctx context.Context, fn func(context.Context)) {
	ctx = Detach(ctx)
	go fn(ctx)
}
