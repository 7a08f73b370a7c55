/*
Package sparse implements selective, depth-bounded call capture.

Instead of recording every call a program makes, a program author marks
the few functions worth seeing:

	var loadMarker = sparse.MustMark("load", sparse.WithStackDepth(2))

	func load(ctx context.Context, key string) (Item, error) {
		return sparse.WrapFunc(loadMarker, fetchItem)(ctx, key)
	}

Functions that should show up when they run inside a marked call, but are
not marked themselves, place a hook at their top:

	func fetchItem(ctx context.Context, key string) (Item, error) {
		defer sparse.Enter(ctx, "fetchItem")()
		...
	}

When the recorder is not recording, a marked call runs the function and
nothing else. When it is, the first marked call on a call path opens a
capture window and is reported as level 1. Calls beneath it are reported
while the window's depth budget lasts; deeper calls run but are not
reported. A marked call that runs inside someone else's window does not
open a window of its own: the nearest enclosing marker wins.

Window state lives in a Stack carried by the context.Context. A window
belongs to the goroutine that opened it. Other goroutines handed the same
context report nothing into it, and a marker called there opens its own
window. Go and Detach start a goroutine's call path with a fresh stack.
*/
package sparse
