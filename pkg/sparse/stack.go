package sparse

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"
)

// Token identifies the call that opened a window. Only the holder of the
// token may close it.
type Token struct {
	id xid.ID
}

// IsZero reports whether t is the zero token handed to non-owners.
func (t Token) IsZero() bool {
	return t.id.IsNil()
}

func (t Token) String() string {
	if t.IsZero() {
		return ""
	}
	return t.id.String()
}

// OwnershipError reports a Close by a caller that does not own the open
// window, or a Close on a stack with no window. Stack.Close panics with it.
type OwnershipError struct {
	Token Token
	Owner Token
}

func (e *OwnershipError) Error() string {
	if e.Owner.IsZero() {
		return fmt.Sprintf("sparse: close by %q with no open window", e.Token)
	}
	return fmt.Sprintf("sparse: close by %q but window is owned by %q", e.Token, e.Owner)
}

// Stack tracks the capture window of one logical execution context.
// The zero value is a closed stack. A Stack is safe for concurrent use, but
// a window belongs to the goroutine that opened it: calls on any other
// goroutine sharing the context are not part of it (see InWindow).
type Stack struct {
	mu         sync.Mutex
	open       bool
	owner      Token
	goroutine  uint64
	configured int
	remaining  int
	rec        Recorder
}

func NewStack() *Stack {
	return &Stack{}
}

// TryOpen opens a window with depth levels when none is open and returns
// the owner token. When a window is already open it returns false and the
// caller must not close it.
func (s *Stack) TryOpen(depth int, rec Recorder) (Token, bool) {
	if depth < 1 {
		panic(fmt.Sprintf("sparse: invalid stack depth %d", depth))
	}
	g := goroutineID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return Token{}, false
	}
	s.open = true
	s.owner = Token{id: xid.New()}
	s.goroutine = g
	s.configured = depth
	s.remaining = depth
	s.rec = rec
	return s.owner, true
}

func (s *Stack) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// InWindow reports whether a window is open and was opened on the calling
// goroutine.
func (s *Stack) InWindow() bool {
	s.mu.Lock()
	open, g := s.open, s.goroutine
	s.mu.Unlock()
	return open && g == goroutineID()
}

// ConsumeLevel accounts for one more level of nesting. It returns false
// when no window is open or the depth budget is spent; the call then runs
// unreported.
func (s *Stack) ConsumeLevel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.remaining == 0 {
		return false
	}
	s.remaining--
	return true
}

// ReleaseLevel gives back a level consumed by a call that has returned, so
// its siblings are reported at the same level.
func (s *Stack) ReleaseLevel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open && s.remaining < s.configured {
		s.remaining++
	}
}

// Level returns the nesting level of the innermost reported call, 0 when
// closed.
func (s *Stack) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0
	}
	return s.configured - s.remaining
}

// Remaining returns the levels left in the open window.
func (s *Stack) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Depth returns the configured depth of the open window.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configured
}

// Owner returns the token of the open window, zero when closed.
func (s *Stack) Owner() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Recorder returns the recorder of the open window.
func (s *Stack) Recorder() Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// Close releases the window. A close by anyone but the owner means nesting
// bookkeeping is broken, so it panics with *OwnershipError instead of
// corrupting later windows.
func (s *Stack) Close(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || tok.IsZero() || tok != s.owner {
		panic(&OwnershipError{Token: tok, Owner: s.owner})
	}
	s.reset()
}

// Reset forces the stack closed regardless of ownership.
func (s *Stack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Stack) reset() {
	s.open = false
	s.owner = Token{}
	s.goroutine = 0
	s.configured = 0
	s.remaining = 0
	s.rec = nil
}

type stackKey struct{}

// StackFrom returns the stack carried by ctx, or nil.
func StackFrom(ctx context.Context) *Stack {
	s, _ := ctx.Value(stackKey{}).(*Stack)
	return s
}

// WithStack returns a copy of ctx carrying s.
func WithStack(ctx context.Context, s *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, s)
}
