package sparse

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stack", func() {
	var (
		s   *Stack
		rec *frameLog
	)

	BeforeEach(func() {
		s = NewStack()
		rec = &frameLog{recording: true}
	})

	It("should start closed", func() {
		Expect(s.IsOpen()).To(BeFalse())
		Expect(s.Level()).To(Equal(0))
		Expect(s.Owner().IsZero()).To(BeTrue())
		Expect(s.ConsumeLevel()).To(BeFalse())
	})

	It("should open once and hand out an owner token", func() {
		tok, ok := s.TryOpen(3, rec)

		Expect(ok).To(BeTrue())
		Expect(tok.IsZero()).To(BeFalse())
		Expect(s.IsOpen()).To(BeTrue())
		Expect(s.Depth()).To(Equal(3))
		Expect(s.Remaining()).To(Equal(3))
		Expect(s.Owner()).To(Equal(tok))
		Expect(s.Recorder()).To(BeIdenticalTo(rec))
	})

	It("should refuse a second window", func() {
		s.TryOpen(2, rec)

		tok, ok := s.TryOpen(5, rec)

		Expect(ok).To(BeFalse())
		Expect(tok.IsZero()).To(BeTrue())
		Expect(s.Depth()).To(Equal(2))
	})

	It("should consume levels until exhausted", func() {
		s.TryOpen(2, rec)

		Expect(s.ConsumeLevel()).To(BeTrue())
		Expect(s.Level()).To(Equal(1))
		Expect(s.ConsumeLevel()).To(BeTrue())
		Expect(s.Level()).To(Equal(2))
		Expect(s.ConsumeLevel()).To(BeFalse())
		Expect(s.ConsumeLevel()).To(BeFalse())
		Expect(s.Remaining()).To(Equal(0))
	})

	It("should release levels without exceeding the configured depth", func() {
		s.TryOpen(2, rec)
		s.ConsumeLevel()
		s.ConsumeLevel()

		s.ReleaseLevel()
		Expect(s.Remaining()).To(Equal(1))
		s.ReleaseLevel()
		s.ReleaseLevel()
		Expect(s.Remaining()).To(Equal(2))
	})

	It("should close for the owner", func() {
		tok, _ := s.TryOpen(1, rec)

		s.Close(tok)

		Expect(s.IsOpen()).To(BeFalse())
		Expect(s.Owner().IsZero()).To(BeTrue())
		Expect(s.Recorder()).To(BeNil())
	})

	It("should panic when a non-owner closes", func() {
		s.TryOpen(1, rec)

		Expect(func() { s.Close(Token{}) }).To(
			PanicWith(BeAssignableToTypeOf(&OwnershipError{})))
		Expect(s.IsOpen()).To(BeTrue())
	})

	It("should panic when an old owner closes a newer window", func() {
		old, _ := s.TryOpen(1, rec)
		s.Close(old)
		s.TryOpen(1, rec)

		Expect(func() { s.Close(old) }).To(
			PanicWith(BeAssignableToTypeOf(&OwnershipError{})))
	})

	It("should panic when closing a closed stack", func() {
		other := NewStack()
		tok, _ := other.TryOpen(1, rec)

		Expect(func() { s.Close(tok) }).To(PanicWith(
			WithTransform(func(e *OwnershipError) string { return e.Error() },
				ContainSubstring("no open window"))))
	})

	It("should reject a non-positive depth", func() {
		Expect(func() { s.TryOpen(0, rec) }).To(Panic())
	})

	It("should reset to closed", func() {
		s.TryOpen(4, rec)
		s.ConsumeLevel()

		s.Reset()

		Expect(s.IsOpen()).To(BeFalse())
		Expect(s.Remaining()).To(Equal(0))
	})

	It("should only count the opening goroutine as in the window", func() {
		Expect(s.InWindow()).To(BeFalse())
		s.TryOpen(2, rec)
		Expect(s.InWindow()).To(BeTrue())

		done := make(chan bool)
		go func() { done <- s.InWindow() }()
		Expect(<-done).To(BeFalse())

		s.Reset()
		Expect(s.InWindow()).To(BeFalse())
	})

	It("should travel in the context", func() {
		ctx := WithStack(context.Background(), s)

		Expect(StackFrom(ctx)).To(BeIdenticalTo(s))
		Expect(StackFrom(context.Background())).To(BeNil())
	})

	It("should give a detached context a closed stack", func() {
		s.TryOpen(2, rec)
		ctx := WithStack(context.Background(), s)

		detached := Detach(ctx)

		Expect(StackFrom(detached)).NotTo(BeIdenticalTo(s))
		Expect(StackFrom(detached).IsOpen()).To(BeFalse())
		Expect(s.IsOpen()).To(BeTrue())
	})
})
