package sparse

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

// Call chains used by the scenarios below. Unmarked functions carry the
// Enter hook; marked ones go through their marker.

func h(ctx context.Context) int {
	defer Enter(ctx, "h")()
	return 1
}

func fCallsH(ctx context.Context) int {
	defer Enter(ctx, "f")()
	return h(ctx)
}

func chain(ctx context.Context, n int) int {
	defer Enter(ctx, "chain")()
	if n == 0 {
		return 0
	}
	return 1 + chain(ctx, n-1)
}

func namedCallee(ctx context.Context) {
	defer EnterCaller(ctx)()
}

var _ = Describe("Mark", func() {
	It("should default to depth 1", func() {
		m, err := Mark("f")

		Expect(err).NotTo(HaveOccurred())
		Expect(m.Name()).To(Equal("f"))
		Expect(m.Config().StackDepth).To(Equal(DefaultStackDepth))
	})

	It("should take an explicit depth", func() {
		m, err := Mark("f", WithStackDepth(5))

		Expect(err).NotTo(HaveOccurred())
		Expect(m.Config().StackDepth).To(Equal(5))
	})

	DescribeTable("should reject invalid depths at attachment",
		func(depth int) {
			_, err := Mark("f", WithStackDepth(depth))
			Expect(err).To(MatchError(ErrInvalidStackDepth))
		},
		Entry("zero", 0),
		Entry("negative", -3),
	)

	It("should reject an empty name", func() {
		_, err := Mark("")
		Expect(err).To(MatchError(ErrMissingName))
	})

	It("should panic in MustMark on invalid config", func() {
		Expect(func() { MustMark("f", WithStackDepth(0)) }).To(Panic())
	})

	It("should name markers after functions", func() {
		m, err := MarkFunc(fCallsH)

		Expect(err).NotTo(HaveOccurred())
		Expect(m.Name()).To(HaveSuffix("sparse.fCallsH"))
		Expect(FuncName(42)).To(BeEmpty())
	})
})

var _ = Describe("Marker", func() {
	var (
		log *frameLog
		ctx context.Context
	)

	BeforeEach(func() {
		log = &frameLog{recording: true}
		ctx = context.Background()
	})

	It("should pass through when not recording", func() {
		log.recording = false
		m := MustMark("f", WithRecorder(log))

		got := Call(ctx, m, fCallsH)

		Expect(got).To(Equal(1))
		Expect(log.calls).To(BeEmpty())
		Expect(log.returns).To(BeEmpty())
	})

	It("should pass through without any recorder", func() {
		SetDefaultRecorder(nil)
		m := MustMark("f")

		Expect(Call(ctx, m, fCallsH)).To(Equal(1))
	})

	It("should report one top-level call with the default depth", func() {
		f := MustMark("f", WithRecorder(log))
		g := func(ctx context.Context) int {
			defer Enter(ctx, "g")()
			return Call(ctx, f, fCallsH)
		}

		Expect(g(ctx)).To(Equal(1))

		Expect(log.names()).To(Equal([]string{"f"}))
		Expect(log.topLevel()).To(Equal(1))
		Expect(log.returns).To(HaveLen(1))
	})

	It("should report the configured depth on every call", func() {
		g := MustMark("g", WithStackDepth(2), WithRecorder(log))

		Expect(Call(ctx, g, fCallsH)).To(Equal(1))
		Expect(Call(ctx, g, fCallsH)).To(Equal(1))

		Expect(log.names()).To(Equal([]string{"g", "f", "g", "f"}))
		Expect(log.topLevel()).To(Equal(2))
		Expect(log.calls[0].Window).NotTo(Equal(log.calls[2].Window))
	})

	It("should keep a nested marker inert", func() {
		hm := MustMark("h", WithStackDepth(2), WithRecorder(log))
		f := func(ctx context.Context) int {
			defer Enter(ctx, "f")()
			return Call(ctx, hm, h)
		}
		g := MustMark("g", WithStackDepth(2), WithRecorder(log))

		Expect(Call(ctx, g, f)).To(Equal(1))
		Expect(Call(ctx, g, f)).To(Equal(1))

		Expect(log.names()).To(Equal([]string{"g", "f", "g", "f"}))
	})

	It("should report a nested marker as a nested level when budget allows", func() {
		inner := MustMark("inner", WithStackDepth(5), WithRecorder(log))
		outer := MustMark("outer", WithStackDepth(3), WithRecorder(log))

		Call(ctx, outer, func(ctx context.Context) int {
			return Call(ctx, inner, h)
		})

		Expect(log.names()).To(Equal([]string{"outer", "inner", "h"}))
		Expect(log.topLevel()).To(Equal(1))
		Expect(log.calls[1].Level).To(Equal(2))
		Expect(log.calls[2].Level).To(Equal(3))
	})

	It("should stop reporting past the configured depth", func() {
		m := MustMark("top", WithStackDepth(4), WithRecorder(log))

		Expect(Call(ctx, m, func(ctx context.Context) int { return chain(ctx, 10) })).To(Equal(10))

		Expect(log.calls).To(HaveLen(4))
		for i, f := range log.calls {
			Expect(f.Level).To(Equal(i + 1))
		}
		Expect(log.returns).To(HaveLen(4))
	})

	It("should report siblings at the same level", func() {
		g := MustMark("g", WithStackDepth(2), WithRecorder(log))

		Call(ctx, g, func(ctx context.Context) int {
			return fCallsH(ctx) + fCallsH(ctx)
		})

		Expect(log.names()).To(Equal([]string{"g", "f", "f"}))
		Expect(log.calls[1].Level).To(Equal(2))
		Expect(log.calls[2].Level).To(Equal(2))
	})

	It("should close the window when the function fails", func() {
		s := NewStack()
		ctx = WithStack(ctx, s)
		m := MustMark("f", WithRecorder(log))
		boom := errors.New("boom")

		err := m.Do(ctx, func(ctx context.Context) error { return boom })

		Expect(err).To(BeIdenticalTo(boom))
		Expect(s.IsOpen()).To(BeFalse())
		Expect(log.returns).To(HaveLen(1))

		Expect(m.Do(ctx, func(ctx context.Context) error { return nil })).To(Succeed())
		Expect(log.topLevel()).To(Equal(2))
		Expect(log.calls[0].Window).NotTo(Equal(log.calls[1].Window))
	})

	It("should close the window when the function panics", func() {
		s := NewStack()
		ctx = WithStack(ctx, s)
		m := MustMark("f", WithRecorder(log))

		Expect(func() {
			m.Do(ctx, func(ctx context.Context) error { panic("boom") })
		}).To(PanicWith("boom"))

		Expect(s.IsOpen()).To(BeFalse())
		Expect(log.returns).To(HaveLen(1))
	})

	It("should return wrapped values and errors unchanged", func() {
		m := MustMark("square", WithRecorder(log))
		square := WrapFunc(m, func(ctx context.Context, x int) (int, error) {
			if x < 0 {
				return 0, errors.New("negative")
			}
			return x * x, nil
		})

		Expect(square(ctx, 3)).To(Equal(9))
		_, err := square(ctx, -1)
		Expect(err).To(MatchError("negative"))

		answer := Wrap(m, func(ctx context.Context) (string, error) { return "42", nil })
		Expect(answer(ctx)).To(Equal("42"))
	})

	It("should use the default recorder", func() {
		SetDefaultRecorder(log)
		DeferCleanup(func() { SetDefaultRecorder(nil) })
		m := MustMark("f")

		Call(ctx, m, h)

		Expect(log.names()).To(Equal([]string{"f"}))
	})

	It("should name callers of EnterCaller", func() {
		m := MustMark("m", WithStackDepth(2), WithRecorder(log))

		m.Do(ctx, func(ctx context.Context) error {
			namedCallee(ctx)
			return nil
		})

		Expect(log.calls).To(HaveLen(2))
		Expect(log.calls[1].Name).To(HaveSuffix("sparse.namedCallee"))
	})

	It("should not inherit the window across goroutines", func() {
		outer := MustMark("outer", WithStackDepth(3), WithRecorder(log))
		inner := MustMark("inner", WithRecorder(log))

		var wg sync.WaitGroup
		outer.Do(ctx, func(ctx context.Context) error {
			for i := 0; i < 4; i++ {
				wg.Add(1)
				Go(ctx, func(ctx context.Context) {
					defer wg.Done()
					Call(ctx, inner, h)
				})
			}
			wg.Wait()
			return nil
		})

		Expect(log.topLevel()).To(Equal(5))
	})

	It("should ignore goroutines sharing the window's context", func() {
		outer := MustMark("outer", WithStackDepth(2), WithRecorder(log))

		var wg sync.WaitGroup
		outer.Do(ctx, func(ctx context.Context) error {
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						Enter(ctx, "worker")()
					}
				}()
			}
			wg.Wait()
			return nil
		})

		Expect(log.names()).To(Equal([]string{"outer"}))
		Expect(log.returns).To(HaveLen(1))
	})

	It("should open fresh windows for markers on goroutines sharing the context", func() {
		outer := MustMark("outer", WithStackDepth(3), WithRecorder(log))
		inner := MustMark("inner", WithStackDepth(2), WithRecorder(log))

		var wg sync.WaitGroup
		outer.Do(ctx, func(ctx context.Context) error {
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					Call(ctx, inner, h)
				}()
			}
			wg.Wait()
			return nil
		})

		Expect(log.topLevel()).To(Equal(5))
		windows := map[string]bool{}
		for _, f := range log.calls {
			if f.Name == "inner" {
				Expect(f.Level).To(Equal(1))
				windows[f.Window] = true
			}
		}
		Expect(windows).To(HaveLen(4))
		Expect(windows).NotTo(HaveKey(log.calls[0].Window))
	})

	It("should report a nested marker whose recorder is not recording", func() {
		idle := MustMark("idle", WithRecorder(&frameLog{}))
		outer := MustMark("outer", WithStackDepth(3), WithRecorder(log))

		Call(ctx, outer, func(ctx context.Context) int {
			return Call(ctx, idle, h)
		})

		Expect(log.names()).To(Equal([]string{"outer", "idle", "h"}))
		Expect(log.calls[1].Level).To(Equal(2))
		Expect(log.returns).To(HaveLen(3))
	})

	It("should finish an open window after recording stops", func() {
		m := MustMark("m", WithStackDepth(2), WithRecorder(log))
		outer := MustMark("outer", WithStackDepth(3), WithRecorder(log))

		Call(ctx, outer, func(ctx context.Context) int {
			log.mu.Lock()
			log.recording = false
			log.mu.Unlock()
			return Call(ctx, m, h) + h(ctx)
		})

		Expect(log.names()).To(Equal([]string{"outer", "m", "h", "h"}))
		Expect(log.calls[1].Level).To(Equal(2))
		Expect(log.calls[3].Level).To(Equal(2))
	})
})

func frameMatching(name string, level int) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		f, ok := x.(Frame)
		return ok && f.Name == name && f.Level == level && f.Window != ""
	})
}

var _ = Describe("Marker with a mocked recorder", func() {
	var (
		mockCtrl *gomock.Controller
		rec      *MockRecorder
		ctx      context.Context
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rec = NewMockRecorder(mockCtrl)
		ctx = context.Background()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should only query the recorder when not recording", func() {
		rec.EXPECT().IsRecording().Return(false)
		m := MustMark("f", WithStackDepth(3), WithRecorder(rec))

		Expect(Call(ctx, m, fCallsH)).To(Equal(1))
	})

	It("should emit call and return events in order", func() {
		m := MustMark("g", WithStackDepth(2), WithRecorder(rec))

		rec.EXPECT().IsRecording().Return(true)
		gomock.InOrder(
			rec.EXPECT().EmitCallEvent(frameMatching("g", 1)),
			rec.EXPECT().EmitCallEvent(frameMatching("f", 2)),
			rec.EXPECT().EmitReturnEvent(frameMatching("f", 2)),
			rec.EXPECT().EmitReturnEvent(frameMatching("g", 1)),
		)

		Expect(Call(ctx, m, fCallsH)).To(Equal(1))
	})
})
