package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/quiz"
	"github.com/papercomputeco/quizagent/pkg/reasoner"
)

var _ = Describe("Driver", func() {
	var (
		pages     *fakeBrowser
		launcher  *fakeLauncher
		solver    *fakeSolver
		submitter *fakeSubmitter
		config    quiz.Config
	)

	const (
		u1 = "https://quiz.example/q1"
		u2 = "https://quiz.example/q2"
	)

	BeforeEach(func() {
		pages = newFakeBrowser(u1, u2)
		launcher = &fakeLauncher{browser: pages}
		solver = &fakeSolver{}
		submitter = newFakeSubmitter()
		config = quiz.Config{}
	})

	run := func(ctx context.Context) *quiz.RunOutcome {
		driver := quiz.NewDriver(config, launcher, solver, submitter, zap.NewNop())
		return driver.Run(ctx, quiz.RunRequest{
			StartURL:    u1,
			Credentials: quiz.Credentials{Email: "student@example.com", Secret: "s3cret"},
		})
	}

	It("completes a two question chain after exactly two sessions", func() {
		submitter.on(u1, advance(u2)).on(u2, done())

		out := run(context.Background())
		Expect(out.Cause).To(Equal(quiz.CauseCompleted))
		Expect(out.Iterations).To(Equal(2))
		Expect(out.Questions).To(HaveLen(2))
		Expect(out.LastURL).To(Equal(u2))
		Expect(pages.fetched).To(Equal([]string{u1, u2}))

		Expect(submitter.seen).To(HaveLen(2))
		Expect(submitter.seen[0].Payload.URL).To(Equal(u1))
		Expect(submitter.seen[0].Payload.Answer).To(Equal(42))
		Expect(submitter.seen[1].Payload.URL).To(Equal(u2))

		Expect(out.FinishedAt).NotTo(BeTemporally("<", out.StartedAt))
	})

	It("launches one browser for the run and closes it", func() {
		submitter.on(u1, advance(u2)).on(u2, done())

		run(context.Background())
		Expect(launcher.launches).To(Equal(1))
		Expect(pages.closed).To(Equal(1))
	})

	It("stops on the first terminated session and reports its url", func() {
		submitter.on(u1, advance(u2)).on(u2, wrong("x"))

		out := run(context.Background())
		Expect(out.Cause).To(Equal(quiz.CauseIncorrect))
		Expect(out.Reason).To(Equal("x"))
		Expect(out.LastURL).To(Equal(u2))
		Expect(out.Iterations).To(Equal(2))
		Expect(pages.closed).To(Equal(1))
	})

	It("never runs more sessions than the ceiling", func() {
		config.MaxIterations = 3
		for i := 1; i <= 5; i++ {
			u := fmt.Sprintf("https://quiz.example/c%d", i)
			pages.pages[u] = pages.pages[u1]
			submitter.on(u, advance(fmt.Sprintf("https://quiz.example/c%d", i+1)))
		}

		driver := quiz.NewDriver(config, launcher, solver, submitter, zap.NewNop())
		out := driver.Run(context.Background(), quiz.RunRequest{StartURL: "https://quiz.example/c1"})

		Expect(out.Cause).To(Equal(quiz.CauseMaxIterationsExceeded))
		Expect(out.Iterations).To(Equal(3))
		Expect(out.Questions).To(HaveLen(3))
		Expect(pages.fetched).To(HaveLen(3))
		Expect(out.LastURL).To(Equal("https://quiz.example/c4"))
		Expect(pages.closed).To(Equal(1))
	})

	It("defaults the ceiling to ten sessions", func() {
		for i := 1; i <= 12; i++ {
			u := fmt.Sprintf("https://quiz.example/c%d", i)
			pages.pages[u] = pages.pages[u1]
			submitter.on(u, advance(fmt.Sprintf("https://quiz.example/c%d", i+1)))
		}

		driver := quiz.NewDriver(config, launcher, solver, submitter, zap.NewNop())
		out := driver.Run(context.Background(), quiz.RunRequest{StartURL: "https://quiz.example/c1"})

		Expect(out.Cause).To(Equal(quiz.CauseMaxIterationsExceeded))
		Expect(out.Iterations).To(Equal(quiz.DefaultMaxIterations))
	})

	It("refuses to revisit a url it already advanced past", func() {
		submitter.on(u1, advance(u2)).on(u2, advance(u1))

		out := run(context.Background())
		Expect(out.Cause).To(Equal(quiz.CauseURLRevisited))
		Expect(out.Iterations).To(Equal(2))
		Expect(out.LastURL).To(Equal(u2))
		Expect(pages.fetched).To(Equal([]string{u1, u2}))
	})

	It("reports fetch-error when the browser cannot be launched", func() {
		launcher.err = errors.New("chrome not found")

		out := run(context.Background())
		Expect(out.Cause).To(Equal(quiz.CauseFetchError))
		Expect(out.Error).To(ContainSubstring("chrome not found"))
		Expect(out.Iterations).To(BeZero())
		Expect(out.Questions).To(BeEmpty())
	})

	It("stops with canceled before the next session once the context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		submitter.on(u1, advance(u2)).on(u2, done())
		solver.solve = func(req reasoner.Request) (*reasoner.Solution, error) {
			cancel()
			return solved(42, "https://quiz.example/submit"), nil
		}

		out := run(ctx)
		Expect(out.Cause).To(Equal(quiz.CauseCanceled))
		Expect(out.Iterations).To(Equal(1))
		Expect(out.LastURL).To(Equal(u2))
		Expect(pages.closed).To(Equal(1))
	})

	It("applies the run timeout", func() {
		config.RunTimeout = 20 * time.Millisecond
		submitter.on(u1, advance(u2)).on(u2, done())
		solver.solve = func(req reasoner.Request) (*reasoner.Solution, error) {
			time.Sleep(50 * time.Millisecond)
			return solved(42, "https://quiz.example/submit"), nil
		}

		out := run(context.Background())
		Expect(out.Cause).To(Equal(quiz.CauseCanceled))
		Expect(out.Iterations).To(Equal(1))
	})

	It("reports canceled when the run timeout cuts a model call short", func() {
		config.RunTimeout = 20 * time.Millisecond
		submitter.on(u1, advance(u2)).on(u2, done())
		solver.solveCtx = blockingSolve

		out := run(context.Background())
		Expect(out.Cause).To(Equal(quiz.CauseCanceled))
		Expect(out.Iterations).To(Equal(1))
		Expect(out.Questions).To(HaveLen(1))
		Expect(out.Questions[0].Cause).To(Equal(quiz.CauseCanceled))
		Expect(pages.closed).To(Equal(1))
	})

	It("closes the browser when a session panics", func() {
		solver.solve = func(reasoner.Request) (*reasoner.Solution, error) {
			panic("solver exploded")
		}

		Expect(func() { run(context.Background()) }).To(PanicWith("solver exploded"))
		Expect(pages.closed).To(Equal(1))
	})
})
