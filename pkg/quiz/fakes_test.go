package quiz_test

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/quizagent/pkg/browser"
	"github.com/papercomputeco/quizagent/pkg/llm"
	"github.com/papercomputeco/quizagent/pkg/reasoner"
	"github.com/papercomputeco/quizagent/pkg/submit"
)

type fakeBrowser struct {
	mu      sync.Mutex
	pages   map[string]*browser.Page
	fail    error
	fetched []string
	closed  int
}

func newFakeBrowser(urls ...string) *fakeBrowser {
	b := &fakeBrowser{pages: map[string]*browser.Page{}}
	for _, u := range urls {
		b.pages[u] = &browser.Page{URL: u, Markup: "<p>" + u + "</p>", Text: "question at " + u}
	}
	return b
}

func (b *fakeBrowser) Fetch(_ context.Context, url string) (*browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetched = append(b.fetched, url)
	if b.fail != nil {
		return nil, &browser.FetchError{URL: url, Err: b.fail}
	}
	page, ok := b.pages[url]
	if !ok {
		return nil, &browser.FetchError{URL: url, Err: errors.New("404")}
	}
	return page, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

type fakeLauncher struct {
	browser  *fakeBrowser
	err      error
	launches int
}

func (l *fakeLauncher) Launch(context.Context) (browser.Browser, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

// fakeSolver answers every page with a fixed value unless solve or
// solveCtx is set.
type fakeSolver struct {
	solve    func(req reasoner.Request) (*reasoner.Solution, error)
	solveCtx func(ctx context.Context, req reasoner.Request) (*reasoner.Solution, error)
	requests []reasoner.Request
}

func (s *fakeSolver) Solve(ctx context.Context, req reasoner.Request) (*reasoner.Solution, error) {
	s.requests = append(s.requests, req)
	if s.solveCtx != nil {
		return s.solveCtx(ctx, req)
	}
	if s.solve != nil {
		return s.solve(req)
	}
	return solved(42, "https://quiz.example/submit"), nil
}

func solved(value any, submissionURL string) *reasoner.Solution {
	return &reasoner.Solution{
		Answer:     &llm.FinalAnswer{Answer: value, SubmissionURL: submissionURL},
		Transcript: "head",
		ModelCalls: 1,
	}
}

type submission struct {
	URL     string
	Payload submit.Payload
}

// fakeSubmitter returns queued verdicts per question URL. An exhausted queue
// repeats its last verdict.
type fakeSubmitter struct {
	verdicts map[string][]*submit.Verdict
	err      error
	block    bool
	seen     []submission
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{verdicts: map[string][]*submit.Verdict{}}
}

func (s *fakeSubmitter) on(url string, verdicts ...*submit.Verdict) *fakeSubmitter {
	s.verdicts[url] = append(s.verdicts[url], verdicts...)
	return s
}

func (s *fakeSubmitter) Submit(ctx context.Context, submissionURL string, payload submit.Payload) (*submit.Verdict, error) {
	s.seen = append(s.seen, submission{URL: submissionURL, Payload: payload})
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	queue := s.verdicts[payload.URL]
	if len(queue) == 0 {
		return nil, &submit.StatusError{StatusCode: 404, Body: "unknown question"}
	}
	verdict := queue[0]
	if len(queue) > 1 {
		s.verdicts[payload.URL] = queue[1:]
	}
	return verdict, nil
}

func advance(next string) *submit.Verdict {
	return &submit.Verdict{Correct: true, URL: next}
}

func done() *submit.Verdict {
	return &submit.Verdict{Correct: true}
}

func wrong(reason string) *submit.Verdict {
	return &submit.Verdict{Correct: false, Reason: reason}
}

// blockingSolve waits for cancellation and fails the way the reasoning engine
// does when its model call is cut short.
func blockingSolve(ctx context.Context, _ reasoner.Request) (*reasoner.Solution, error) {
	<-ctx.Done()
	return &reasoner.Solution{}, &reasoner.ModelError{Turn: 1, Err: ctx.Err()}
}
