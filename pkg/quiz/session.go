package quiz

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/browser"
	"github.com/papercomputeco/quizagent/pkg/reasoner"
	"github.com/papercomputeco/quizagent/pkg/submit"
)

// Session solves a single question:
// fetching, reasoning, submitting, evaluating, then advancing or terminating.
type Session struct {
	fetcher     browser.Fetcher
	solver      Solver
	submitter   Submitter
	credentials Credentials
	retries     int
	logger      *zap.Logger
}

// NewSession creates a new Session. retries is the number of extra reasoning
// attempts granted after an incorrect verdict.
func NewSession(fetcher browser.Fetcher, solver Solver, submitter Submitter, credentials Credentials, retries int, logger *zap.Logger) *Session {
	if retries < 0 {
		retries = 0
	}
	return &Session{
		fetcher:     fetcher,
		solver:      solver,
		submitter:   submitter,
		credentials: credentials,
		retries:     retries,
		logger:      logger,
	}
}

// Run drives the question at pageURL to a terminal or advancing state.
func (s *Session) Run(ctx context.Context, pageURL string) *QuestionOutcome {
	logger := s.logger.With(zap.String("url", pageURL))
	out := &QuestionOutcome{URL: pageURL}

	out.enter(StateFetching)
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		logger.Error("failed to fetch page", zap.Error(err))
		return s.fail(ctx, out, CauseFetchError, err)
	}
	logger.Debug("fetched page",
		zap.Int("markup_bytes", len(page.Markup)),
		zap.Int("text_bytes", len(page.Text)),
	)

	var feedback []string
	for {
		out.enter(StateReasoning)
		out.Attempts++
		solution, err := s.solver.Solve(ctx, reasoner.Request{
			URL:      pageURL,
			Markup:   page.Markup,
			Text:     page.Text,
			Feedback: feedback,
		})
		if solution != nil && solution.Transcript != "" {
			out.Transcripts = append(out.Transcripts, solution.Transcript)
		}
		if err == nil && (solution == nil || solution.Answer == nil) {
			err = errors.New("solver returned no answer")
		}
		if err != nil {
			logger.Error("no answer", zap.Int("attempt", out.Attempts), zap.Error(err))
			return s.fail(ctx, out, CauseNoAnswer, err)
		}

		answer := solution.Answer
		out.Answer = answer.Answer
		out.SubmissionURL = resolve(pageURL, answer.SubmissionURL)
		if out.SubmissionURL == "" {
			logger.Error("answer has no submission url")
			return out.terminate(CauseMissingSubmissionURL, nil)
		}

		out.enter(StateSubmitting)
		verdict, err := s.submitter.Submit(ctx, out.SubmissionURL, submit.Payload{
			Email:  s.credentials.Email,
			Secret: s.credentials.Secret,
			URL:    pageURL,
			Answer: answer.Answer,
		})
		if err != nil {
			logger.Error("submission failed",
				zap.String("submission_url", out.SubmissionURL),
				zap.Error(err),
			)
			return s.fail(ctx, out, CauseSubmissionFailed, err)
		}

		out.enter(StateEvaluating)
		if verdict.Correct {
			out.Verdict = VerdictCorrect
			out.Reason = verdict.Reason
			if verdict.URL == "" {
				logger.Info("chain completed")
				return out.terminate(CauseCompleted, nil)
			}
			out.NextURL = resolve(pageURL, verdict.URL)
			logger.Info("answer correct", zap.String("next_url", out.NextURL))
			out.enter(StateAdvancing)
			return out
		}

		out.Verdict = VerdictIncorrect
		out.Reason = verdict.Reason
		logger.Warn("answer incorrect",
			zap.Int("attempt", out.Attempts),
			zap.String("reason", verdict.Reason),
		)
		if out.Attempts > s.retries || ctx.Err() != nil {
			return out.terminate(CauseIncorrect, nil)
		}

		reason := verdict.Reason
		if reason == "" {
			reason = "the evaluator gave no reason"
		}
		feedback = append(feedback, reason)
	}
}

// fail terminates out with cause, or with CauseCanceled when ctx ended
// first: a fetch, model call or submission cut short by cancellation says
// nothing about the page or the answer.
func (s *Session) fail(ctx context.Context, out *QuestionOutcome, cause Cause, err error) *QuestionOutcome {
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Warn("question canceled",
			zap.String("url", out.URL),
			zap.String("phase", string(out.State)),
			zap.Error(ctxErr),
		)
		if err == nil {
			err = ctxErr
		}
		return out.terminate(CauseCanceled, err)
	}
	return out.terminate(cause, err)
}

// resolve makes ref absolute against base. Unparseable references are
// returned trimmed and unchanged.
func resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
