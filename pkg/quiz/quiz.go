// Package quiz drives a chain of quiz pages: one Session per question, one
// Driver per chain.
package quiz

import (
	"context"
	"time"

	"github.com/papercomputeco/quizagent/pkg/reasoner"
	"github.com/papercomputeco/quizagent/pkg/submit"
)

// Cause is why a session or run terminated.
type Cause string

const (
	CauseFetchError            Cause = "fetch-error"
	CauseNoAnswer              Cause = "no-answer"
	CauseMissingSubmissionURL  Cause = "missing-submission-url"
	CauseSubmissionFailed      Cause = "submission-failed"
	CauseIncorrect             Cause = "incorrect"
	CauseCompleted             Cause = "completed"
	CauseMaxIterationsExceeded Cause = "max-iterations-exceeded"
	CauseURLRevisited          Cause = "url-revisited"
	CauseCanceled              Cause = "canceled"
)

// Succeeded reports whether the chain ran to its end.
func (c Cause) Succeeded() bool {
	return c == CauseCompleted
}

// State is a Session state.
type State string

const (
	StateFetching   State = "fetching"
	StateReasoning  State = "reasoning"
	StateSubmitting State = "submitting"
	StateEvaluating State = "evaluating"
	StateAdvancing  State = "advancing"
	StateTerminated State = "terminated"
)

// Verdict classifies a question's result.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictError     Verdict = "error"
)

// Credentials identify the participant on every submission.
type Credentials struct {
	Email  string `json:"email" yaml:"email"`
	Secret string `json:"-" yaml:"-"`
}

// Solver produces an answer for a fetched page.
type Solver interface {
	Solve(ctx context.Context, req reasoner.Request) (*reasoner.Solution, error)
}

// Submitter posts an answer and returns the evaluator's verdict.
type Submitter interface {
	Submit(ctx context.Context, submissionURL string, payload submit.Payload) (*submit.Verdict, error)
}

// QuestionOutcome is the result of one Session.
type QuestionOutcome struct {
	URL     string  `json:"url" yaml:"url"`
	State   State   `json:"state" yaml:"state"`
	Cause   Cause   `json:"cause,omitempty" yaml:"cause,omitempty"`
	Verdict Verdict `json:"verdict" yaml:"verdict"`

	// NextURL is set when State is StateAdvancing.
	NextURL string `json:"next_url,omitempty" yaml:"next_url,omitempty"`

	// Reason is the evaluator's explanation for an incorrect verdict.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Error describes the fault behind an error verdict.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	Answer        any      `json:"answer,omitempty" yaml:"answer,omitempty"`
	SubmissionURL string   `json:"submission_url,omitempty" yaml:"submission_url,omitempty"`
	Attempts      int      `json:"attempts" yaml:"attempts"`
	Transcripts   []string `json:"transcripts,omitempty" yaml:"transcripts,omitempty"`
	Trace         []State  `json:"trace" yaml:"trace"`
}

func (o *QuestionOutcome) enter(state State) {
	o.State = state
	o.Trace = append(o.Trace, state)
}

func (o *QuestionOutcome) terminate(cause Cause, err error) *QuestionOutcome {
	o.Cause = cause
	if o.Verdict == "" {
		o.Verdict = VerdictError
	}
	if err != nil {
		o.Error = err.Error()
	}
	o.enter(StateTerminated)
	return o
}

// SessionState is the Driver's cursor over the chain.
type SessionState struct {
	CurrentURL     string
	IterationCount int
	MaxIterations  int
}

// RunRequest starts a chain.
type RunRequest struct {
	StartURL    string
	Credentials Credentials
}

// RunOutcome is the terminal report of a chain.
type RunOutcome struct {
	StartURL string `json:"start_url" yaml:"start_url"`
	Cause    Cause  `json:"cause" yaml:"cause"`

	// LastURL is the cursor when the run stopped.
	LastURL string `json:"last_url" yaml:"last_url"`

	// Iterations equals the number of sessions executed.
	Iterations int               `json:"iterations" yaml:"iterations"`
	Questions  []QuestionOutcome `json:"questions" yaml:"questions"`
	Reason     string            `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Duration is the wall time of the run.
func (o *RunOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
