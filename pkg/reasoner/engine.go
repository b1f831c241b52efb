// Package reasoner drives the tool-calling conversation that turns a quiz
// page into a final answer.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/llm"
	"github.com/papercomputeco/quizagent/pkg/sandbox"
)

var (
	// ErrTurnBudgetExhausted is returned when the model did not produce a final
	// answer within the turn budget.
	ErrTurnBudgetExhausted = errors.New("turn budget exhausted without a final answer")

	// ErrUnparseableAnswer is returned when the model's final reply holds no
	// final answer object.
	ErrUnparseableAnswer = errors.New("final reply is not a parseable answer")
)

// ModelError wraps a model transport failure.
type ModelError struct {
	Turn int
	Err  error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed on turn %d: %v", e.Turn, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Model sends a conversation with declared tools and returns the reply.
type Model interface {
	Complete(ctx context.Context, conv *llm.Conversation, tools []llm.ToolSpec) (*llm.Reply, error)
}

// Recorder persists conversation turns. Record returns the hash of the stored
// turn, which becomes the parent of the next one.
type Recorder interface {
	Record(ctx context.Context, page, parent string, turn llm.Turn) (string, error)
}

// Request is the page content a question is solved from.
type Request struct {
	URL    string
	Markup string
	Text   string

	// Feedback holds reasons given for previously rejected answers.
	Feedback []string
}

// Solution is the result of one invocation. Answer is nil exactly when Solve
// returns an error.
type Solution struct {
	Answer *llm.FinalAnswer

	// Transcript is the head hash of the recorded conversation, if recorded.
	Transcript string

	ModelCalls int
	ToolCalls  int
	Duration   time.Duration
}

// Engine runs the bounded tool-calling loop.
type Engine struct {
	model    Model
	executor sandbox.Executor
	recorder Recorder
	config   Config
	logger   *zap.Logger
}

// New creates a new Engine. recorder may be nil.
func New(config Config, model Model, executor sandbox.Executor, recorder Recorder, logger *zap.Logger) *Engine {
	config.applyDefaults()
	return &Engine{
		model:    model,
		executor: executor,
		recorder: recorder,
		config:   config,
		logger:   logger,
	}
}

// Solve asks the model for a final answer, running code on its behalf, for at
// most TurnBudget model calls. It never retries: every failure is returned to
// the caller, which owns the consequence.
func (e *Engine) Solve(ctx context.Context, req Request) (*Solution, error) {
	start := time.Now()
	logger := e.logger.With(zap.String("url", req.URL))

	conv := llm.NewConversation(SystemPrompt, e.userPrompt(req))
	rec := &tape{recorder: e.recorder, page: req.URL, logger: logger}
	for _, turn := range conv.Turns() {
		rec.record(ctx, turn)
	}

	solution := &Solution{}
	finish := func(answer *llm.FinalAnswer, err error) (*Solution, error) {
		solution.Answer = answer
		solution.Transcript = rec.head
		solution.Duration = time.Since(start)
		return solution, err
	}

	tools := []llm.ToolSpec{RunCodeSpec}

	for turn := 1; turn <= e.config.TurnBudget; turn++ {
		if err := ctx.Err(); err != nil {
			return finish(nil, err)
		}
		if !conv.Resumable() {
			return finish(nil, fmt.Errorf("conversation not resumable: pending %v", conv.Pending()))
		}

		solution.ModelCalls++
		reply, err := e.model.Complete(ctx, conv, tools)
		if err != nil {
			logger.Error("model call failed", zap.Int("turn", turn), zap.Error(err))
			return finish(nil, &ModelError{Turn: turn, Err: err})
		}

		assistant := reply.Turn()
		if err := conv.Append(assistant); err != nil {
			return finish(nil, err)
		}
		rec.record(ctx, assistant)

		if !assistant.Terminal() {
			logger.Info("model requested tools",
				zap.Int("turn", turn),
				zap.Int("tool_calls", len(assistant.ToolCalls)),
			)
			for _, call := range assistant.ToolCalls {
				solution.ToolCalls++
				output, err := e.invoke(ctx, call)
				if err != nil {
					return finish(nil, err)
				}
				result := llm.ToolResultTurn{CallID: call.ID, Content: output}
				if err := conv.Append(result); err != nil {
					return finish(nil, err)
				}
				rec.record(ctx, result)
			}
			continue
		}

		answer, err := llm.ParseFinalAnswer(reply.Content)
		if err != nil {
			logger.Warn("failed to parse final answer",
				zap.Int("turn", turn),
				zap.String("content", truncate(reply.Content, 500)),
				zap.Error(err),
			)
			return finish(nil, fmt.Errorf("%w: %v", ErrUnparseableAnswer, err))
		}

		logger.Info("model produced final answer",
			zap.Int("turn", turn),
			zap.Any("answer", answer.Answer),
			zap.String("submission_url", answer.SubmissionURL),
		)
		return finish(answer, nil)
	}

	logger.Warn("turn budget exhausted", zap.Int("turn_budget", e.config.TurnBudget))
	return finish(nil, ErrTurnBudgetExhausted)
}

// tape threads recorded turns into a chain. Recording is best effort.
type tape struct {
	recorder Recorder
	page     string
	head     string
	failed   bool
	logger   *zap.Logger
}

func (t *tape) record(ctx context.Context, turn llm.Turn) {
	if t.recorder == nil || t.failed {
		return
	}
	head, err := t.recorder.Record(ctx, t.page, t.head, turn)
	if err != nil {
		t.failed = true
		t.logger.Warn("failed to record transcript turn", zap.Error(err))
		return
	}
	t.head = head
}
