package server

import (
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/quizagent/pkg/quiz"
)

// Run statuses.
const (
	StatusProcessing = "processing"
	StatusFinished   = "finished"
)

// Run is the pollable state of one dispatched run.
type Run struct {
	ID        string           `json:"run_id"`
	Email     string           `json:"email"`
	URL       string           `json:"url"`
	Status    string           `json:"status"`
	StartedAt time.Time        `json:"started_at"`
	Outcome   *quiz.RunOutcome `json:"outcome,omitempty"`
}

// registry tracks dispatched runs. Finished runs beyond limit are evicted
// oldest first.
type registry struct {
	mu    sync.Mutex
	runs  map[string]*Run
	limit int
}

func newRegistry(limit int) *registry {
	if limit <= 0 {
		limit = DefaultMaxRetainedRuns
	}
	return &registry{runs: map[string]*Run{}, limit: limit}
}

func (r *registry) start(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.Status = StatusProcessing
	r.runs[run.ID] = run
}

func (r *registry) finish(id string, outcome *quiz.RunOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.Status = StatusFinished
	run.Outcome = outcome
	r.evict()
}

// evict must be called with mu held.
func (r *registry) evict() {
	var finished []*Run
	for _, run := range r.runs {
		if run.Status == StatusFinished {
			finished = append(finished, run)
		}
	}
	if len(finished) <= r.limit {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartedAt.Before(finished[j].StartedAt)
	})
	for _, run := range finished[:len(finished)-r.limit] {
		delete(r.runs, run.ID)
	}
}

func (r *registry) get(id string) (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// list returns copies of every run, newest first.
func (r *registry) list() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}
