package transcript

import (
	"context"
	"fmt"

	"github.com/papercomputeco/quizagent/pkg/llm"
)

// Recorder appends conversation turns to a Storer.
type Recorder struct {
	storer Storer
}

// NewRecorder creates a Recorder backed by storer.
func NewRecorder(storer Storer) *Recorder {
	return &Recorder{storer: storer}
}

// Record stores turn as a child of parent and returns the new node hash.
// An empty parent starts a new transcript about page.
func (r *Recorder) Record(ctx context.Context, page, parent string, turn llm.Turn) (string, error) {
	bucket, err := BucketFor(turn)
	if err != nil {
		return "", err
	}
	if parent == "" {
		bucket.Page = page
	}

	node := NewNode(bucket, parent)
	if _, err := r.storer.Put(ctx, node); err != nil {
		return "", fmt.Errorf("storing %s turn: %w", bucket.Role, err)
	}
	return node.Hash, nil
}

// BucketFor encodes a conversation turn.
func BucketFor(turn llm.Turn) (Bucket, error) {
	bucket := Bucket{
		Type:    "turn",
		Role:    string(turn.Role()),
		Content: turn.Text(),
	}

	switch t := turn.(type) {
	case llm.SystemTurn, llm.UserTurn:
	case llm.AssistantTurn:
		for _, call := range t.ToolCalls {
			bucket.ToolCalls = append(bucket.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
	case llm.ToolResultTurn:
		bucket.ToolCallID = t.CallID
	default:
		return Bucket{}, llm.ErrUnknownTurn{Turn: turn}
	}

	return bucket, nil
}
