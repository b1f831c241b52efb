package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrPendingToolCalls is returned when an assistant turn is appended while
	// tool invocations from the previous assistant turn are still unanswered.
	ErrPendingToolCalls = errors.New("tool calls still pending")

	// ErrConversationClosed is returned when a turn is appended after a terminal
	// assistant turn.
	ErrConversationClosed = errors.New("conversation already has a terminal answer")
)

// ErrUncorrelatedResult is returned when a tool result does not answer a
// pending invocation.
type ErrUncorrelatedResult struct {
	CallID string
}

func (e ErrUncorrelatedResult) Error() string {
	return fmt.Sprintf("tool result %q does not answer a pending tool call", e.CallID)
}

// Conversation is the ordered, append-only turn sequence of one reasoning
// invocation. It is not safe for concurrent use.
type Conversation struct {
	turns   []Turn
	pending []string
	closed  bool
}

// NewConversation seeds a conversation with a system instruction and one user turn.
func NewConversation(system, user string) *Conversation {
	return &Conversation{
		turns: []Turn{
			SystemTurn{Content: system},
			UserTurn{Content: user},
		},
	}
}

// Append adds a turn, enforcing the tool-call correlation invariants.
func (c *Conversation) Append(turn Turn) error {
	if c.closed {
		return ErrConversationClosed
	}

	switch t := turn.(type) {
	case SystemTurn, UserTurn:
		if len(c.pending) > 0 {
			return ErrPendingToolCalls
		}
	case AssistantTurn:
		if len(c.pending) > 0 {
			return ErrPendingToolCalls
		}
		for _, call := range t.ToolCalls {
			c.pending = append(c.pending, call.ID)
		}
		if t.Terminal() {
			c.closed = true
		}
	case ToolResultTurn:
		idx := -1
		for i, id := range c.pending {
			if id == t.CallID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrUncorrelatedResult{CallID: t.CallID}
		}
		c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
	default:
		return ErrUnknownTurn{Turn: turn}
	}

	c.turns = append(c.turns, turn)
	return nil
}

// Turns returns a copy of the turns in order.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Pending returns the call ids still waiting for a tool result.
func (c *Conversation) Pending() []string {
	out := make([]string, len(c.pending))
	copy(out, c.pending)
	return out
}

// Resumable reports whether the conversation can be sent to the model again.
func (c *Conversation) Resumable() bool {
	return !c.closed && len(c.pending) == 0
}

// Closed reports whether a terminal assistant turn has been appended.
func (c *Conversation) Closed() bool {
	return c.closed
}
