// Package transcript records reasoning conversations as a content-addressed
// Merkle DAG: every turn is a node linked to the turn before it.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Bucket is the hashable content of a node.
type Bucket struct {
	// Type is always "turn" for conversation turns.
	Type string `json:"type" yaml:"type"`

	Role       string     `json:"role" yaml:"role"`
	Content    string     `json:"content" yaml:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`

	// Page is the quiz URL the conversation was about. Set on the root turn only.
	Page string `json:"page,omitempty" yaml:"page,omitempty"`
}

// ToolCall is a recorded capability invocation.
type ToolCall struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// Node represents a single content-addressed node in the transcript DAG
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous turn.
	// This will be nil for root nodes.
	ParentHash *string `json:"parent_hash"`

	Bucket Bucket `json:"bucket"`
}

type input struct {
	Bucket Bucket `json:"bucket"`
	Parent string `json:"parent,omitempty"`
}

// NewNode creates a new node with the computed hash for the provided bucket.
// An empty parentHash creates a root node.
func NewNode(bucket Bucket, parentHash string) *Node {
	n := &Node{
		Bucket: bucket,
	}

	if parentHash != "" {
		n.ParentHash = &parentHash
	}

	n.Hash = n.computeHash()
	return n
}

func (n *Node) computeHash() string {
	i := &input{
		Bucket: n.Bucket,
	}

	if n.ParentHash != nil {
		i.Parent = *n.ParentHash
	}

	// Canonical JSON encoding for deterministic hashing
	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify reports whether Hash matches the node's content and parent.
func (n *Node) Verify() bool {
	return n.Hash == n.computeHash()
}
