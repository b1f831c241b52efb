package transcript

import (
	"context"
	"errors"
	"sync"
)

// MemoryStorer keeps nodes in process memory.
//
// A bounded storer evicts whole transcripts, oldest first, once it holds more
// than limit nodes. The transcript that received the latest node is never
// evicted, so the bound can be exceeded by at most one transcript.
type MemoryStorer struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	order    []string
	children map[string][]string
	limit    int
}

// NewMemoryStorer creates an empty, unbounded in-memory storer.
func NewMemoryStorer() *MemoryStorer {
	return NewBoundedMemoryStorer(0)
}

// NewBoundedMemoryStorer creates an empty in-memory storer holding about limit
// nodes. A limit of zero or less disables eviction.
func NewBoundedMemoryStorer(limit int) *MemoryStorer {
	return &MemoryStorer{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		limit:    limit,
	}
}

func (s *MemoryStorer) Put(_ context.Context, node *Node) (bool, error) {
	if node == nil {
		return false, errors.New("cannot store nil node")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.Hash]; ok {
		return false, nil
	}
	s.nodes[node.Hash] = node
	s.order = append(s.order, node.Hash)
	if node.ParentHash != nil {
		s.children[*node.ParentHash] = append(s.children[*node.ParentHash], node.Hash)
	}

	s.evict(node.Hash)
	return true, nil
}

// evict drops the oldest transcripts until the storer is within its limit
// or only the transcript holding keep is left. Callers hold s.mu.
func (s *MemoryStorer) evict(keep string) {
	if s.limit <= 0 {
		return
	}
	for len(s.nodes) > s.limit && len(s.order) > 0 {
		tree := s.tree(s.top(s.order[0]))
		if _, live := tree[keep]; live {
			return
		}
		for hash := range tree {
			if node := s.nodes[hash]; node.ParentHash != nil {
				s.unlink(*node.ParentHash, hash)
			}
			delete(s.nodes, hash)
			delete(s.children, hash)
		}
		kept := s.order[:0]
		for _, hash := range s.order {
			if _, gone := tree[hash]; !gone {
				kept = append(kept, hash)
			}
		}
		s.order = kept
	}
}

// top follows parent links from hash to the highest stored ancestor.
func (s *MemoryStorer) top(hash string) string {
	for {
		node := s.nodes[hash]
		if node.ParentHash == nil {
			return hash
		}
		if _, ok := s.nodes[*node.ParentHash]; !ok {
			return hash
		}
		hash = *node.ParentHash
	}
}

// tree collects hash and every stored descendant.
func (s *MemoryStorer) tree(hash string) map[string]struct{} {
	tree := map[string]struct{}{}
	stack := []string{hash}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := tree[current]; seen {
			continue
		}
		tree[current] = struct{}{}
		stack = append(stack, s.children[current]...)
	}
	return tree
}

func (s *MemoryStorer) unlink(parent, child string) {
	siblings := s.children[parent]
	for i, hash := range siblings {
		if hash == child {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(s.children, parent)
		return
	}
	s.children[parent] = siblings
}

func (s *MemoryStorer) Get(_ context.Context, hash string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	return node, nil
}

func (s *MemoryStorer) Has(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.nodes[hash]
	return ok, nil
}

func (s *MemoryStorer) List(_ context.Context) ([]*Node, error) {
	return s.filter(func(*Node) bool { return true }), nil
}

func (s *MemoryStorer) Roots(_ context.Context) ([]*Node, error) {
	return s.filter(func(n *Node) bool { return n.ParentHash == nil }), nil
}

func (s *MemoryStorer) Leaves(_ context.Context) ([]*Node, error) {
	return s.filter(func(n *Node) bool { return len(s.children[n.Hash]) == 0 }), nil
}

func (s *MemoryStorer) Ancestry(ctx context.Context, hash string) ([]*Node, error) {
	return ancestry(ctx, hash, s.Get)
}

func (s *MemoryStorer) Close() error {
	return nil
}

func (s *MemoryStorer) filter(keep func(*Node) bool) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*Node, 0, len(s.order))
	for _, hash := range s.order {
		if node := s.nodes[hash]; keep(node) {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
