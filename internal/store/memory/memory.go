// Package memory is an in-memory Graph implementation used by the core's
// unit tests so the protocol can be exercised without a live MongoDB
// instance. It honors the same atomicity and dedupe contract as
// internal/store/mongo.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/bluedotiya/web-crawler/internal/model"
	"github.com/bluedotiya/web-crawler/internal/store"
)

// Store is a mutex-guarded Graph backed by plain maps.
type Store struct {
	mu       sync.Mutex
	nodes    map[string]*model.Node
	byKey    map[model.Key]string
	edges    []model.Edge
	seq      int
	healthy  bool
	healthFn func() error
}

// New returns an empty, healthy Store.
func New() *Store {
	return &Store{
		nodes:   make(map[string]*model.Node),
		byKey:   make(map[model.Key]string),
		healthy: true,
	}
}

// SetHealthy flips the store's reachability for health-gate tests.
func (s *Store) SetHealthy(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = ok
}

func (s *Store) nextID() string {
	s.seq++
	return "n" + strconv.Itoa(s.seq)
}

// MatchPending implements store.Graph. It returns a copy, not the live map
// entry, so a caller mutating the result before Push cannot observe or
// corrupt store state outside of Push itself.
func (s *Store) MatchPending(ctx context.Context) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rootCandidate *model.Node
	for _, n := range s.nodes {
		if n.JobStatus != model.Pending || n.CurrentDepth == n.RequestedDepth {
			continue
		}
		if n.Label == model.LabelURL {
			cp := *n
			return &cp, nil
		}
		if rootCandidate == nil {
			rootCandidate = n
		}
	}
	if rootCandidate == nil {
		return nil, nil
	}
	cp := *rootCandidate
	return &cp, nil
}

// MatchByKey implements store.Graph. Returns a copy for the same reason as
// MatchPending.
func (s *Store) MatchByKey(ctx context.Context, key model.Key) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.nodes[id]
	return &cp, nil
}

// ExistingNames implements store.Graph.
func (s *Store) ExistingNames(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[string]struct{}, len(s.nodes))
	for _, n := range s.nodes {
		names[n.Name] = struct{}{}
	}
	return names, nil
}

// CreateNode implements store.Graph.
func (s *Store) CreateNode(ctx context.Context, n *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(n)
}

// insertLocked must be called with s.mu held.
func (s *Store) insertLocked(n *model.Node) error {
	key := n.KeyOf()
	if _, exists := s.byKey[key]; exists {
		return store.ErrDuplicateKey
	}
	if n.ID == "" {
		n.ID = s.nextID()
	}
	cp := *n
	s.nodes[n.ID] = &cp
	s.byKey[key] = n.ID
	return nil
}

// CreateBatch implements store.Graph.
func (s *Store) CreateBatch(ctx context.Context, parent *model.Node, children []*model.Node) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped []string
	for _, c := range children {
		if err := s.insertLocked(c); err != nil {
			skipped = append(skipped, c.Name)
			continue
		}
		s.edges = append(s.edges, model.Edge{
			ParentID: parent.ID,
			ChildID:  c.ID,
			Label:    model.LeadLabel,
		})
	}
	return skipped, nil
}

// Push implements store.Graph.
func (s *Store) Push(ctx context.Context, n *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[n.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *n
	s.nodes[n.ID] = &cp
	return nil
}

// HealthCheck implements store.Graph.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.healthFn != nil {
		return s.healthFn()
	}
	if !s.healthy {
		return context.DeadlineExceeded
	}
	return nil
}

// Snapshot implements store.Graph.
func (s *Store) Snapshot(ctx context.Context) ([]*model.Node, []model.Edge, error) {
	return s.Nodes(), s.Edges(), nil
}

// Nodes returns a snapshot of all nodes, for assertions in tests.
func (s *Store) Nodes() []*model.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		cp := *n
		out = append(out, &cp)
	}
	return out
}

// Edges returns a snapshot of all Lead edges, for assertions in tests.
func (s *Store) Edges() []model.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Edge, len(s.edges))
	copy(out, s.edges)
	return out
}
