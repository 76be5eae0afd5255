// Package store defines the Graph Store Adapter contract (spec §4.1): the
// narrow set of operations the core protocol relies on, each atomic at the
// granularity of one node or one connected batch. This is the only package
// the concrete backend (internal/store/mongo) is allowed to leak into; every
// other package in the core depends on the Graph interface, not on Mongo.
package store

import (
	"context"
	"errors"

	"github.com/bluedotiya/web-crawler/internal/model"
)

// ErrDuplicateKey is returned by CreateNode when a write would violate the
// (name, requested_depth, search_mode) uniqueness invariant (spec invariant
// 4). The caller treats this as a silently-absorbed race, not a failure
// (spec §5, "claim race"). CreateBatch does not return it: colliding
// children are skipped and reported by name instead.
var ErrDuplicateKey = errors.New("store: duplicate (name, requested_depth, search_mode)")

// ErrNotFound is returned by MatchByKey when no node matches.
var ErrNotFound = errors.New("store: node not found")

// Graph is the abstract node/edge interface every core algorithm is
// expressed against (spec §9, "Graph store as implicit shared mutable
// state" mapping note).
type Graph interface {
	// MatchPending returns one node where current_depth != requested_depth
	// and job_status == PENDING, URL-labeled nodes preferred over ROOT, or
	// (nil, nil) if no such node exists.
	MatchPending(ctx context.Context) (*model.Node, error)

	// MatchByKey returns the node for the given dedupe key, or
	// (nil, ErrNotFound) if none exists. Used for ROOT deduplication
	// (spec §4.3 step 5); the Feeder's global-dedupe filter uses
	// ExistingNames instead.
	MatchByKey(ctx context.Context, key model.Key) (*model.Node, error)

	// ExistingNames returns the set of node names currently present in the
	// store, used by the Feeder as an eventually-consistent dedupe filter
	// (spec §4.4 step 8).
	ExistingNames(ctx context.Context) (map[string]struct{}, error)

	// CreateNode atomically inserts a single node (the Manager's ROOT plant,
	// spec §4.3 step 6). Returns ErrDuplicateKey on a key collision.
	CreateNode(ctx context.Context, n *model.Node) error

	// CreateBatch atomically inserts every child in children and the Lead
	// edges from parent to each of them in one commit; partial commit is
	// forbidden by this contract (spec §4.1, invariant 5). A child whose key
	// collides with an existing node is skipped, not fatal to the batch
	// (spec §5, "claim race" tolerance); the skipped names are returned.
	CreateBatch(ctx context.Context, parent *model.Node, children []*model.Node) (skipped []string, err error)

	// Push writes back a node's mutated properties. The caller must hold
	// single-writer discipline on n (spec §3, Lifecycle).
	Push(ctx context.Context, n *model.Node) error

	// HealthCheck performs a cheap round-trip and returns reachability.
	HealthCheck(ctx context.Context) error

	// Snapshot returns every node and Lead edge currently in the store, for
	// read-only tooling (SPEC_FULL §4.6's graph export) that never
	// participates in the claim protocol.
	Snapshot(ctx context.Context) ([]*model.Node, []model.Edge, error)
}
