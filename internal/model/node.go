// Package model holds the shared node/edge schema for the job graph. It has
// no dependency on any concrete store: both the Mongo-backed adapter and the
// in-memory test adapter exchange values of these types.
package model

import "time"

// Node is a URL job node in the shared graph, identical schema for ROOT and
// URL labels (spec §3).
type Node struct {
	ID    string    `bson:"_id,omitempty" json:"id,omitempty"`
	Label NodeLabel `bson:"label" json:"label"`

	Name           string     `bson:"name" json:"name"`
	HTTPType       HTTPType   `bson:"http_type" json:"http_type"`
	IP             string     `bson:"ip,omitempty" json:"ip,omitempty"`
	Domain         string     `bson:"domain,omitempty" json:"domain,omitempty"`
	RequestedDepth int        `bson:"requested_depth" json:"requested_depth"`
	CurrentDepth   int        `bson:"current_depth" json:"current_depth"`
	JobStatus      JobStatus  `bson:"job_status" json:"job_status"`
	Attempts       int        `bson:"attempts" json:"attempts"`
	SearchMode     SearchMode `bson:"search_mode" json:"search_mode"`
	RequestTimeMS  int64      `bson:"request_time,omitempty" json:"request_time,omitempty"`

	// Operational fields, not part of the protocol-visible schema in spec §3.
	// No code in this repository sets them: lease ownership is recorded in
	// Redis by internal/lease, not on the node.
	ClaimedBy string    `bson:"claimed_by,omitempty" json:"-"`
	ClaimedAt time.Time `bson:"claimed_at,omitempty" json:"-"`
}

// Key is the deduplication key from invariant 4: exactly one node per
// (name, requested_depth, search_mode) triple.
type Key struct {
	Name           string
	RequestedDepth int
	SearchMode     SearchMode
}

// KeyOf returns n's dedupe key.
func (n *Node) KeyOf() Key {
	return Key{Name: n.Name, RequestedDepth: n.RequestedDepth, SearchMode: n.SearchMode}
}

// Edge is a directed "Lead" relationship from a parent node to a child node
// committed in the same batch (spec §3, invariant 2).
type Edge struct {
	ParentID string `bson:"parent_id" json:"parent_id"`
	ChildID  string `bson:"child_id" json:"child_id"`
	Label    string `bson:"label" json:"label"`
}
