package model

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// JobStatus is the state-machine position of a node, per the protocol's
// PENDING -> IN_PROGRESS -> {COMPLETED, NO_LEAD, FAILED} transitions, plus
// the RESTRICTED floor planted at the requested depth.
type JobStatus int

const (
	Pending JobStatus = iota
	InProgress
	Completed
	NoLead
	Failed
	Restricted
)

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case InProgress:
		return "IN_PROGRESS"
	case Completed:
		return "COMPLETED"
	case NoLead:
		return "NO_LEAD"
	case Failed:
		return "FAILED"
	case Restricted:
		return "RESTRICTED"
	default:
		return ""
	}
}

// Terminal reports whether this status is terminal, i.e. a node in it can
// never be reclaimed by match_pending (invariant 6).
func (s JobStatus) Terminal() bool {
	switch s {
	case Restricted, NoLead, Failed, Completed:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the status as its string name.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the status from its string name.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := parseJobStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalBSONValue implements bson.ValueMarshaler so a JobStatus is stored
// in MongoDB as its string name (e.g. "PENDING") instead of the underlying
// int. The store query that filters on job_status (match_pending) compares
// against String(), so the write side must agree.
func (s JobStatus) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(s.String())
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler, the read-side
// counterpart of MarshalBSONValue.
func (s *JobStatus) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var name string
	if err := bson.UnmarshalValue(t, data, &name); err != nil {
		return err
	}
	parsed, err := parseJobStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func parseJobStatus(name string) (JobStatus, error) {
	switch name {
	case "PENDING":
		return Pending, nil
	case "IN_PROGRESS":
		return InProgress, nil
	case "COMPLETED":
		return Completed, nil
	case "NO_LEAD":
		return NoLead, nil
	case "FAILED":
		return Failed, nil
	case "RESTRICTED":
		return Restricted, nil
	default:
		return 0, fmt.Errorf("model: invalid job_status %q", name)
	}
}

// SearchMode limits cross-domain expansion. Inherited from ROOT to every
// descendant (invariant 2).
type SearchMode string

const (
	ModeNormal SearchMode = "normal"
	ModeDomain SearchMode = "domain"
)

// Valid reports whether m is one of the two recognized modes.
func (m SearchMode) Valid() bool {
	return m == ModeNormal || m == ModeDomain
}

// HTTPType is the scheme a URL was discovered under.
type HTTPType string

const (
	SchemeHTTP  HTTPType = "HTTP://"
	SchemeHTTPS HTTPType = "HTTPS://"
)

// NodeLabel is the graph-store label of a node.
type NodeLabel string

const (
	LabelRoot NodeLabel = "ROOT"
	LabelURL  NodeLabel = "URL"
)

// LeadLabel is the only relationship label the core uses.
const LeadLabel = "Lead"
