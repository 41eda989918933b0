package protocol

import (
	"fmt"

	"github.com/mcoot/islandrelay/internal/model"
)

// TargetKind selects which connections receive an outbound event
type TargetKind int

const (
	// TargetAll is broadcast-all: every connection including the originator
	TargetAll TargetKind = iota
	// TargetOthers is broadcast-others: every connection except one
	TargetOthers
	// TargetOne is unicast to a single connection
	TargetOne
)

// Target is a recipient selector resolved by the transport at delivery time
type Target struct {
	Kind TargetKind
	ID   model.ConnectionID // excluded id for TargetOthers, recipient for TargetOne
}

// All targets every connection
func All() Target {
	return Target{Kind: TargetAll}
}

// AllExcept targets every connection but id
func AllExcept(id model.ConnectionID) Target {
	return Target{Kind: TargetOthers, ID: id}
}

// To targets only id
func To(id model.ConnectionID) Target {
	return Target{Kind: TargetOne, ID: id}
}

// Includes reports whether a connection is selected by the target
func (t Target) Includes(id model.ConnectionID) bool {
	switch t.Kind {
	case TargetAll:
		return true
	case TargetOthers:
		return id != t.ID
	case TargetOne:
		return id == t.ID
	default:
		return false
	}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetAll:
		return "all"
	case TargetOthers:
		return fmt.Sprintf("others:%s", t.ID)
	case TargetOne:
		return fmt.Sprintf("one:%s", t.ID)
	default:
		return "unknown"
	}
}

// Outbound is a single event addressed to a target
type Outbound struct {
	Target  Target
	Event   string
	Payload any
}

// Encode renders the outbound event as a wire frame
func (o Outbound) Encode() ([]byte, error) {
	return Encode(o.Event, o.Payload)
}

// Batch is the ordered list of outbound events produced by handling one input
type Batch []Outbound

// For returns the events in the batch that the given connection would receive, in order
func (b Batch) For(id model.ConnectionID) []Outbound {
	var out []Outbound
	for _, o := range b {
		if o.Target.Includes(id) {
			out = append(out, o)
		}
	}
	return out
}
