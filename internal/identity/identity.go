// Package identity mints the per-process node id (spec.md §3). Node ids
// are generated once at startup with google/uuid, the same library the
// teacher pack already depends on for tracker-side ids.
package identity

import "github.com/google/uuid"

// NodeID is a node's 128-bit identity, stable for the process lifetime.
type NodeID [16]byte

// New draws a fresh random node id.
func New() NodeID {
	return FromUUID(uuid.New())
}

// FromUUID converts a uuid.UUID into a NodeID.
func FromUUID(u uuid.UUID) NodeID {
	var id NodeID
	copy(id[:], u[:])
	return id
}

// Parse parses a canonical UUID string into a NodeID, for callers seeding
// node identity from an external source (spec.md §6, "Persisted state").
func Parse(s string) (NodeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NodeID{}, err
	}
	return FromUUID(u), nil
}

func (id NodeID) String() string {
	u, _ := uuid.FromBytes(id[:])
	return u.String()
}

// Short returns the first 8 hex characters, for log lines.
func (id NodeID) Short() string {
	s := id.String()
	if len(s) < 8 {
		return s
	}
	return s[:8]
}
