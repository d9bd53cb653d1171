package model

import "time"

// Memory is the atomic content entity of the Hierarchical Storage Graph.
// Every Memory belongs to exactly one tenant (UserID empty means
// system-wide) and is uniquely identified by ID within that tenant.
type Memory struct {
	ID       string
	UserID   string
	Content  []byte // encrypted at rest; plaintext only exists in-flight
	Primary  Sector
	Tags     []string
	Metadata Metadata
	Segment  int

	Simhash uint64

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSeenAt time.Time

	Salience    float64 // clamped to [0,1] on every write
	DecayLambda float64 // > 0

	Version int

	Dim             int
	MeanVector      []float32
	CompressedVec   []float32
	FeedbackScore   int
	GeneratedSummary string
}

// ClampSalience enforces the [0,1] invariant in place and returns the
// clamped value.
func (m *Memory) ClampSalience() float64 {
	switch {
	case m.Salience < 0:
		m.Salience = 0
	case m.Salience > 1:
		m.Salience = 1
	}
	return m.Salience
}

// VectorRecord is one embedding for one Memory in one sector. A Memory has
// at most one vector per sector.
type VectorRecord struct {
	MemoryID string
	Sector   Sector
	Vector   []float32
	Dim      int
	UserID   string
	Metadata Metadata
}

// Waypoint is a directed weighted edge between two memories, or between a
// memory and a virtual "id:sector" tag node.
type Waypoint struct {
	SrcID     string
	DstID     string
	UserID    string
	Weight    float64 // bounded above by 1.0
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClampWeight enforces the upper bound on edge weight.
func (w *Waypoint) ClampWeight() float64 {
	if w.Weight > 1 {
		w.Weight = 1
	}
	if w.Weight < 0 {
		w.Weight = 0
	}
	return w.Weight
}

// VirtualSectorNode builds the synthetic node id used for cross-sector tag
// waypoints, e.g. "3fae...:emotional".
func VirtualSectorNode(memoryID string, sector Sector) string {
	return memoryID + ":" + string(sector)
}
