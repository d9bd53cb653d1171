package model

import "time"

// SectorClassification is the outcome of classifying a piece of content: a
// primary sector, zero or more additional sectors, and a confidence score
// for the primary call.
type SectorClassification struct {
	Primary    Sector
	Additional []Sector
	Confidence float64
}

// ClassifierModel is a tenant's learned linear softmax classifier: one
// weight vector and bias per sector, all sharing a single embedding
// dimension.
type ClassifierModel struct {
	UserID    string
	Dim       int
	Weights   map[Sector][]float64
	Biases    map[Sector]float64
	Version   int
	UpdatedAt time.Time
}

// NewClassifierModel returns an empty model for the given tenant/dimension.
func NewClassifierModel(userID string, dim int) *ClassifierModel {
	return &ClassifierModel{
		UserID:  userID,
		Dim:     dim,
		Weights: map[Sector][]float64{},
		Biases:  map[Sector]float64{},
		Version: 1,
	}
}

// CoactivationPair is one (userID?, memIdA, memIdB) entry awaiting flush
// into a Hebbian waypoint-weight update.
type CoactivationPair struct {
	UserID string
	A      string
	B      string
}

// Key returns a canonical, order-independent identity for deduplicating
// pairs already queued in the co-activation buffer.
func (p CoactivationPair) Key() string {
	a, b := p.A, p.B
	if a > b {
		a, b = b, a
	}
	return p.UserID + "\x1f" + a + "\x1f" + b
}
