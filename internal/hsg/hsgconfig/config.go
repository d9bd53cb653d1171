// Package hsgconfig holds the HSG engine's tunables: sector table, hybrid
// scoring weights, cache/decay/reinforcement parameters and the injectable
// clock. Modeled directly on the teacher's pkg/memory/engine/options.go
// (Options/DefaultOptions/withDefaults/normalizedWeights), generalized from
// a single flat memory engine's knobs to the HSG's sector-aware ones.
package hsgconfig

import (
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// HybridWeights controls the contribution of each scoring component during
// a query (spec.md §4.3): vector similarity, lexical overlap, graph
// activation, recency and decayed salience. Cross-sector resonance is not
// one of these terms; the query path applies it as a separate multiplier.
type HybridWeights struct {
	Vector     float64
	Lexical    float64
	Activation float64
	Recency    float64
	Salience   float64
}

// Config configures the HSG engine end to end.
type Config struct {
	Sectors     model.SectorTable
	SectorOrder []model.Sector

	HybridWeights HybridWeights

	// Tau is the temporal decay constant (hours) used by the Hebbian
	// co-activation update; Eta bounds the learning rate of that update.
	Tau float64
	Eta float64

	// ReinforcementBoost is applied to every memory a query returns: it is
	// added to the memory's salience, and it is the multiplicative boost
	// given to each waypoint on the spreading-activation path that reached it.
	ReinforcementBoost float64

	// WaypointPruneThreshold: edges with weight below this are pruned
	// during maintenance.
	WaypointPruneThreshold float64

	// SpreadingActivationDecay is applied per hop (multiplicative).
	SpreadingActivationDecay float64
	// SpreadingActivationFloor stops traversal once a path's accumulated
	// weight drops below this value.
	SpreadingActivationFloor float64
	// SpreadingActivationMaxLevel caps traversal depth.
	SpreadingActivationMaxLevel int
	// SpreadingActivationMaxIterations caps total node visits.
	SpreadingActivationMaxIterations int

	// QueryCacheTTL and QueryCacheSize bound the hybrid-query result cache.
	QueryCacheTTL  time.Duration
	QueryCacheSize int
	// ClassifierCacheSize bounds the per-tenant learned-classifier cache.
	ClassifierCacheSize int

	// ClassifierOverrideThreshold: the learned classifier's call overrides
	// the rule-based call once its confidence exceeds this.
	ClassifierOverrideThreshold float64

	// CoactivationBufferMax bounds the in-memory Hebbian buffer; pairs
	// pushed while it is full are dropped, not flushed early.
	CoactivationBufferMax int
	// MaintenanceTick is how often the background maintenance loop runs.
	MaintenanceTick time.Duration

	// Clock allows deterministic tests; defaults to time.Now.
	Clock func() time.Time

	// IsTest disables the background maintenance ticker so unit tests can
	// drive maintenance steps explicitly.
	IsTest bool
}

// DefaultConfig returns the recommended defaults for the HSG engine.
func DefaultConfig() Config {
	return Config{
		Sectors:     model.DefaultSectorTable(),
		SectorOrder: model.DefaultSectorOrder,
		HybridWeights: HybridWeights{
			Vector:     0.45,
			Lexical:    0.15,
			Activation: 0.25,
			Recency:    0.10,
			Salience:   0.05,
		},
		Tau:                              24,
		Eta:                              0.1,
		ReinforcementBoost:               0.05,
		WaypointPruneThreshold:           0.05,
		SpreadingActivationDecay:         0.8,
		SpreadingActivationFloor:         0.1,
		SpreadingActivationMaxLevel:      3,
		SpreadingActivationMaxIterations: 100,
		QueryCacheTTL:                    5 * time.Minute,
		QueryCacheSize:                   500,
		ClassifierCacheSize:              100,
		ClassifierOverrideThreshold:      0.75,
		CoactivationBufferMax:            500,
		MaintenanceTick:                  time.Second,
	}
}

// WithDefaults fills unset fields of c with DefaultConfig's values, the same
// pattern as the teacher's Options.withDefaults.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Sectors == nil {
		c.Sectors = d.Sectors
	}
	if c.SectorOrder == nil {
		c.SectorOrder = d.SectorOrder
	}
	if zeroWeights(c.HybridWeights) {
		c.HybridWeights = d.HybridWeights
	}
	if c.Tau == 0 {
		c.Tau = d.Tau
	}
	if c.Eta == 0 {
		c.Eta = d.Eta
	}
	if c.ReinforcementBoost == 0 {
		c.ReinforcementBoost = d.ReinforcementBoost
	}
	if c.WaypointPruneThreshold == 0 {
		c.WaypointPruneThreshold = d.WaypointPruneThreshold
	}
	if c.SpreadingActivationDecay == 0 {
		c.SpreadingActivationDecay = d.SpreadingActivationDecay
	}
	if c.SpreadingActivationFloor == 0 {
		c.SpreadingActivationFloor = d.SpreadingActivationFloor
	}
	if c.SpreadingActivationMaxLevel == 0 {
		c.SpreadingActivationMaxLevel = d.SpreadingActivationMaxLevel
	}
	if c.SpreadingActivationMaxIterations == 0 {
		c.SpreadingActivationMaxIterations = d.SpreadingActivationMaxIterations
	}
	if c.QueryCacheTTL == 0 {
		c.QueryCacheTTL = d.QueryCacheTTL
	}
	if c.QueryCacheSize == 0 {
		c.QueryCacheSize = d.QueryCacheSize
	}
	if c.ClassifierCacheSize == 0 {
		c.ClassifierCacheSize = d.ClassifierCacheSize
	}
	if c.ClassifierOverrideThreshold == 0 {
		c.ClassifierOverrideThreshold = d.ClassifierOverrideThreshold
	}
	if c.CoactivationBufferMax == 0 {
		c.CoactivationBufferMax = d.CoactivationBufferMax
	}
	if c.MaintenanceTick == 0 {
		c.MaintenanceTick = d.MaintenanceTick
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

func zeroWeights(w HybridWeights) bool {
	return w.Vector == 0 && w.Lexical == 0 && w.Activation == 0 && w.Recency == 0 && w.Salience == 0
}

// NormalizedWeights returns HybridWeights scaled to sum to 1, the same
// normalization the teacher applies to its ScoreWeights.
func (c Config) NormalizedWeights() HybridWeights {
	w := c.HybridWeights
	total := w.Vector + w.Lexical + w.Activation + w.Recency + w.Salience
	if total == 0 {
		return w
	}
	return HybridWeights{
		Vector:     w.Vector / total,
		Lexical:    w.Lexical / total,
		Activation: w.Activation / total,
		Recency:    w.Recency / total,
		Salience:   w.Salience / total,
	}
}
