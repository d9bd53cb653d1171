package hsgconfig

import "testing"

func TestWithDefaultsFillsZeroValue(t *testing.T) {
	var c Config
	c = c.WithDefaults()
	if c.Sectors == nil || len(c.Sectors) == 0 {
		t.Fatalf("expected default sector table")
	}
	if c.Clock == nil {
		t.Fatalf("expected default clock")
	}
	if c.SpreadingActivationMaxLevel != 3 {
		t.Fatalf("max level = %d, want 3", c.SpreadingActivationMaxLevel)
	}
}

func TestWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{WaypointPruneThreshold: 0.5}
	c = c.WithDefaults()
	if c.WaypointPruneThreshold != 0.5 {
		t.Fatalf("prune threshold = %v, want 0.5 preserved", c.WaypointPruneThreshold)
	}
}

func TestNormalizedWeightsSumToOne(t *testing.T) {
	c := DefaultConfig().WithDefaults()
	w := c.NormalizedWeights()
	sum := w.Vector + w.Lexical + w.Activation + w.Recency + w.Salience
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("sum = %v, want ~1", sum)
	}
}
