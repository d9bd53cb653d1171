package hsgstore

import "testing"

func TestFloat64VecRoundTrip(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 7}
	got := float32Vec(float64Vec(v))
	if len(got) != len(v) {
		t.Fatalf("got %d components, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("component %d = %v, want %v", i, got[i], v[i])
		}
	}
}

func TestFloat64VecNilForEmpty(t *testing.T) {
	if got := float64Vec(nil); got != nil {
		t.Fatalf("expected nil for an empty vector, got %v", got)
	}
	if got := float32Vec(nil); got != nil {
		t.Fatalf("expected nil for an empty vector, got %v", got)
	}
}
