package hsgstore

import "testing"

func TestVectorLiteralRoundTrip(t *testing.T) {
	v := []float32{1.5, -2.25, 0}
	lit := vectorLiteral(v)
	got := parseVectorLiteral(lit)
	if len(got) != len(v) {
		t.Fatalf("got %d components, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("component %d = %v, want %v", i, got[i], v[i])
		}
	}
}

func TestParseVectorLiteralEmpty(t *testing.T) {
	if got := parseVectorLiteral("[]"); got != nil {
		t.Fatalf("expected nil for empty literal, got %v", got)
	}
}
