package hsgstore

import (
	"testing"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func TestPointIDIsDeterministic(t *testing.T) {
	a := pointID("mem-1", model.SectorSemantic)
	b := pointID("mem-1", model.SectorSemantic)
	if a != b {
		t.Fatalf("pointID must be deterministic for the same (memoryID, sector): got %s and %s", a, b)
	}
}

func TestPointIDDiffersBySectorAndMemory(t *testing.T) {
	base := pointID("mem-1", model.SectorSemantic)
	if got := pointID("mem-1", model.SectorEmotional); got == base {
		t.Fatalf("expected different sectors to produce different point ids")
	}
	if got := pointID("mem-2", model.SectorSemantic); got == base {
		t.Fatalf("expected different memory ids to produce different point ids")
	}
}

func TestAsStringAndAsFloatTolerateWrongTypes(t *testing.T) {
	if got := asString(42); got != "" {
		t.Fatalf("asString on a non-string should return empty, got %q", got)
	}
	if got := asFloat("not a number"); got != 0 {
		t.Fatalf("asFloat on a non-numeric should return 0, got %v", got)
	}
	if got := asFloat(float64(3)); got != 3 {
		t.Fatalf("asFloat(float64(3)) = %v, want 3", got)
	}
}

func TestIsCollectionMissingMatchesExpectedPhrasing(t *testing.T) {
	if !isCollectionMissing(errCollectionNotFound()) {
		t.Fatalf("expected a not-found error to be recognized")
	}
	if isCollectionMissing(nil) {
		t.Fatalf("nil error must not be treated as collection-missing")
	}
}

func errCollectionNotFound() error {
	return &testErr{"Not found: Collection `hsg_semantic` doesn't exist!"}
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
