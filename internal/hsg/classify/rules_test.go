package classify

import (
	"testing"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func TestClassifyEmotional(t *testing.T) {
	c := New(DefaultTable(), nil)
	got := c.Classify("I feel so anxious and worried about the deadline")
	if got.Primary != model.SectorEmotional {
		t.Fatalf("primary = %s, want emotional", got.Primary)
	}
}

func TestClassifyProcedural(t *testing.T) {
	c := New(DefaultTable(), nil)
	got := c.Classify("Here is how to install and configure the script step by step")
	if got.Primary != model.SectorProcedural {
		t.Fatalf("primary = %s, want procedural", got.Primary)
	}
}

func TestClassifyDefaultsToSemanticOnNoMatch(t *testing.T) {
	c := New(DefaultTable(), nil)
	got := c.Classify("xyzzy plugh qwerty")
	if got.Primary != model.SectorSemantic {
		t.Fatalf("primary = %s, want semantic default", got.Primary)
	}
	if got.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", got.Confidence)
	}
}

func TestClassifyAdditionalSectors(t *testing.T) {
	c := New(DefaultTable(), nil)
	got := c.Classify("Yesterday I felt so proud after finishing the setup steps")
	if len(got.Additional)+1 < 2 {
		t.Fatalf("expected at least one additional sector alongside primary, got %+v", got)
	}
}

func TestClassifyTieBreakUsesDeclaredOrder(t *testing.T) {
	table := Table{
		model.SectorEmotional:  keywordRules(1.0, "match"),
		model.SectorEpisodic:   keywordRules(1.0, "match"),
		model.SectorProcedural: {},
		model.SectorReflective: {},
		model.SectorSemantic:   {},
	}
	order := []model.Sector{model.SectorEmotional, model.SectorEpisodic, model.SectorProcedural, model.SectorReflective, model.SectorSemantic}
	c := New(table, order)
	got := c.Classify("this content should match")
	if got.Primary != model.SectorEmotional {
		t.Fatalf("primary = %s, want emotional (earlier in declared order)", got.Primary)
	}
}
