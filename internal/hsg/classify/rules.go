// Package classify implements the rule-based sector classifier (spec.md
// §4.1): a per-sector keyword/regex table scanned against incoming content,
// with longest-match tie-break and a declared-order fallback. Grounded on
// the teacher's importanceScore keyword list in pkg/memory/engine.go (a
// flat slice of urgency keywords scanned with strings.Contains), generalized
// here from one importance axis to one axis per sector.
package classify

import (
	"regexp"
	"strings"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// Rule is one keyword or regex pattern contributing to a sector's score.
// Exactly one of Keyword or Pattern is set.
type Rule struct {
	Keyword string
	Pattern *regexp.Regexp
	Weight  float64
}

// Table maps each sector to its ordered list of rules.
type Table map[model.Sector][]Rule

// DefaultTable returns the built-in keyword tables for the five core
// sectors, in the spirit of the teacher's urgentKeywords list but split
// across sector axes instead of a single importance axis.
func DefaultTable() Table {
	return Table{
		model.SectorEmotional: keywordRules(1.0,
			"feel", "feels", "feeling", "felt", "happy", "sad", "angry", "anxious",
			"excited", "worried", "love", "hate", "afraid", "scared", "proud",
			"frustrated", "grateful", "nervous", "joy", "fear",
		),
		model.SectorProcedural: keywordRules(1.0,
			"step", "steps", "how to", "procedure", "instructions", "first,",
			"then,", "next,", "finally,", "recipe", "algorithm", "configure",
			"install", "setup", "command", "script",
		),
		model.SectorEpisodic: keywordRules(1.0,
			"yesterday", "today", "tomorrow", "last week", "ago", "remember when",
			"happened", "we went", "i went", "met with", "attended", "at the",
			"on monday", "on tuesday", "on wednesday", "on thursday", "on friday",
		),
		model.SectorReflective: keywordRules(1.0,
			"i think", "i believe", "in retrospect", "looking back", "i realize",
			"i learned", "lesson", "reflection", "in hindsight", "i wonder",
			"i should have", "next time i",
		),
		model.SectorSemantic: keywordRules(0.5,
			"is a", "is the", "refers to", "defined as", "means that", "fact",
		),
	}
}

func keywordRules(weight float64, keywords ...string) []Rule {
	rules := make([]Rule, 0, len(keywords))
	for _, kw := range keywords {
		rules = append(rules, Rule{Keyword: kw, Weight: weight})
	}
	return rules
}

// Classifier applies a Table against lowercased content to produce a
// SectorClassification.
type Classifier struct {
	table Table
	order []model.Sector
}

// New builds a Classifier. order is the declared tie-break order; if nil,
// model.DefaultSectorOrder is used.
func New(table Table, order []model.Sector) *Classifier {
	if order == nil {
		order = model.DefaultSectorOrder
	}
	return &Classifier{table: table, order: order}
}

type sectorScore struct {
	sector      model.Sector
	score       float64
	longestHit  int
}

// Classify scores content against every declared sector and returns the
// winning primary plus any sector scoring at least 40% of the primary's
// score as additional.
func (c *Classifier) Classify(content string) model.SectorClassification {
	lower := strings.ToLower(content)
	scores := make([]sectorScore, 0, len(c.order))

	for _, sector := range c.order {
		rules := c.table[sector]
		var total float64
		longest := 0
		for _, rule := range rules {
			if rule.Pattern != nil {
				if loc := rule.Pattern.FindStringIndex(lower); loc != nil {
					total += rule.Weight
					if n := loc[1] - loc[0]; n > longest {
						longest = n
					}
				}
				continue
			}
			if rule.Keyword == "" {
				continue
			}
			if strings.Contains(lower, rule.Keyword) {
				total += rule.Weight
				if n := len(rule.Keyword); n > longest {
					longest = n
				}
			}
		}
		scores = append(scores, sectorScore{sector: sector, score: total, longestHit: longest})
	}

	primary := pickPrimary(scores, c.order)
	var additional []model.Sector
	if primary.score > 0 {
		threshold := primary.score * 0.4
		for _, s := range scores {
			if s.sector == primary.sector {
				continue
			}
			if s.score >= threshold && s.score > 0 {
				additional = append(additional, s.sector)
			}
		}
	}

	confidence := primary.score
	if confidence > 1 {
		confidence = 1
	}
	return model.SectorClassification{
		Primary:    primary.sector,
		Additional: additional,
		Confidence: confidence,
	}
}

// pickPrimary finds the sector with the longest single keyword/pattern
// match; ties broken by declared order; sectors with no match at all fall
// back to the first entry of order (semantic, by default).
func pickPrimary(scores []sectorScore, order []model.Sector) sectorScore {
	best := sectorScore{sector: order[0]}
	bestRank := len(order)
	found := false
	for _, s := range scores {
		if s.longestHit == 0 {
			continue
		}
		rank := rankOf(s.sector, order)
		switch {
		case !found:
			best, bestRank, found = s, rank, true
		case s.longestHit > best.longestHit:
			best, bestRank = s, rank
		case s.longestHit == best.longestHit && rank < bestRank:
			best, bestRank = s, rank
		}
	}
	return best
}

func rankOf(sector model.Sector, order []model.Sector) int {
	for i, s := range order {
		if s == sector {
			return i
		}
	}
	return len(order)
}
