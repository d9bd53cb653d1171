// Package simhash computes a 64-bit locality-sensitive fingerprint used for
// idempotent content dedup on the write path (spec.md §4.2 step 2). New code
// — the teacher has no fingerprinting of its own — built in the standard
// token-weighted-bit-vote shape common to simhash implementations, using
// only the standard library hash/fnv for per-token hashing.
package simhash

import (
	"hash/fnv"
	"strings"
)

// Sum64 returns the 64-bit simhash of text: deterministic for identical
// input, and expected to change whenever the token multiset changes
// meaningfully (spec.md invariant 6).
func Sum64(text string) uint64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}
	var weights [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		hv := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if hv&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}
	var out uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			out |= 1 << uint(bit)
		}
	}
	return out
}

// HammingDistance returns the number of differing bits between two
// fingerprints, useful for near-duplicate thresholds beyond exact match.
func HammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
