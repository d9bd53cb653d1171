// Package learn implements the per-tenant learned linear softmax classifier
// (spec.md §4.1): a weight vector and bias per sector, trained online with
// SGD and used to refine or override the rule-based classifier's call once
// a tenant has enough feedback. No example in the retrieval pack carries a
// softmax trainer; this is built from the standard stable-softmax recipe
// using only the standard library math package (see DESIGN.md for why no
// pack dependency fits a single-tenant linear classifier this small).
package learn

import (
	"math"
	"sort"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// Predict scores vector against every sector in the model using a stable
// softmax (subtracting the max logit before exponentiating) and returns the
// resulting classification. Additional sectors are those with probability
// >= 0.10 and >= 0.4 of the primary's probability, capped at 5.
func Predict(m *model.ClassifierModel, vector []float32, order []model.Sector) model.SectorClassification {
	if order == nil {
		order = model.DefaultSectorOrder
	}
	sectors := make([]model.Sector, 0, len(order))
	for _, s := range order {
		if _, ok := m.Weights[s]; ok {
			sectors = append(sectors, s)
		}
	}
	if len(sectors) == 0 {
		return model.SectorClassification{Primary: order[0]}
	}

	logits := make([]float64, len(sectors))
	maxLogit := math.Inf(-1)
	for i, s := range sectors {
		logits[i] = m.Biases[s] + dot(m.Weights[s], vector)
		if logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}
	var sumExp float64
	probs := make([]float64, len(sectors))
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sumExp += probs[i]
	}
	if sumExp == 0 {
		sumExp = 1
	}
	for i := range probs {
		probs[i] /= sumExp
	}

	primaryIdx := 0
	for i, p := range probs {
		if p > probs[primaryIdx] {
			primaryIdx = i
		}
	}
	primary := sectors[primaryIdx]
	primaryProb := probs[primaryIdx]

	type cand struct {
		sector model.Sector
		prob   float64
	}
	var cands []cand
	for i, s := range sectors {
		if s == primary {
			continue
		}
		if probs[i] >= 0.10 && probs[i] >= 0.4*primaryProb {
			cands = append(cands, cand{s, probs[i]})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].prob > cands[j].prob })
	if len(cands) > 5 {
		cands = cands[:5]
	}
	additional := make([]model.Sector, 0, len(cands))
	for _, c := range cands {
		additional = append(additional, c.sector)
	}

	return model.SectorClassification{
		Primary:    primary,
		Additional: additional,
		Confidence: primaryProb,
	}
}

func dot(w []float64, x []float32) float64 {
	n := len(w)
	if len(x) < n {
		n = len(x)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w[i] * float64(x[i])
	}
	return sum
}

// Sample is one labeled training example for Train.
type Sample struct {
	Vector []float32
	Label  model.Sector
}

// TrainOptions controls the SGD pass.
type TrainOptions struct {
	LearningRate float64
	Epochs       int
	// Progress, if set, is called every 50 samples processed (across all
	// epochs) for callers that want to report training progress.
	Progress func(processed int)
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.LearningRate <= 0 {
		o.LearningRate = 0.05
	}
	if o.Epochs <= 0 {
		o.Epochs = 5
	}
	return o
}

// Train runs multi-epoch SGD over samples, updating m in place. A dimension
// mismatch between m.Dim and the first sample's vector triggers an
// archive-and-reset: the caller is expected to have archived the old model
// beforehand (Train itself only resets weights/bias maps for the new
// dimension). Later samples whose length differs from the first sample's
// are skipped.
func Train(m *model.ClassifierModel, samples []Sample, opts TrainOptions) {
	opts = opts.withDefaults()
	if len(samples) == 0 {
		return
	}

	dim := len(samples[0].Vector)
	if m.Dim != dim {
		m.Dim = dim
		m.Weights = map[model.Sector][]float64{}
		m.Biases = map[model.Sector]float64{}
		m.Version++
	}

	ensureSector := func(s model.Sector) {
		if _, ok := m.Weights[s]; ok {
			return
		}
		w := make([]float64, dim)
		for i := range w {
			w[i] = jitter(i)
		}
		m.Weights[s] = w
		m.Biases[s] = 0
	}
	for _, s := range samples {
		ensureSector(s.Label)
	}

	processed := 0
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for _, s := range samples {
			if len(s.Vector) != dim {
				continue
			}
			sectors := make([]model.Sector, 0, len(m.Weights))
			for sec := range m.Weights {
				sectors = append(sectors, sec)
			}
			sort.Slice(sectors, func(i, j int) bool { return sectors[i] < sectors[j] })

			logits := make([]float64, len(sectors))
			maxLogit := math.Inf(-1)
			for i, sec := range sectors {
				logits[i] = m.Biases[sec] + dot(m.Weights[sec], s.Vector)
				if logits[i] > maxLogit {
					maxLogit = logits[i]
				}
			}
			var sumExp float64
			probs := make([]float64, len(sectors))
			for i, l := range logits {
				probs[i] = math.Exp(l - maxLogit)
				sumExp += probs[i]
			}
			if sumExp == 0 {
				sumExp = 1
			}
			for i := range probs {
				probs[i] /= sumExp
			}

			for i, sec := range sectors {
				target := 0.0
				if sec == s.Label {
					target = 1.0
				}
				grad := opts.LearningRate * (target - probs[i])
				w := m.Weights[sec]
				for j := 0; j < dim && j < len(s.Vector); j++ {
					w[j] += grad * float64(s.Vector[j])
				}
				m.Biases[sec] += grad
			}

			processed++
			if opts.Progress != nil && processed%50 == 0 {
				opts.Progress(processed)
			}
		}
	}
	m.Version++
}

// jitter gives each new sector's initial weight vector a small, deterministic
// spread in [-0.005, 0.005) rather than all-zero weights. The value depends
// only on the component index, so every newly added sector starts from the
// same vector.
func jitter(i int) float64 {
	const span = 0.01
	frac := math.Mod(float64(i)*0.6180339887, 1.0) // fractional part of i*phi
	return frac*span - span/2
}
