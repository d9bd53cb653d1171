package hsgengine

import (
	"context"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/learn"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// classify combines the rule-based classifier with a tenant's learned
// classifier, if one has been trained, and an explicit metadata.sector
// override (spec.md §4.1/§4.2 step 1):
//
//   - an explicit metadata.sector naming a declared sector wins outright,
//     skipping the learned classifier entirely;
//   - otherwise, once userID is set, the rule-based call landed on
//     semantic (its default), and a learned model exists for userID, the
//     learned call overrides the rule-based result once its confidence
//     exceeds cfg.ClassifierOverrideThreshold.
//
// The semantic-sector seed embedding computed along the way is returned so
// the write path can reuse it instead of embedding the same content twice.
func (e *Engine) classify(ctx context.Context, userID, content string, meta model.Metadata) (model.SectorClassification, []float32) {
	ruleResult := e.rules.Classify(content)

	seedVec, err := e.embedder.EmbedForSector(ctx, content, model.SectorSemantic)
	if err != nil {
		e.logf("classify: seed embed failed for user %s: %v", userID, err)
		seedVec = nil
	}

	if sector, ok := e.explicitSector(meta); ok {
		return model.SectorClassification{Primary: sector, Additional: ruleResult.Additional, Confidence: 1}, seedVec
	}

	if userID != "" && ruleResult.Primary == model.SectorSemantic && seedVec != nil {
		if cm, ok := e.classifierModel(userID); ok && cm.Dim == len(seedVec) {
			learned := learn.Predict(cm, seedVec, e.cfg.SectorOrder)
			if learned.Confidence > e.cfg.ClassifierOverrideThreshold {
				return learned, seedVec
			}
		}
	}
	return ruleResult, seedVec
}

// explicitSector reports the sector named by meta["sector"], if any, when
// it names one of the engine's declared sectors (spec.md §4.2 step 1's "no
// explicit metadata.sector" precondition).
func (e *Engine) explicitSector(meta model.Metadata) (model.Sector, bool) {
	raw, ok := meta["sector"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}
	sector := model.Sector(s)
	if _, known := e.cfg.Sectors[sector]; !known {
		return "", false
	}
	return sector, true
}

func (e *Engine) classifierModel(userID string) (*model.ClassifierModel, bool) {
	v, ok := e.classifierCache.Get(userID)
	if !ok {
		return nil, false
	}
	cm, ok := v.(*model.ClassifierModel)
	return cm, ok
}

// TrainClassifier runs online SGD over samples and caches the resulting
// model for userID (spec.md §4.1). The model lives only in the classifier
// cache; it is never persisted, so a process restart or cache eviction
// reverts a tenant to the rule-based classifier until retrained.
func (e *Engine) TrainClassifier(userID string, samples []learn.Sample, opts learn.TrainOptions) *model.ClassifierModel {
	cm, ok := e.classifierModel(userID)
	if !ok {
		dim := 0
		if len(samples) > 0 {
			dim = len(samples[0].Vector)
		}
		cm = model.NewClassifierModel(userID, dim)
	}
	learn.Train(cm, samples, opts)
	e.classifierCache.Set(userID, cm)
	return cm
}

func uniqueSectors(primary model.Sector, additional []model.Sector) []model.Sector {
	seen := map[model.Sector]bool{primary: true}
	out := []model.Sector{primary}
	for _, s := range additional {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
