package learn

import (
	"testing"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func TestTrainConvergesOnSeparableData(t *testing.T) {
	m := model.NewClassifierModel("tenant-1", 2)
	samples := []Sample{
		{Vector: []float32{1, 0}, Label: model.SectorSemantic},
		{Vector: []float32{0.9, 0.1}, Label: model.SectorSemantic},
		{Vector: []float32{0, 1}, Label: model.SectorEmotional},
		{Vector: []float32{0.1, 0.9}, Label: model.SectorEmotional},
	}
	Train(m, samples, TrainOptions{LearningRate: 0.5, Epochs: 200})

	got := Predict(m, []float32{1, 0}, nil)
	if got.Primary != model.SectorSemantic {
		t.Fatalf("primary = %s, want semantic", got.Primary)
	}
	got2 := Predict(m, []float32{0, 1}, nil)
	if got2.Primary != model.SectorEmotional {
		t.Fatalf("primary = %s, want emotional", got2.Primary)
	}
}

func TestTrainResetsOnDimensionMismatch(t *testing.T) {
	m := model.NewClassifierModel("tenant-1", 2)
	Train(m, []Sample{{Vector: []float32{1, 0}, Label: model.SectorSemantic}}, TrainOptions{Epochs: 1})
	Train(m, []Sample{{Vector: []float32{1, 0, 0}, Label: model.SectorEmotional}}, TrainOptions{Epochs: 1})
	if m.Dim != 3 {
		t.Fatalf("dim = %d, want 3 after mismatch reset", m.Dim)
	}
	if len(m.Weights[model.SectorSemantic]) != 0 {
		t.Fatalf("expected semantic weights cleared on reset")
	}
}

func TestPredictAdditionalSectorsBounded(t *testing.T) {
	m := model.NewClassifierModel("tenant-1", 1)
	m.Weights[model.SectorSemantic] = []float64{1}
	m.Weights[model.SectorEmotional] = []float64{0.95}
	m.Weights[model.SectorProcedural] = []float64{0.9}
	m.Weights[model.SectorEpisodic] = []float64{0.85}
	m.Weights[model.SectorReflective] = []float64{0.8}
	got := Predict(m, []float32{1}, nil)
	if len(got.Additional) > 5 {
		t.Fatalf("additional sectors = %d, want <= 5", len(got.Additional))
	}
}

func TestProgressCallbackFiresEvery50(t *testing.T) {
	m := model.NewClassifierModel("tenant-1", 1)
	samples := make([]Sample, 60)
	for i := range samples {
		samples[i] = Sample{Vector: []float32{float32(i % 2)}, Label: model.SectorSemantic}
	}
	calls := 0
	Train(m, samples, TrainOptions{Epochs: 1, Progress: func(int) { calls++ }})
	if calls != 1 {
		t.Fatalf("progress calls = %d, want 1 for 60 samples in one epoch", calls)
	}
}
