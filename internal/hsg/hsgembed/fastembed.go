//go:build fastembed

package hsgembed

import (
	"context"
	"runtime"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedOptions mirrors the teacher's fastembed Options shape.
type FastEmbedOptions struct {
	Model     fastembed.EmbeddingModel
	CacheDir  string
	MaxLength int
	BatchSize int
}

type fastEmbedder struct {
	m  *fastembed.FlagEmbedding
	bs int
}

func defaultFastEmbedOptions() *FastEmbedOptions { return &FastEmbedOptions{} }

// NewFastEmbedder loads a local bge-small-en-v1.5 model for offline,
// dependency-free embedding.
func NewFastEmbedder(ctx context.Context, opt *FastEmbedOptions) (TextEmbedder, error) {
	var init *fastembed.InitOptions
	if opt != nil {
		init = &fastembed.InitOptions{
			Model:     opt.Model,
			CacheDir:  opt.CacheDir,
			MaxLength: opt.MaxLength,
		}
	}
	m, err := fastembed.NewFlagEmbedding(init)
	if err != nil {
		return nil, err
	}
	bs := 64
	if opt != nil && opt.BatchSize > 0 {
		bs = opt.BatchSize
	}
	if bs > 4*runtime.GOMAXPROCS(0) {
		bs = 4 * runtime.GOMAXPROCS(0)
	}
	return &fastEmbedder{m: m, bs: bs}, nil
}

func (e *fastEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.m.QueryEmbed(text)
}
