//go:build !fastembed

package hsgembed

import (
	"context"
	"fmt"
)

// FastEmbedOptions mirrors the teacher's fastembed Options shape.
type FastEmbedOptions struct {
	CacheDir  string
	MaxLength int
	BatchSize int
}

func defaultFastEmbedOptions() *FastEmbedOptions { return nil }

// NewFastEmbedder is unavailable without the fastembed build tag.
func NewFastEmbedder(ctx context.Context, opt *FastEmbedOptions) (TextEmbedder, error) {
	return nil, fmt.Errorf("hsgembed: fastembed support not included; rebuild with -tags fastembed")
}
