//go:build !onnx

package embed

import (
	"context"
	"fmt"
)

// ONNX is unavailable in builds without the onnx tag.
type ONNX struct{}

func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	return nil, fmt.Errorf("onnx embedder not compiled in, rebuild with -tags onnx")
}

func (e *ONNX) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: onnx embedder not compiled in", ErrEmbeddingFailure)
}

func (e *ONNX) Dimensions() int { return DefaultDimensions }

func (e *ONNX) Close() error { return nil }
