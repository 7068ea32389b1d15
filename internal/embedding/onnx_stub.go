//go:build !cgo
// +build !cgo

package embedding

import (
	"fmt"

	"github.com/hyperjump/medrag/internal/models"
)

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct {
	Embedder
}

// NewONNXEmbedder returns models.ErrModelUnavailable when built without CGO.
func NewONNXEmbedder(_ ONNXOptions) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("%w: ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime", models.ErrModelUnavailable)
}
