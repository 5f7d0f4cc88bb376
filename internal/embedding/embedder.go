package embedding

import "context"

// Embedder maps text to a fixed-length dense vector. Implementations must
// fail loudly: a provider error or an unconfigured provider is an error,
// never a silent zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the fixed vector length this embedder produces. Vectors
	// from embedders with different dimensions must never be mixed without
	// regeneration.
	Dimensions() int
}
