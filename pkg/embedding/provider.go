package embedding

import "context"

// EmbeddingProvider converts text to fixed-dimension vectors. Every returned
// vector has exactly Dimension() entries or the call fails with a
// *DimensionMismatchError. Providers never cache.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// CheckDimension validates a single vector against the configured size.
func CheckDimension(provider string, expected int, vector []float32) error {
	if len(vector) != expected {
		return &DimensionMismatchError{Provider: provider, Expected: expected, Got: len(vector)}
	}
	return nil
}

// CheckBatch validates the number of vectors and the size of each one.
func CheckBatch(provider string, expected int, inputs int, vectors [][]float32) error {
	if len(vectors) != inputs {
		return &UpstreamError{
			Provider: provider,
			Message:  "returned " + itoa(len(vectors)) + " embeddings for " + itoa(inputs) + " inputs",
		}
	}
	for _, v := range vectors {
		if err := CheckDimension(provider, expected, v); err != nil {
			return err
		}
	}
	return nil
}
