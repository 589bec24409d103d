// Package embeddings maps text to dense vectors. The meeting archive uses
// them to find meetings by meaning rather than by keyword.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is a text-embedding backend. Every vector a Provider returns has
// length Dimensions().
type Provider interface {
	// Embed returns the vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the fixed vector length. The archive sizes its vector
	// column from it when the schema is first created.
	Dimensions() int

	// ModelID identifies the model, so vectors from different models are
	// never compared.
	ModelID() string
}
