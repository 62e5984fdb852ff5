// Package mock provides a test double for the ai.Embedder interface.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedderWithDimension(8)
//	vectors, err := embedder.EmbedTexts(ctx, []string{"a", "b"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("unavailable")
//	}
//
//	count := embedder.CallCount()
//
// By default vectors are deterministic unit vectors derived from an FNV hash
// of the text.
package mock
