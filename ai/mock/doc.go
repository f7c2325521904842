// Package mock provides test double implementations of the AI service
// interfaces.
//
// The mocks allow tests to run without an external embedding service and
// enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	vector, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// The default embedder returns unit-norm vectors derived from an FNV hash of
// the text, so the same text always embeds to the same vector.
package mock
