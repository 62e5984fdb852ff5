package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// DefaultDimension is the vector size produced when none is configured.
const DefaultDimension = 384

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	dim int

	mu        sync.Mutex
	callCount int
	textCount int
}

// NewMockEmbedder creates a mock embedder producing vectors of DefaultDimension.
// Returns the concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dim: DefaultDimension}
}

// NewMockEmbedderWithDimension creates a mock embedder producing vectors of dim components.
func NewMockEmbedderWithDimension(dim int) *MockEmbedder {
	return &MockEmbedder{dim: dim}
}

// Dimension returns the size of the vectors produced by default.
func (m *MockEmbedder) Dimension() int {
	return m.dim
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.record(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return GenerateVector(text, m.dim), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.record(len(texts))

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = GenerateVector(text, m.dim)
	}
	return vectors, nil
}

func (m *MockEmbedder) record(texts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.textCount += texts
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// TextCount returns the total number of texts embedded.
func (m *MockEmbedder) TextCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.textCount
}

// Reset clears the counters and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.textCount = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// GenerateVector creates a deterministic unit vector from text.
// The same text always produces the same vector.
func GenerateVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	var sumSquares float64
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 + 0.001
		sumSquares += float64(vector[i]) * float64(vector[i])
	}

	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}
