package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "none", cfg.APIKey)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, DefaultHost, cfg.EmbeddingHost)
		assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://custom:8080/v1"),
			WithEmbeddingModel("custom-embed"),
			WithAPIKey("sk-test"),
			WithBatchSize(32),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, 32, cfg.BatchSize)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{name: "already has /v1", host: "http://localhost:11434/v1", expected: "http://localhost:11434/v1"},
		{name: "missing /v1", host: "http://localhost:11434", expected: "http://localhost:11434/v1"},
		{name: "has trailing slash", host: "http://localhost:11434/", expected: "http://localhost:11434/v1"},
		{name: "empty host", host: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}

			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
		})
	}

	t.Run("fills defaults", func(t *testing.T) {
		cfg := &Config{EmbeddingHost: "http://localhost:11434"}
		cfg.Normalize()

		assert.Equal(t, "none", cfg.APIKey)
		assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost:  "http://localhost:11434",
			EmbeddingModel: "embeddinggemma",
		}

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := &Config{EmbeddingModel: "embeddinggemma"}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := &Config{EmbeddingHost: "http://localhost:11434/v1"}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("negative batch size", func(t *testing.T) {
		cfg := NewConfig(WithBatchSize(-1))

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BatchSize")
	})
}
