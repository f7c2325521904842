package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "none", cfg.APIToken)
}

func TestNewConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithEmbeddingHost("http://embeddings.internal:8080/v1"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithAPIToken("sk-test"),
	)
	assert.Equal(t, "http://embeddings.internal:8080/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "sk-test", cfg.APIToken)
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"adds v1 suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"strips trailing slash first", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"keeps existing v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty host untouched", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
		})
	}

	t.Run("empty token becomes none", func(t *testing.T) {
		cfg := &Config{EmbeddingHost: "http://localhost:11434"}
		cfg.Normalize()
		assert.Equal(t, "none", cfg.APIToken)
	})
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	missingHost := &Config{EmbeddingModel: "embeddinggemma"}
	assert.Error(t, missingHost.Validate())

	missingModel := &Config{EmbeddingHost: "http://localhost:11434"}
	assert.Error(t, missingModel.Validate())
}
