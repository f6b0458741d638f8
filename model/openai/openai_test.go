package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewModel_AppliesOptions(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-4o"
		o.Temperature = 0.2
		o.MaxCompletionTokens = 512
		o.APIKey = "sk-test"
	})

	assert.Equal(t, "gpt-4o", m.opts.Model)
	assert.Equal(t, 0.2, m.opts.Temperature)
	assert.Equal(t, int64(512), m.opts.MaxCompletionTokens)
	assert.Equal(t, "sk-test", m.opts.APIKey, "configured key must reach the client options")

	info := m.Info()
	assert.Equal(t, "gpt-4o", info.Name)
	assert.Equal(t, "openai", info.Provider)
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel()
	assert.NotEmpty(t, m.opts.Model)
	assert.Empty(t, m.opts.APIKey, "without a configured key the SDK's own env lookup applies")
}
