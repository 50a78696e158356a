package aiclient

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
)

func TestNewWithoutAPIKeyIsUnavailable(t *testing.T) {
	c := New(Config{})
	assert.False(t, c.Available())
}

func TestNewWithAPIKeyIsAvailable(t *testing.T) {
	c := New(Config{APIKey: "sk-ant-test"})
	assert.True(t, c.Available())
}

func TestNewDefaultsModelWhenUnset(t *testing.T) {
	c := New(Config{APIKey: "sk-ant-test"})
	assert.Equal(t, string(anthropic.ModelClaudeSonnet4_20250514), c.model)
}

func TestNewHonorsExplicitModel(t *testing.T) {
	c := New(Config{APIKey: "sk-ant-test", Model: "claude-3-haiku-20240307"})
	assert.Equal(t, "claude-3-haiku-20240307", c.model)
}

func TestStringSliceExtractsStringsFromAnySlice(t *testing.T) {
	out := stringSlice([]any{"a", "b", 3, "c"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestStringSliceReturnsNilForNonSlice(t *testing.T) {
	assert.Nil(t, stringSlice("not a slice"))
}
