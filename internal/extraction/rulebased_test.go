package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleBasedExtractFindsEmailsAndURLs(t *testing.T) {
	s := RuleBasedStrategy{}
	result, err := s.Extract(context.Background(), Context{
		Text: "Contact us at sales@example.com or visit https://example.com/pricing for details.",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Entities, 2)
}

func TestRuleBasedExtractDedupesRepeatedMatches(t *testing.T) {
	s := RuleBasedStrategy{}
	result, err := s.Extract(context.Background(), Context{
		Text: "Email a@b.com twice: a@b.com again.",
	})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 1)
}

func TestRuleBasedExtractFallsBackToMarkdownWhenTextEmpty(t *testing.T) {
	s := RuleBasedStrategy{}
	result, err := s.Extract(context.Background(), Context{Markdown: "reach out: hi@example.org"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "email", result.Entities[0]["type"])
}

func TestRuleBasedExtractReturnsUnsuccessfulOnNoMatches(t *testing.T) {
	s := RuleBasedStrategy{}
	result, err := s.Extract(context.Background(), Context{Text: "nothing interesting here"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Entities)
}

func TestRuleBasedStrategyIsAlwaysAvailable(t *testing.T) {
	assert.True(t, RuleBasedStrategy{}.IsAvailable())
	assert.Equal(t, TagRuleBased, RuleBasedStrategy{}.Tag())
}
