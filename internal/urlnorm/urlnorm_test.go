package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCanonicalizesCaseQueryAndFragment(t *testing.T) {
	got := Normalize("HTTPS://Example.COM/Path/?b=2&a=1#frag", "")
	assert.Equal(t, "https://example.com/Path?a=1&b=2", got)
}

func TestNormalizeResolvesRelativeAgainstBase(t *testing.T) {
	base := "https://example.com/Path"
	got := Normalize("foo/bar/", base)
	assert.Equal(t, "https://example.com/foo/bar", got)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once := Normalize("HTTPS://Example.COM/Path/?b=2&a=1#frag", "")
	twice := Normalize(once, "")
	assert.Equal(t, once, twice)
}

func TestNormalizeKeepsRootSlash(t *testing.T) {
	assert.Equal(t, "https://example.com/", Normalize("https://example.com/", ""))
}

func TestNormalizeReturnsInputVerbatimOnParseFailure(t *testing.T) {
	raw := "://::not a url"
	assert.Equal(t, raw, Normalize(raw, ""))
}

func TestSameDomainIgnoresWWWPrefix(t *testing.T) {
	assert.True(t, SameDomain("https://www.example.com/a", "https://example.com/b"))
	assert.False(t, SameDomain("https://example.com/a", "https://other.com/b"))
}

func TestShouldFollowRejectsBlockedExtension(t *testing.T) {
	ok := ShouldFollow("https://example.com/image.png", "https://example.com/", FollowConfig{})
	assert.False(t, ok)
}

func TestShouldFollowRejectsBlockedPathSubstring(t *testing.T) {
	ok := ShouldFollow("https://example.com/api/widgets", "https://example.com/", FollowConfig{})
	assert.False(t, ok)
}

func TestShouldFollowRejectsExternalWhenNotAllowed(t *testing.T) {
	ok := ShouldFollow("https://other.com/page", "https://example.com/", FollowConfig{FollowExternalLinks: false})
	assert.False(t, ok)
}

func TestShouldFollowAllowsExternalWhenConfigured(t *testing.T) {
	ok := ShouldFollow("https://other.com/page", "https://example.com/", FollowConfig{FollowExternalLinks: true})
	assert.True(t, ok)
}

func TestShouldFollowHonorsAllowedDomainsSuffixMatch(t *testing.T) {
	cfg := FollowConfig{FollowExternalLinks: true, AllowedDomains: []string{"example.com"}}
	assert.True(t, ShouldFollow("https://blog.example.com/post", "https://example.com/", cfg))
	assert.False(t, ShouldFollow("https://evil.com/post", "https://example.com/", cfg))
}

func TestShouldFollowIgnoresInvalidBlockedPatternRegex(t *testing.T) {
	cfg := FollowConfig{BlockedPatterns: []string{"("}}
	ok := ShouldFollow("https://example.com/page", "https://example.com/", cfg)
	assert.True(t, ok)
}

func TestShouldFollowAppliesBlockedRegexPattern(t *testing.T) {
	cfg := FollowConfig{BlockedPatterns: []string{"/private/"}}
	ok := ShouldFollow("https://example.com/private/page", "https://example.com/", cfg)
	assert.False(t, ok)
}
