package apierr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryableTableMatchesSpecTaxonomy(t *testing.T) {
	assert.True(t, New(Network, "x").Retryable())
	assert.True(t, New(Timeout, "x").Retryable())
	assert.True(t, New(RateLimited, "x").Retryable())
	assert.True(t, New(ServerError, "x").Retryable())
	assert.True(t, New(Unknown, "x").Retryable())

	assert.False(t, New(Blocked, "x").Retryable())
	assert.False(t, New(AuthRequired, "x").Retryable())
	assert.False(t, New(NotFound, "x").Retryable())
	assert.False(t, New(ParseError, "x").Retryable())
}

func TestCategoryOfUnwrapsClassifiedError(t *testing.T) {
	wrapped := Wrap(Blocked, errors.New("captcha"), "detected captcha wall")
	var err error = wrapped
	assert.Equal(t, Blocked, CategoryOf(err))
}

func TestCategoryOfDefaultsToUnknownForPlainError(t *testing.T) {
	assert.Equal(t, Unknown, CategoryOf(errors.New("plain")))
}

func TestIsRetryableOnNilErrorIsFalse(t *testing.T) {
	assert.False(t, IsRetryable(nil))
}

func TestIsRetryableTreatsUnclassifiedAsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("plain")))
}

func TestUnwrapExposesUnderlyingError(t *testing.T) {
	underlying := errors.New("dial tcp: connection refused")
	wrapped := Wrap(Network, underlying, "dial failed")
	assert.ErrorIs(t, wrapped, underlying)
}

func TestRetryAfterUsesFixedHintForRateLimited(t *testing.T) {
	d := RetryAfter(New(RateLimited, "x"), 0, time.Second)
	assert.Equal(t, 60*time.Second, d)
}

func TestRetryAfterExponentialBackoffCappedAtMax(t *testing.T) {
	d := RetryAfter(New(ParseError, "x"), 10, time.Second)
	assert.LessOrEqual(t, d, maxBackoff)
}

func TestRetryAfterGrowsWithAttempt(t *testing.T) {
	early := RetryAfter(New(ParseError, "x"), 0, time.Second)
	later := RetryAfter(New(ParseError, "x"), 3, time.Second)
	assert.Less(t, early, later)
}

func TestClassifyDetectsBlockedBeforeStatusCode(t *testing.T) {
	cat := Classify(errors.New("request failed: cloudflare challenge"), 200)
	assert.Equal(t, Blocked, cat)
}

func TestClassifyDetectsNetworkErrorSubstrings(t *testing.T) {
	cat := Classify(errors.New("dial tcp: connection refused"), 0)
	assert.Equal(t, Network, cat)
}

func TestClassifyMapsStatusCodesWhenErrIsNil(t *testing.T) {
	assert.Equal(t, RateLimited, Classify(nil, 429))
	assert.Equal(t, NotFound, Classify(nil, 404))
	assert.Equal(t, AuthRequired, Classify(nil, 401))
	assert.Equal(t, AuthRequired, Classify(nil, 403))
	assert.Equal(t, ServerError, Classify(nil, 503))
	assert.Equal(t, ParseError, Classify(nil, 418))
	assert.Equal(t, Unknown, Classify(nil, 200))
}

func TestErrorMessageIncludesWrappedCause(t *testing.T) {
	wrapped := Wrap(Network, errors.New("eof"), "read failed")
	assert.Contains(t, wrapped.Error(), "read failed")
	assert.Contains(t, wrapped.Error(), "eof")
}
