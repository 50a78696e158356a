// Package apierr classifies failures from external collaborators (scrapers,
// cache/rate-limit backends, AI clients) into the taxonomy spec.md §7
// defines, and carries the retry policy that taxonomy implies.
package apierr

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Category is one of spec.md §7's error classes.
type Category string

const (
	Network      Category = "network"
	Timeout      Category = "timeout"
	Blocked      Category = "blocked"
	RateLimited  Category = "rate_limited"
	AuthRequired Category = "auth_required"
	NotFound     Category = "not_found"
	ServerError  Category = "server_error"
	ParseError   Category = "parse_error"
	Unknown      Category = "unknown"
)

// retryable reports the fixed retryability table from §7: Network, Timeout,
// RateLimited, ServerError, and Unknown are retryable; Blocked, AuthRequired,
// NotFound, and ParseError are fatal.
var retryable = map[Category]bool{
	Network:      true,
	Timeout:      true,
	RateLimited:  true,
	ServerError:  true,
	Unknown:      true,
	Blocked:      false,
	AuthRequired: false,
	NotFound:     false,
	ParseError:   false,
}

// retryAfter is the fixed hint table from §7; categories absent here fall
// back to exponential backoff in RetryAfter.
var retryAfter = map[Category]time.Duration{
	RateLimited: 60 * time.Second,
	ServerError: 10 * time.Second,
	Network:     3 * time.Second,
	Timeout:     5 * time.Second,
}

const maxBackoff = 60 * time.Second

// Error is a classified failure. Wrapped errors remain inspectable via
// errors.Unwrap / errors.Is.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func New(cat Category, message string) *Error {
	return &Error{Category: cat, Message: message}
}

func Wrap(cat Category, err error, message string) *Error {
	return &Error{Category: cat, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether this error's category is retryable per §7.
func (e *Error) Retryable() bool {
	return retryable[e.Category]
}

// CategoryOf extracts the Category from err, defaulting to Unknown when err
// is not a classified *Error.
func CategoryOf(err error) Category {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return Unknown
}

// IsRetryable reports the retryability of err per the §7 table, treating
// unclassified errors as retryable (Unknown is retryable).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return retryable[Unknown]
}

// RetryAfter computes how long to wait before the given attempt number
// (0-indexed) retrying err. Categories with a fixed hint in §7 use it
// directly; everything else uses base*2^attempt + U(0,1s) capped at 60s.
func RetryAfter(err error, attempt int, base time.Duration) time.Duration {
	cat := CategoryOf(err)
	if d, ok := retryAfter[cat]; ok {
		return d
	}
	if base <= 0 {
		base = time.Second
	}
	d := float64(base) * math.Pow(2, float64(attempt))
	d += float64(time.Duration(rand.Int63n(int64(time.Second))))
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}
	return time.Duration(d)
}

// Classify maps a plain error and optional HTTP status code to a Category,
// using the substrings §7 names for Blocked detection (captcha, CF,
// access-denied, bot-flag) ahead of status-code-driven classification.
func Classify(err error, statusCode int) Category {
	if err != nil {
		msg := err.Error()
		if containsAny(msg, "captcha", "cloudflare", "access denied", "access-denied", "bot detected", "blocked") {
			return Blocked
		}
		if containsAny(msg, "timeout", "deadline exceeded") {
			return Timeout
		}
		if containsAny(msg, "no such host", "connection refused", "connection reset", "network is unreachable", "eof") {
			return Network
		}
	}
	switch {
	case statusCode == 429:
		return RateLimited
	case statusCode == 404:
		return NotFound
	case statusCode == 401 || statusCode == 403:
		return AuthRequired
	case statusCode >= 500:
		return ServerError
	case statusCode >= 400:
		return ParseError
	}
	if err != nil {
		return Unknown
	}
	return Unknown
}

func containsAny(s string, subs ...string) bool {
	low := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(low, sub) {
			return true
		}
	}
	return false
}
