package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddReportsExistingMembership(t *testing.T) {
	d := New()
	assert.False(t, d.Add("https://example.com/"))
	assert.True(t, d.Add("https://example.com/"))
	assert.Equal(t, 1, d.Duplicates())
	assert.Equal(t, 1, d.Size())
}

func TestContainsDoesNotMutate(t *testing.T) {
	d := New()
	assert.False(t, d.Contains("https://example.com/"))
	d.Add("https://example.com/")
	assert.True(t, d.Contains("https://example.com/"))
	assert.Equal(t, 0, d.Duplicates())
}

func TestClearResetsSetAndCounter(t *testing.T) {
	d := New()
	d.Add("https://example.com/")
	d.Add("https://example.com/")
	d.Clear()
	assert.Equal(t, 0, d.Size())
	assert.Equal(t, 0, d.Duplicates())
	assert.False(t, d.Contains("https://example.com/"))
}
