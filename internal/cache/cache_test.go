package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	getErr error
	setErr error
	store  map[string][]byte
}

func (f *fakeBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.store[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *fakeBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.store[key] = value
	return nil
}

func (f *fakeBackend) Del(ctx context.Context, key string) error {
	delete(f.store, key)
	return nil
}

func (f *fakeBackend) Keys(ctx context.Context, pattern string) ([]string, error) { return nil, nil }
func (f *fakeBackend) Ping(ctx context.Context) error                            { return nil }

func TestGetAfterSetWithinTTLReturnsValue(t *testing.T) {
	m := New(nil, zerolog.Nop())
	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), time.Hour))

	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, got.FromCache)
	assert.Equal(t, []byte("v"), got.Data)
}

func TestGetAfterTTLExpiryReturnsMiss(t *testing.T) {
	m := New(nil, zerolog.Nop())
	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), -time.Second))

	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, got.FromCache)
	assert.Nil(t, got.Data)
}

func TestGetFallsBackToLocalOnRemoteError(t *testing.T) {
	remote := &fakeBackend{getErr: errors.New("boom"), store: map[string][]byte{}}
	m := New(remote, zerolog.Nop())
	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), time.Hour))

	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, got.FromCache)
	assert.Equal(t, []byte("v"), got.Data)
}

func TestGetPrefersRemoteHitOverLocal(t *testing.T) {
	remote := &fakeBackend{store: map[string][]byte{"k": []byte("remote-value")}}
	m := New(remote, zerolog.Nop())

	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, got.FromCache)
	assert.Equal(t, []byte("remote-value"), got.Data)
}

func TestDeleteRemovesFromLocal(t *testing.T) {
	m := New(nil, zerolog.Nop())
	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), time.Hour))
	require.NoError(t, m.Delete(context.Background(), "k"))

	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, got.FromCache)
}

func TestScrapeKeyFormat(t *testing.T) {
	k1 := ScrapeKey("https://a/", "HTTP", "")
	k2 := ScrapeKey("https://a/", "HTTP", "")
	assert.Equal(t, k1, k2)
	assert.Regexp(t, `^scrape:https://a/:HTTP:[0-9a-f]{8}$`, k1)

	k3 := ScrapeKey("https://a/", "HTTP", "find prices")
	assert.NotEqual(t, k1, k3)
}

func TestJSONRoundTrip(t *testing.T) {
	m := New(nil, zerolog.Nop())
	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, m.SetJSON(context.Background(), "k", payload{Name: "x"}, time.Hour))

	var out payload
	ok, err := m.GetJSON(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", out.Name)
}
