package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncecere-raito/scrapeengine/internal/model"
)

func TestSaveLoadRoundTripIsByteIdenticalModuloFieldOrder(t *testing.T) {
	store := New(t.TempDir())
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	data := &model.SessionData{
		Domain: "example.com",
		Cookies: []model.Cookie{
			{Name: "session", Value: "abc123", Domain: "example.com", Path: "/", HTTPOnly: true, Secure: true, SameSite: "Lax"},
		},
		LocalStorage:   map[string]string{"k": "v"},
		SessionStorage: map[string]string{},
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
		ExpiresAt:      &expires,
	}

	require.NoError(t, store.Save(Key("example.com", ""), data))

	loaded, err := store.Load(Key("example.com", ""))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, data.Cookies, loaded.Cookies)
	assert.Equal(t, data.Domain, loaded.Domain)
	assert.Equal(t, data.LocalStorage, loaded.LocalStorage)
}

func TestLoadReturnsNilOnMiss(t *testing.T) {
	store := New(t.TempDir())
	loaded, err := store.Load(Key("nowhere.com", ""))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadDeletesAndReturnsNilForExpiredSession(t *testing.T) {
	store := New(t.TempDir())
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Save("example.com", &model.SessionData{Domain: "example.com", ExpiresAt: &past}))

	loaded, err := store.Load("example.com")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	again, err := store.Load("example.com")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestKeySanitizationReplacesUnsafeCharacters(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Save("example.com:user@host", &model.SessionData{Domain: "example.com"}))

	loaded, err := store.Load("example.com:user@host")
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

func TestCleanExpiredRemovesOnlyExpiredEntries(t *testing.T) {
	store := New(t.TempDir())
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, store.Save("expired.com", &model.SessionData{Domain: "expired.com", ExpiresAt: &past}))
	require.NoError(t, store.Save("active.com", &model.SessionData{Domain: "active.com", ExpiresAt: &future}))

	removed, err := store.CleanExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	loaded, _ := store.Load("active.com")
	assert.NotNil(t, loaded)
}

func TestDeleteRemovesBackingFile(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Save("example.com", &model.SessionData{Domain: "example.com"}))
	require.NoError(t, store.Delete("example.com"))

	loaded, err := store.Load("example.com")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestKeyFormatsDomainAndIdentifier(t *testing.T) {
	assert.Equal(t, "example.com", Key("example.com", ""))
	assert.Equal(t, "example.com:user1", Key("example.com", "user1"))
}
