package tinode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRegistryUpdateUserCreatesAndMerges(t *testing.T) {
	r := NewUserRegistry(nil)

	rec := r.UpdateUser("usr1", "pub1", "priv1")
	require.NotNil(t, rec)
	assert.Equal(t, "pub1", rec.Public)
	assert.Equal(t, "priv1", rec.Private)

	// A nil half leaves the cached value untouched.
	rec = r.UpdateUser("usr1", nil, nil)
	assert.Equal(t, "pub1", rec.Public)
	assert.Equal(t, "priv1", rec.Private)

	// The null sentinel explicitly erases.
	rec = r.UpdateUser("usr1", NullValue, nil)
	assert.Nil(t, rec.Public)
	assert.Equal(t, "priv1", rec.Private)
}

func TestUserRegistryUpdateUserWritesThroughToStore(t *testing.T) {
	store := &stubStore{ready: true}
	r := NewUserRegistry(store)

	r.UpdateUser("usr1", "pub", "priv")
	got := store.UserGet("usr1")
	require.NotNil(t, got)
	assert.Equal(t, "pub", got.Public)
}

func TestUserRegistryGetUserCacheHit(t *testing.T) {
	r := NewUserRegistry(nil)
	r.UpdateUser("usr1", "pub", "priv")

	rec := r.GetUser("usr1")
	require.NotNil(t, rec)
	assert.Equal(t, "usr1", rec.UID)
}

func TestUserRegistryGetUserFallsBackToStore(t *testing.T) {
	store := &stubStore{ready: true, users: map[string]*UserRecord{
		"usr1": {UID: "usr1", Public: "from-store"},
	}}
	r := NewUserRegistry(store)

	rec := r.GetUser("usr1")
	require.NotNil(t, rec)
	assert.Equal(t, "from-store", rec.Public)

	// Second call should be served from cache without touching the store
	// again (not directly observable here, but re-fetching must still
	// return the same record).
	again := r.GetUser("usr1")
	assert.Same(t, rec, again)
}

func TestUserRegistryGetUserMissReturnsNil(t *testing.T) {
	r := NewUserRegistry(nil)
	assert.Nil(t, r.GetUser("ghost"))
}
