package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinode/tncore/tinode"
)

func TestStoreIsReadyByDefault(t *testing.T) {
	s := New()
	assert.True(t, s.IsReady())

	s.SetReady(false)
	assert.False(t, s.IsReady())
}

func TestStoreMyUIDRoundTrip(t *testing.T) {
	s := New()
	methods := []*tinode.CredServer{{Method: "email", Value: "a@b.com", Done: true}}
	s.SetMyUID("usr1alice", methods)

	assert.Equal(t, "usr1alice", s.MyUID())
	require.Len(t, s.CredMethods(), 1)
	assert.Equal(t, "email", s.CredMethods()[0].Method)
}

func TestStoreDeviceTokenNullSentinelClears(t *testing.T) {
	s := New()
	s.SetDeviceToken("abc123")
	assert.Equal(t, "abc123", s.DeviceToken())

	s.SetDeviceToken(tinode.NullValue)
	assert.Equal(t, "", s.DeviceToken())
}

func TestStoreTopicRoundTrip(t *testing.T) {
	s := New()
	h := &fakeTopic{name: "grp1"}
	s.TopicUpdate(h)

	all := s.TopicGetAll(true)
	require.Len(t, all, 1)
	assert.Equal(t, "grp1", all[0].Name())
}

func TestStoreUserRoundTrip(t *testing.T) {
	s := New()
	rec := &tinode.UserRecord{UID: "usr1", Public: "pub"}
	s.UserUpdate(rec)

	got := s.UserGet("usr1")
	require.NotNil(t, got)
	assert.Equal(t, "pub", got.Public)

	assert.Nil(t, s.UserGet("ghost"))
}

func TestStoreLogoutClearsIdentityButKeepsTopicsAndUsers(t *testing.T) {
	s := New()
	s.SetMyUID("usr1", nil)
	s.UserUpdate(&tinode.UserRecord{UID: "usr2"})
	s.TopicUpdate(&fakeTopic{name: "grp1"})

	s.Logout()

	assert.Equal(t, "", s.MyUID())
	assert.NotNil(t, s.UserGet("usr2"))
	assert.Len(t, s.TopicGetAll(true), 1)
}

func TestStoreDeleteAccountClearsEverything(t *testing.T) {
	s := New()
	s.SetMyUID("usr1", nil)
	s.UserUpdate(&tinode.UserRecord{UID: "usr1"})
	s.TopicUpdate(&fakeTopic{name: "grp1"})

	s.DeleteAccount("usr1")

	assert.Equal(t, "", s.MyUID())
	assert.Nil(t, s.UserGet("usr1"))
	assert.Empty(t, s.TopicGetAll(true))
}

type fakeTopic struct {
	name string
}

func (f *fakeTopic) Name() string                    { return f.name }
func (f *fakeTopic) Type() tinode.TopicType          { return tinode.ClassifyTopicName(f.name) }
func (f *fakeTopic) UpdatedAt() time.Time            { return time.Time{} }
func (f *fakeTopic) TouchedAt() time.Time            { return time.Time{} }
func (f *fakeTopic) RouteData(*tinode.MsgServerData) {}
func (f *fakeTopic) RouteMeta(*tinode.MsgServerMeta) {}
func (f *fakeTopic) RoutePres(*tinode.MsgServerPres) {}
func (f *fakeTopic) RouteInfo(*tinode.MsgServerInfo) {}
func (f *fakeTopic) TopicLeft(bool, int, string)     {}
func (f *fakeTopic) AllMessagesReceived(int)         {}
func (f *fakeTopic) AllSubsReceived()                {}
