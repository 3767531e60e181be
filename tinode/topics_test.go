package tinode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTopic struct {
	name      string
	kind      TopicType
	updatedAt time.Time
	touchedAt time.Time
}

func (t *stubTopic) Name() string              { return t.name }
func (t *stubTopic) Type() TopicType           { return t.kind }
func (t *stubTopic) UpdatedAt() time.Time      { return t.updatedAt }
func (t *stubTopic) TouchedAt() time.Time      { return t.touchedAt }
func (t *stubTopic) RouteData(*MsgServerData)  {}
func (t *stubTopic) RouteMeta(*MsgServerMeta)  {}
func (t *stubTopic) RoutePres(*MsgServerPres)  {}
func (t *stubTopic) RouteInfo(*MsgServerInfo)  {}
func (t *stubTopic) TopicLeft(bool, int, string) {}
func (t *stubTopic) AllMessagesReceived(int)   {}
func (t *stubTopic) AllSubsReceived()          {}

func TestClassifyTopicName(t *testing.T) {
	cases := map[string]TopicType{
		"me":       TopicTypeMe,
		"fnd":      TopicTypeFnd,
		"grp1abcd": TopicTypeGroup,
		"new1abcd": TopicTypeGroup,
		"usr1abcd": TopicTypeP2P,
		"whatever": TopicTypeUnknown,
		"":         TopicTypeUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, ClassifyTopicName(name), "name=%q", name)
	}
}

func TestTopicRegistryStartStopTrack(t *testing.T) {
	r := NewTopicRegistry(nil)
	h := &stubTopic{name: "grp1", kind: TopicTypeGroup}
	r.StartTracking(h)

	assert.True(t, r.IsTracked("grp1"))
	got, ok := r.Get("grp1")
	require.True(t, ok)
	assert.Same(t, h, got)

	r.StopTracking("grp1")
	assert.False(t, r.IsTracked("grp1"))
}

func TestTopicRegistryBumpUpdatedExcludesMeAndFnd(t *testing.T) {
	r := NewTopicRegistry(nil)
	now := time.Now()

	r.StartTracking(&stubTopic{name: "me", kind: TopicTypeMe, updatedAt: now})
	assert.True(t, r.TopicsUpdated().IsZero())

	r.StartTracking(&stubTopic{name: "fnd", kind: TopicTypeFnd, updatedAt: now})
	assert.True(t, r.TopicsUpdated().IsZero())

	r.StartTracking(&stubTopic{name: "grp1", kind: TopicTypeGroup, updatedAt: now})
	assert.Equal(t, now, r.TopicsUpdated())
}

func TestTopicRegistryTopicsUpdatedIsMonotonic(t *testing.T) {
	r := NewTopicRegistry(nil)
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	r.StartTracking(&stubTopic{name: "grp1", kind: TopicTypeGroup, updatedAt: newer})
	r.NoteUpdated(&stubTopic{name: "grp2", kind: TopicTypeGroup, updatedAt: older})

	assert.Equal(t, newer, r.TopicsUpdated())
}

func TestTopicRegistryGetFilteredSortsByTouchedAtDescending(t *testing.T) {
	r := NewTopicRegistry(nil)
	base := time.Now()
	r.StartTracking(&stubTopic{name: "grp1", kind: TopicTypeGroup, touchedAt: base.Add(-time.Minute)})
	r.StartTracking(&stubTopic{name: "grp2", kind: TopicTypeGroup, touchedAt: base})
	r.StartTracking(&stubTopic{name: "grp3", kind: TopicTypeGroup, touchedAt: base.Add(-2 * time.Minute)})

	out := r.GetFiltered(nil)
	require.Len(t, out, 3)
	assert.Equal(t, "grp2", out[0].Name())
	assert.Equal(t, "grp1", out[1].Name())
	assert.Equal(t, "grp3", out[2].Name())
}

func TestTopicRegistryMaybeCreateTopicNeedsDescAndFactory(t *testing.T) {
	r := NewTopicRegistry(nil)
	factory := func(name string, desc *TopicDesc) TopicHandle {
		return &stubTopic{name: name, kind: ClassifyTopicName(name)}
	}

	assert.Nil(t, r.MaybeCreateTopic("grp1", &MsgServerMeta{Topic: "grp1"}, factory))
	assert.False(t, r.IsTracked("grp1"))

	h := r.MaybeCreateTopic("grp1", &MsgServerMeta{Topic: "grp1", Desc: &TopicDesc{}}, factory)
	require.NotNil(t, h)
	assert.True(t, r.IsTracked("grp1"))

	assert.Nil(t, r.MaybeCreateTopic("grp2", &MsgServerMeta{Topic: "grp2", Desc: &TopicDesc{}}, nil))
}

type coldLoadStore struct {
	stubStore
	topics []TopicHandle
}

func (s *coldLoadStore) TopicGetAll(fromSession bool) []TopicHandle { return s.topics }

func TestTopicRegistryColdLoadRunsOnlyOnce(t *testing.T) {
	store := &coldLoadStore{
		stubStore: stubStore{ready: true},
		topics: []TopicHandle{
			&stubTopic{name: "grp1", kind: TopicTypeGroup},
		},
	}
	r := NewTopicRegistry(store)

	r.ColdLoad()
	assert.True(t, r.IsTracked("grp1"))
	assert.True(t, r.TopicsLoaded())

	store.topics = append(store.topics, &stubTopic{name: "grp2", kind: TopicTypeGroup})
	r.ColdLoad()
	assert.False(t, r.IsTracked("grp2"))
}

func TestTopicRegistryColdLoadNoopWithoutStore(t *testing.T) {
	r := NewTopicRegistry(nil)
	r.ColdLoad()
	assert.True(t, r.TopicsLoaded())
	assert.Empty(t, r.GetAll())
}
