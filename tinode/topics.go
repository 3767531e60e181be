package tinode

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// TopicType classifies a topic name by its prefix
type TopicType int

const (
	TopicTypeUnknown TopicType = iota
	TopicTypeMe
	TopicTypeFnd
	TopicTypeGroup
	TopicTypeP2P
)

// ClassifyTopicName implements the name-to-type rule: exact "me" -> Me,
// "fnd" -> Fnd, prefix "grp"/"new" -> Group, prefix "usr" -> P2P, else
// Unknown.
func ClassifyTopicName(name string) TopicType {
	switch {
	case name == "me":
		return TopicTypeMe
	case name == "fnd":
		return TopicTypeFnd
	case strings.HasPrefix(name, "grp"), strings.HasPrefix(name, "new"):
		return TopicTypeGroup
	case strings.HasPrefix(name, "usr"):
		return TopicTypeP2P
	default:
		return TopicTypeUnknown
	}
}

// TopicHandle is the capability set the core needs from a topic
// implementation. Topics themselves (history, subscriber sets, read
// markers) are out of scope; this is the seam.
type TopicHandle interface {
	Name() string
	Type() TopicType
	UpdatedAt() time.Time
	TouchedAt() time.Time

	RouteData(msg *MsgServerData)
	RouteMeta(msg *MsgServerMeta)
	RoutePres(msg *MsgServerPres)
	RouteInfo(msg *MsgServerInfo)

	TopicLeft(unsub bool, code int, reason string)
	AllMessagesReceived(count int)
	AllSubsReceived()
}

// TopicFactory constructs a TopicHandle for a topic name discovered from an
// inbound {meta} frame the registry did not already know about. Applications
// supply one at Session construction time; a nil factory disables
// auto-creation and unknown topics are simply not routed.
type TopicFactory func(name string, desc *TopicDesc) TopicHandle

// TopicRegistry is the in-memory map of topic name to handle, plus the
// cold-load-once bookkeeping.
type TopicRegistry struct {
	mu      sync.RWMutex
	topics  map[string]TopicHandle
	loaded  bool
	updated time.Time // max TopicHandle.UpdatedAt() among tracked, non-me/fnd topics

	store Store
}

// NewTopicRegistry creates an empty registry bound to store (which may be
// nil; cold-load then becomes a no-op).
func NewTopicRegistry(store Store) *TopicRegistry {
	return &TopicRegistry{
		topics: make(map[string]TopicHandle),
		store:  store,
	}
}

// StartTracking adds handle to the registry and folds its UpdatedAt into
// TopicsUpdated, excluding me/fnd topics.
func (r *TopicRegistry) StartTracking(handle TopicHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[handle.Name()] = handle
	r.bumpUpdatedLocked(handle)
}

// StopTracking removes the entry for name, if present.
func (r *TopicRegistry) StopTracking(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, name)
}

// IsTracked reports whether name has a live entry.
func (r *TopicRegistry) IsTracked(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[name]
	return ok
}

// Get returns the handle for name, if tracked.
func (r *TopicRegistry) Get(name string) (TopicHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.topics[name]
	return h, ok
}

// GetAll returns every tracked handle in unspecified order.
func (r *TopicRegistry) GetAll() []TopicHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TopicHandle, 0, len(r.topics))
	for _, h := range r.topics {
		out = append(out, h)
	}
	return out
}

// GetFiltered returns handles matching pred, sorted by TouchedAt
// descending; handles with a zero TouchedAt sort as the most distant past.
func (r *TopicRegistry) GetFiltered(pred func(TopicHandle) bool) []TopicHandle {
	r.mu.RLock()
	out := make([]TopicHandle, 0, len(r.topics))
	for _, h := range r.topics {
		if pred == nil || pred(h) {
			out = append(out, h)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TouchedAt().After(out[j].TouchedAt())
	})
	return out
}

// ChangeTopicName rekeys a tracked handle from oldName to its current
// Name(), persisting the rename to the store. Returns whether oldName was
// present.
func (r *TopicRegistry) ChangeTopicName(handle TopicHandle, oldName string) bool {
	r.mu.Lock()
	_, had := r.topics[oldName]
	if had {
		delete(r.topics, oldName)
	}
	r.topics[handle.Name()] = handle
	r.mu.Unlock()

	if r.store != nil && r.store.IsReady() {
		r.store.TopicUpdate(handle)
	}
	return had
}

// MaybeCreateTopic constructs and starts tracking a new topic handle when
// an inbound {meta} frame references a name the registry does not yet know,
// provided the frame carries a description and a factory was configured.
// Returns nil if no handle could be created.
func (r *TopicRegistry) MaybeCreateTopic(name string, meta *MsgServerMeta, factory TopicFactory) TopicHandle {
	if factory == nil || meta == nil || meta.Desc == nil {
		return nil
	}
	h := factory(name, meta.Desc)
	if h == nil {
		return nil
	}
	r.StartTracking(h)
	return h
}

// TopicsUpdated returns the current max-updated watermark.
func (r *TopicRegistry) TopicsUpdated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}

// TopicsLoaded reports whether ColdLoad has already run.
func (r *TopicRegistry) TopicsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// ColdLoad loads every topic from the store exactly once. Subsequent calls
// are no-ops. No-op if the store is nil or not ready.
func (r *TopicRegistry) ColdLoad() {
	r.mu.Lock()
	if r.loaded || r.store == nil || !r.store.IsReady() {
		r.loaded = true
		r.mu.Unlock()
		return
	}
	r.loaded = true
	r.mu.Unlock()

	for _, h := range r.store.TopicGetAll(true) {
		r.StartTracking(h)
	}
}

// bumpUpdatedLocked updates r.updated from handle, excluding fnd/me topics.
// Caller must hold r.mu.
func (r *TopicRegistry) bumpUpdatedLocked(handle TopicHandle) {
	t := handle.Type()
	if t == TopicTypeMe || t == TopicTypeFnd {
		return
	}
	if handle.UpdatedAt().After(r.updated) {
		r.updated = handle.UpdatedAt()
	}
}

// NoteUpdated is called by the dispatcher whenever a topic's metadata
// changes, to keep TopicsUpdated monotonic without requiring a full
// StartTracking re-registration.
func (r *TopicRegistry) NoteUpdated(handle TopicHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bumpUpdatedLocked(handle)
}
