// Package memstore is an in-memory implementation of the tinode.Store
// collaborator interface, shaped after the reference server's
// store/adapter.Adapter interface minus everything database- or
// cluster-specific. It exists so TopicRegistry's cold-load and
// UserRegistry's write-through have something real to
// exercise in tests and in cmd/tnconsole without standing up a database.
package memstore

import (
	"sync"

	"github.com/tinode/tncore/tinode"
)

// Store is a process-lifetime, in-memory tinode.Store.
type Store struct {
	mu sync.Mutex

	ready bool

	myUID       string
	credMethods []*tinode.CredServer
	deviceToken string
	clockAdjMs  int64

	topics map[string]tinode.TopicHandle
	users  map[string]*tinode.UserRecord

	rememberedHashes map[string][]byte
}

// New creates a ready-to-use store.
func New() *Store {
	return &Store{
		ready:  true,
		topics: make(map[string]tinode.TopicHandle),
		users:  make(map[string]*tinode.UserRecord),
	}
}

func (s *Store) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SetReady lets tests simulate a store that isn't ready yet.
func (s *Store) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Store) MyUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myUID
}

func (s *Store) SetMyUID(uid string, credMethods []*tinode.CredServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myUID = uid
	s.credMethods = credMethods
}

// CredMethods returns the credential methods most recently recorded by
// SetMyUID, for tests that assert on the pending-verification path.
func (s *Store) CredMethods() []*tinode.CredServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credMethods
}

func (s *Store) DeviceToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceToken
}

func (s *Store) SetDeviceToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tinode.IsNull(token) {
		s.deviceToken = ""
		return
	}
	s.deviceToken = token
}

func (s *Store) SetTimeAdjustment(adjustment int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockAdjMs = adjustment
}

func (s *Store) TopicGetAll(fromSession bool) []tinode.TopicHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tinode.TopicHandle, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, t)
	}
	return out
}

func (s *Store) TopicUpdate(t tinode.TopicHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[t.Name()] = t
}

func (s *Store) UserGet(uid string) *tinode.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[uid]
}

func (s *Store) UserUpdate(u *tinode.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UID] = u
}

func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myUID = ""
	s.credMethods = nil
}

func (s *Store) DeleteAccount(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.myUID == uid {
		s.myUID = ""
		s.credMethods = nil
	}
	delete(s.users, uid)
	s.topics = make(map[string]tinode.TopicHandle)
}
