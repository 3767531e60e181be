package tinode

import "sync"

// stubStore is a minimal, embeddable tinode.Store for tests that only care
// about a handful of methods; embedders override just what they need (see
// coldLoadStore in topics_test.go).
type stubStore struct {
	mu sync.Mutex

	ready bool

	myUID       string
	credMethods []*CredServer
	deviceToken string
	clockAdjMs  int64

	users map[string]*UserRecord

	loggedOut  bool
	deletedUID string
}

func (s *stubStore) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *stubStore) MyUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myUID
}

func (s *stubStore) SetMyUID(uid string, credMethods []*CredServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myUID = uid
	s.credMethods = credMethods
}

func (s *stubStore) DeviceToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceToken
}

func (s *stubStore) SetDeviceToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if IsNull(token) {
		s.deviceToken = ""
		return
	}
	s.deviceToken = token
}

func (s *stubStore) SetTimeAdjustment(adjustment int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockAdjMs = adjustment
}

func (s *stubStore) TopicGetAll(fromSession bool) []TopicHandle { return nil }

func (s *stubStore) TopicUpdate(t TopicHandle) {}

func (s *stubStore) UserGet(uid string) *UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		return nil
	}
	return s.users[uid]
}

func (s *stubStore) UserUpdate(u *UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]*UserRecord)
	}
	s.users[u.UID] = u
}

func (s *stubStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
	s.myUID = ""
}

func (s *stubStore) DeleteAccount(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedUID = uid
}
