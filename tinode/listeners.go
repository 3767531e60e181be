package tinode

import "sync"

// EventListener receives session lifecycle and message events. Embedding a
// NoopListener lets callers implement only the methods they care about.
type EventListener interface {
	OnConnect(code int, reason string, params map[string]interface{})
	OnDisconnect(byServer bool, code int, reason string)
	OnLogin(code int, text string)
	OnMessage(msg *ServerMsg)
	OnRawMessage(raw string)
	OnCtrlMessage(msg *MsgServerCtrl)
	OnDataMessage(msg *MsgServerData)
	OnInfoMessage(msg *MsgServerInfo)
	OnMetaMessage(msg *MsgServerMeta)
	OnPresMessage(msg *MsgServerPres)
}

// NoopListener is an EventListener with all methods no-ops. Embed it and
// override only what you need.
type NoopListener struct{}

func (NoopListener) OnConnect(int, string, map[string]interface{}) {}
func (NoopListener) OnDisconnect(bool, int, string)                {}
func (NoopListener) OnLogin(int, string)                            {}
func (NoopListener) OnMessage(*ServerMsg)                           {}
func (NoopListener) OnRawMessage(string)                            {}
func (NoopListener) OnCtrlMessage(*MsgServerCtrl)                   {}
func (NoopListener) OnDataMessage(*MsgServerData)                   {}
func (NoopListener) OnInfoMessage(*MsgServerInfo)                   {}
func (NoopListener) OnMetaMessage(*MsgServerMeta)                   {}
func (NoopListener) OnPresMessage(*MsgServerPres)                   {}

// ListenerSet fans out connection and message events to registered
// observers, in registration order. Add/Remove are idempotent by identity.
type ListenerSet struct {
	mu        sync.Mutex
	listeners []EventListener
}

// Add registers l if it is not already present. No-op if l is nil or
// already registered.
func (s *ListenerSet) Add(l EventListener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.listeners {
		if existing == l {
			return
		}
	}
	s.listeners = append(s.listeners, l)
}

// Remove unregisters l. No-op if l was never registered.
func (s *ListenerSet) Remove(l EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// snapshot returns a copy of the listener slice to iterate over without
// holding the lock during delivery (a listener may itself call Add/Remove).
func (s *ListenerSet) snapshot() []EventListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventListener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

func (s *ListenerSet) fireConnect(code int, reason string, params map[string]interface{}) {
	for _, l := range s.snapshot() {
		l.OnConnect(code, reason, params)
	}
}

func (s *ListenerSet) fireDisconnect(byServer bool, code int, reason string) {
	for _, l := range s.snapshot() {
		l.OnDisconnect(byServer, code, reason)
	}
}

func (s *ListenerSet) fireLogin(code int, text string) {
	for _, l := range s.snapshot() {
		l.OnLogin(code, text)
	}
}

func (s *ListenerSet) fireMessage(msg *ServerMsg) {
	for _, l := range s.snapshot() {
		l.OnMessage(msg)
	}
}

func (s *ListenerSet) fireRawMessage(raw string) {
	for _, l := range s.snapshot() {
		l.OnRawMessage(raw)
	}
}

func (s *ListenerSet) fireCtrl(msg *MsgServerCtrl) {
	for _, l := range s.snapshot() {
		l.OnCtrlMessage(msg)
	}
}

func (s *ListenerSet) fireData(msg *MsgServerData) {
	for _, l := range s.snapshot() {
		l.OnDataMessage(msg)
	}
}

func (s *ListenerSet) fireInfo(msg *MsgServerInfo) {
	for _, l := range s.snapshot() {
		l.OnInfoMessage(msg)
	}
}

func (s *ListenerSet) fireMeta(msg *MsgServerMeta) {
	for _, l := range s.snapshot() {
		l.OnMetaMessage(msg)
	}
}

func (s *ListenerSet) firePres(msg *MsgServerPres) {
	for _, l := range s.snapshot() {
		l.OnPresMessage(msg)
	}
}
