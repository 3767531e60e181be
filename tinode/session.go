package tinode

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LibVersion is the version string this module reports to the server in
// its user-agent string.
const LibVersion = "0.1"

// Config describes one server endpoint and the local client identity sent
// in the {hi} handshake.
type Config struct {
	AppName     string
	APIKey      string
	Host        string
	TLS         bool
	UseWebsocket bool
	OSVersion   string
	Locale      string
}

// Session owns the single server connection: message codec, future
// registry, listener fan-out, connection state machine, topic/user
// registries, dispatcher and the high-level operations.
type Session struct {
	cfg Config

	transport Transport
	store     Store

	ids      *IDGenerator
	futures  *FutureRegistry
	listeners ListenerSet
	topics   *TopicRegistry
	users    *UserRegistry
	auth     authCoordinator
	state    connStateMachine
	factory  TopicFactory

	logger *log.Logger

	mu sync.Mutex // guards the fields below

	selfUID          string
	deviceToken      string
	authToken        string
	serverVersion    string
	serverBuild      string
	isAuthenticated  bool
	connectOpsActive bool
}

// NewSession constructs a Session bound to transport and store (store may
// be nil: topic cold-load and user cache write-through become no-ops).
// factory may be nil: unknown topics arriving in {meta} frames are then
// simply not routed.
func NewSession(cfg Config, transport Transport, store Store, factory TopicFactory) *Session {
	s := &Session{
		cfg:       cfg,
		transport: transport,
		store:     store,
		ids:       NewIDGenerator(),
		futures:   NewFutureRegistry(),
		topics:    NewTopicRegistry(store),
		users:     NewUserRegistry(store),
		factory:   factory,
		logger:    log.New(os.Stderr, "tinode: ", log.LstdFlags),
	}

	if store != nil && store.IsReady() {
		s.selfUID = store.MyUID()
		s.deviceToken = store.DeviceToken()
	}

	transport.SetOnConnect(s.onTransportConnect)
	transport.SetOnMessage(s.onTransportMessage)
	transport.SetOnDisconnect(s.onTransportDisconnect)
	transport.SetOnError(s.onTransportError)

	return s
}

// SetLogger overrides the default stderr logger (e.g. to capture output
// in tests).
func (s *Session) SetLogger(l *log.Logger) { s.logger = l }

// AddListener registers an observer of connection and message events.
func (s *Session) AddListener(l EventListener) { s.listeners.Add(l) }

// RemoveListener unregisters a previously added observer.
func (s *Session) RemoveListener(l EventListener) { s.listeners.Remove(l) }

// SelfUID returns the authenticated user's id, or "" if not logged in.
func (s *Session) SelfUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfUID
}

// IsConnectionAuthenticated reports whether the last login succeeded and
// the connection has not since dropped.
func (s *Session) IsConnectionAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAuthenticated
}

// ServerVersion/ServerBuild report what the server announced in its {hi}
// reply, or "" before one has been received.
func (s *Session) ServerVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverVersion
}

func (s *Session) ServerBuild() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverBuild
}

// Topics exposes the TopicRegistry for callers that need direct access
// (e.g. to enumerate cached topics for a UI).
func (s *Session) Topics() *TopicRegistry { return s.topics }

// Users exposes the UserRegistry.
func (s *Session) Users() *UserRegistry { return s.users }

// SetAutoLoginWithToken enables auto-login and caches (scheme="token",
// secret=token) for replay after every future (re)connect.
func (s *Session) SetAutoLoginWithToken(token string) {
	s.auth.SetAutoLoginWithToken(token)
}

// Close shuts the session down: purges every pending future with
// NotConnected and stops the FutureRegistry's sweep timer.
func (s *Session) Close() {
	s.futures.PurgeAll(disconnectedResponse())
	s.futures.Close()
}

// ---- Connection lifecycle ----

// Connect reseeds the message-id counter and dials the transport. No lock
// is held across the dial, so concurrent Connect, Disconnect and
// ReconnectNow calls are not serialized against each other;
// connectOpsActive only records that a Connect call is under way.
func (s *Session) Connect() error {
	s.mu.Lock()
	s.connectOpsActive = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connectOpsActive = false
		s.mu.Unlock()
	}()

	s.state.transition(StateConnecting)
	s.ids.Reset()
	return s.transport.Connect(true)
}

// Disconnect tears down the transport. enterDisconnected (invoked by the
// transport's onDisconnect callback) performs the actual state cleanup;
// this just asks the transport to close.
func (s *Session) Disconnect() {
	s.transport.Disconnect()
}

// ReconnectNow forces a reconnect attempt: dials fresh if nothing is
// connected or reconnecting, tears down and redials if connected and
// reset is set (the transport's own policy decides whether/when to
// reconnect after that), is a no-op if already connected and reset is
// not set, and nudges a backed-off reconnect loop to retry immediately
// when interactive is set.
func (s *Session) ReconnectNow(interactive, reset bool) error {
	switch {
	case !s.transport.IsConnected() && !s.transport.IsWaitingToConnect():
		return s.Connect()
	case s.transport.IsConnected() && reset:
		s.transport.Disconnect()
		return s.Connect()
	case s.transport.IsConnected():
		return nil
	case s.transport.IsWaitingToConnect() && interactive:
		return s.Connect()
	}
	return nil
}

func (s *Session) onTransportConnect(reconnecting bool) {
	prev := s.state.transition(StateConnectedUnauth)
	_ = prev

	if reconnecting {
		s.ids.Reset()
	}

	hiFuture, err := s.helloInternal()
	if err != nil {
		s.logger.Println("hello failed to send:", err)
		return
	}

	go func() {
		msg, err := hiFuture.Wait()
		if err != nil {
			s.listeners.fireConnect(0, err.Error(), nil)
			return
		}
		ctrl := msg.Ctrl
		s.mu.Lock()
		if ctrl.Params != nil {
			if v, ok := ctrl.Params["ver"].(string); ok {
				s.serverVersion = v
			}
			if v, ok := ctrl.Params["build"].(string); ok {
				s.serverBuild = v
			}
		}
		s.mu.Unlock()

		s.listeners.fireConnect(ctrl.Code, ctrl.Text, ctrl.Params)

		if scheme, secret, ok := s.auth.readyForAutoLogin(); ok {
			if _, err := s.loginInternal(scheme, secret, nil); err != nil {
				s.logger.Println("auto-login failed:", err)
			}
		}
	}()
}

func (s *Session) onTransportDisconnect(byServer bool, code int, reason string) {
	s.enterDisconnected(byServer, code, reason)
}

func (s *Session) onTransportError(err error) {
	s.logger.Println("transport error:", err)
}

// enterDisconnected runs the cleanup that applies whenever the connection
// drops: fail pending requests, reset server identity, tell tracked
// topics they were left, and notify listeners.
func (s *Session) enterDisconnected(byServer bool, code int, reason string) {
	prev := s.state.transition(StateDisconnected)
	if prev == StateDisconnected {
		return
	}

	// (a) fail all pending futures.
	s.futures.PurgeAll(disconnectedResponse())

	// (b) reset server-version/build, (c) clear authenticated flag.
	s.mu.Lock()
	s.serverVersion = ""
	s.serverBuild = ""
	s.isAuthenticated = false
	s.mu.Unlock()

	// (d) notify every tracked topic.
	for _, t := range s.topics.GetAll() {
		t.TopicLeft(false, 503, "disconnected")
	}

	// (e) emit onDisconnect.
	s.listeners.fireDisconnect(byServer, code, reason)
}

// ---- Outbound request plumbing ----

// sendWithFuture encodes msg, hands it to the transport, and registers a
// PendingReply under its id.
func (s *Session) sendWithFuture(msg *ClientMsg) (*PendingReply, error) {
	data, err := EncodeClientMsg(msg)
	if err != nil {
		return nil, err
	}

	id := msg.id()
	var p *PendingReply
	if id != "" {
		p = newPendingReply(id)
		s.futures.Insert(id, p)
	}

	if err := s.transport.Send(data); err != nil {
		if p != nil {
			s.futures.Take(id)
		}
		return nil, &NotConnected{Msg: err.Error()}
	}
	return p, nil
}

func (s *Session) sendNote(msg *ClientMsg) error {
	data, err := EncodeClientMsg(msg)
	if err != nil {
		return err
	}
	if err := s.transport.Send(data); err != nil {
		return &NotConnected{Msg: err.Error()}
	}
	return nil
}

// ---- Inbound dispatch ----

func (s *Session) onTransportMessage(raw string) {
	if raw == "" {
		return
	}
	s.listeners.fireRawMessage(raw)

	msg, err := DecodeServerMsg([]byte(raw))
	if err != nil {
		s.logger.Println("decode error:", err)
		return
	}

	s.listeners.fireMessage(msg)

	switch {
	case msg.Ctrl != nil:
		s.dispatchCtrl(msg.Ctrl)
	case msg.Meta != nil:
		s.dispatchMeta(msg.Meta)
	case msg.Data != nil:
		s.dispatchData(msg.Data)
	case msg.Pres != nil:
		s.dispatchPres(msg.Pres)
	case msg.Info != nil:
		s.dispatchInfo(msg.Info)
	}
}

func (s *Session) dispatchCtrl(ctrl *MsgServerCtrl) {
	s.listeners.fireCtrl(ctrl)
	s.noteServerTimestamp(ctrl.Timestamp)

	if ctrl.ID != "" {
		if p, ok := s.futures.Take(ctrl.ID); ok {
			if ctrl.Code >= 200 && ctrl.Code < 400 {
				p.settle(&ServerMsg{Ctrl: ctrl}, nil)
			} else {
				what, _ := ctrl.Params["what"].(string)
				p.settle(nil, &ServerResponse{Code: ctrl.Code, Text: ctrl.Text, What: what})
			}
		}
	}

	if ctrl.Code == 205 && ctrl.Text == "evicted" && ctrl.Topic != "" {
		if t, ok := s.topics.Get(ctrl.Topic); ok {
			unsub, _ := ctrl.Params["unsub"].(bool)
			t.TopicLeft(unsub, ctrl.Code, ctrl.Text)
		}
		return
	}

	if what, _ := ctrl.Params["what"].(string); what != "" && ctrl.Topic != "" {
		if t, ok := s.topics.Get(ctrl.Topic); ok {
			switch what {
			case "data":
				count := 0
				if c, ok := ctrl.Params["count"].(float64); ok {
					count = int(c)
				}
				t.AllMessagesReceived(count)
			case "sub":
				t.AllSubsReceived()
			}
		}
	}
}

func (s *Session) dispatchMeta(meta *MsgServerMeta) {
	t, ok := s.topics.Get(meta.Topic)
	if !ok {
		if h := s.topics.MaybeCreateTopic(meta.Topic, meta, s.factory); h != nil {
			t, ok = h, true
		}
	}
	if ok {
		t.RouteMeta(meta)
		if t.Type() != TopicTypeFnd && t.Type() != TopicTypeMe {
			s.topics.NoteUpdated(t)
		}
	}

	s.listeners.fireMeta(meta)

	if meta.ID != "" {
		if p, ok := s.futures.Take(meta.ID); ok {
			p.settle(&ServerMsg{Meta: meta}, nil)
		}
	}
}

func (s *Session) dispatchData(data *MsgServerData) {
	if t, ok := s.topics.Get(data.Topic); ok {
		t.RouteData(data)
	}
	s.listeners.fireData(data)

	if data.ID != "" {
		if p, ok := s.futures.Take(data.ID); ok {
			p.settle(&ServerMsg{Data: data}, nil)
		}
	}
}

func (s *Session) dispatchPres(pres *MsgServerPres) {
	if t, ok := s.topics.Get(pres.Topic); ok {
		t.RoutePres(pres)

		if t.Type() == TopicTypeMe && strings.HasPrefix(pres.Src, "usr") {
			if peer, ok := s.topics.Get(pres.Src); ok {
				peer.RoutePres(pres)
			}
		}
	}
	s.listeners.firePres(pres)
}

func (s *Session) dispatchInfo(info *MsgServerInfo) {
	if t, ok := s.topics.Get(info.Topic); ok {
		t.RouteInfo(info)
	}
	s.listeners.fireInfo(info)
}

// ---- SessionApi operations ----

// userAgent builds the {hi}.ua string:
// "<appName> (<os>; <locale>); tinode-core/<ver>".
func (s *Session) userAgent() string {
	return fmt.Sprintf("%s (%s; %s); tinode-core/%s", s.cfg.AppName, s.cfg.OSVersion, s.cfg.Locale, LibVersion)
}

func (s *Session) helloInternal() (*PendingReply, error) {
	s.mu.Lock()
	deviceToken := s.deviceToken
	s.mu.Unlock()

	return s.sendWithFuture(&ClientMsg{Hi: &MsgHi{
		ID:        s.ids.NextMsgID(),
		Version:   ProtocolVersion,
		UserAgent: s.userAgent(),
		DeviceID:  deviceToken,
		Lang:      s.cfg.Locale,
	}})
}

// Hello sends {hi} explicitly (normally the Session sends it itself on
// transport connect; exposed for callers driving the handshake by hand,
// e.g. in tests against a fake transport).
func (s *Session) Hello() (*PendingReply, error) {
	return s.helloInternal()
}

// Login sends {login}. Refuses with InvalidState if a login is already in
// progress; returns a synthetic immediate success if already
// authenticated.
func (s *Session) Login(scheme string, secret []byte, cred []CredClient) (*PendingReply, error) {
	if s.IsConnectionAuthenticated() {
		p := newPendingReply("")
		p.settle(&ServerMsg{Ctrl: &MsgServerCtrl{Code: 200, Text: "already authenticated"}}, nil)
		return p, nil
	}
	return s.loginInternal(scheme, secret, cred)
}

// LoginBasic is a convenience wrapper encoding user:password the way the
// server's "basic" scheme expects.
func (s *Session) LoginBasic(user, password string) (*PendingReply, error) {
	secret := []byte(user + ":" + password)
	return s.Login("basic", secret, nil)
}

func (s *Session) loginInternal(scheme string, secret []byte, cred []CredClient) (*PendingReply, error) {
	if err := s.auth.beginLogin(); err != nil {
		return nil, err
	}

	p, err := s.sendWithFuture(&ClientMsg{Login: &MsgLogin{
		ID:     s.ids.NextMsgID(),
		Scheme: scheme,
		Secret: secret,
		Cred:   cred,
	}})
	if err != nil {
		s.auth.endLogin()
		return nil, err
	}

	s.auth.cacheCredentials(scheme, secret)

	go func() {
		msg, err := p.Wait()
		s.auth.endLogin()
		s.onLoginSettled(msg, err)
	}()

	return p, nil
}

// onLoginSettled runs the post-login bookkeeping regardless of whether
// the caller is still waiting on the future.
func (s *Session) onLoginSettled(msg *ServerMsg, err error) {
	if err != nil {
		var sr *ServerResponse
		if as, ok := err.(*ServerResponse); ok {
			sr = as
		}
		code := 0
		text := err.Error()
		if sr != nil {
			code = sr.Code
			text = sr.Text
			if code >= 400 && code < 500 {
				s.auth.clearCredentials()
				s.mu.Lock()
				s.authToken = ""
				s.mu.Unlock()
			}
		}
		s.mu.Lock()
		s.isAuthenticated = false
		s.mu.Unlock()
		s.listeners.fireLogin(code, text)
		return
	}

	ctrl := msg.Ctrl
	uid, _ := ctrl.Params["user"].(string)
	token, _ := ctrl.Params["token"].(string)

	s.mu.Lock()
	prevUID := s.selfUID
	mismatch := prevUID != "" && uid != "" && prevUID != uid
	s.mu.Unlock()

	if mismatch {
		s.fullLogout()
		s.listeners.fireLogin(400, "UID mismatch")
		return
	}

	s.mu.Lock()
	s.selfUID = uid
	s.authToken = token
	s.isAuthenticated = ctrl.Code >= 200 && ctrl.Code < 300
	s.mu.Unlock()

	if ctrl.Code < 300 {
		if s.store != nil && s.store.IsReady() {
			var credMethods []*CredServer
			s.store.SetMyUID(uid, credMethods)
		}
		s.topics.ColdLoad()
	} else if credRaw, ok := ctrl.Params["cred"].([]interface{}); ok {
		methods := decodeCredList(credRaw)
		if s.store != nil && s.store.IsReady() {
			s.store.SetMyUID(uid, methods)
		}
	}

	s.listeners.fireLogin(ctrl.Code, ctrl.Text)
}

func decodeCredList(raw []interface{}) []*CredServer {
	out := make([]*CredServer, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		c := &CredServer{}
		if v, ok := m["meth"].(string); ok {
			c.Method = v
		}
		if v, ok := m["val"].(string); ok {
			c.Value = v
		}
		if v, ok := m["done"].(bool); ok {
			c.Done = v
		}
		out = append(out, c)
	}
	return out
}

// fullLogout clears all local auth state without touching the transport,
// used on UID mismatch and as the guts of Logout.
func (s *Session) fullLogout() {
	s.auth.clearCredentials()
	s.mu.Lock()
	s.selfUID = ""
	s.authToken = ""
	s.isAuthenticated = false
	s.mu.Unlock()
	if s.store != nil && s.store.IsReady() {
		s.store.Logout()
	}
}

// Logout clears the device token on the server (null-sentinel),
// disconnects, clears the local uid, and tells the store to drop state.
func (s *Session) Logout() {
	s.mu.Lock()
	authed := s.isAuthenticated
	s.mu.Unlock()

	if authed {
		_, _ = s.SetDeviceToken(NullValue)
	}
	s.Disconnect()
	s.fullLogout()
}

// Account sends {acc}. If loginNow is true and the request succeeds,
// post-login bookkeeping runs exactly as for Login; on
// [400,500) failure local auth data is cleared.
func (s *Session) Account(userID, state, scheme string, secret []byte, loginNow bool, tags []string, desc *SetDesc, cred []CredClient) (*PendingReply, error) {
	p, err := s.sendWithFuture(&ClientMsg{Acc: &MsgAcc{
		ID:     s.ids.NextMsgID(),
		User:   userID,
		State:  state,
		Scheme: scheme,
		Secret: secret,
		Login:  loginNow,
		Tags:   tags,
		Desc:   desc,
		Cred:   cred,
	}})
	if err != nil {
		return nil, err
	}

	go func() {
		msg, err := p.Wait()
		if loginNow {
			s.onLoginSettled(msg, err)
			return
		}
		if err != nil {
			if sr, ok := err.(*ServerResponse); ok && sr.Code >= 400 && sr.Code < 500 {
				s.auth.clearCredentials()
				s.mu.Lock()
				s.authToken = ""
				s.mu.Unlock()
			}
		}
	}()

	return p, nil
}

// Sub sends {sub}.
func (s *Session) Sub(topic string, get *GetQuery, set *SetQuery) (*PendingReply, error) {
	return s.sendWithFuture(&ClientMsg{Sub: &MsgSub{
		ID:    s.ids.NextMsgID(),
		Topic: topic,
		Get:   get,
		Set:   set,
	}})
}

// Get sends {get}.
func (s *Session) Get(topic, what string, opts GetQuery) (*PendingReply, error) {
	opts.What = what
	return s.sendWithFuture(&ClientMsg{Get: &MsgGet{
		ID:       s.ids.NextMsgID(),
		Topic:    topic,
		GetQuery: opts,
	}})
}

// Set sends {set}.
func (s *Session) Set(topic string, query SetQuery) (*PendingReply, error) {
	return s.sendWithFuture(&ClientMsg{Set: &MsgSet{
		ID:       s.ids.NextMsgID(),
		Topic:    topic,
		SetQuery: query,
	}})
}

// Leave sends {leave}.
func (s *Session) Leave(topic string, unsub bool) (*PendingReply, error) {
	return s.sendWithFuture(&ClientMsg{Leave: &MsgLeave{
		ID:    s.ids.NextMsgID(),
		Topic: topic,
		Unsub: unsub,
	}})
}

// Pub sends {pub}, always with noecho set.
func (s *Session) Pub(topic string, head map[string]interface{}, content interface{}) (*PendingReply, error) {
	return s.sendWithFuture(&ClientMsg{Pub: &MsgPub{
		ID:      s.ids.NextMsgID(),
		Topic:   topic,
		NoEcho:  true,
		Head:    head,
		Content: content,
	}})
}

// DelMessages deletes individual messages or ranges within topic.
func (s *Session) DelMessages(topic string, ranges []DelRange, hard bool) (*PendingReply, error) {
	return s.del(topic, "msg", ranges, "", nil, hard)
}

// DelTopic deletes topic entirely.
func (s *Session) DelTopic(topic string) (*PendingReply, error) {
	return s.del(topic, "topic", nil, "", nil, false)
}

// DelSub removes user's subscription to topic.
func (s *Session) DelSub(topic, user string) (*PendingReply, error) {
	return s.del(topic, "sub", nil, user, nil, false)
}

// DelCred removes a verification credential.
func (s *Session) DelCred(cred *CredClient) (*PendingReply, error) {
	return s.del("", "cred", nil, "", cred, false)
}

// DelUser deletes (or disables) the account. On success the session fully
// disconnects and purges local state.
func (s *Session) DelUser(user string, hard bool) (*PendingReply, error) {
	p, err := s.del("", "user", nil, user, nil, hard)
	if err != nil {
		return nil, err
	}
	go func() {
		if _, err := p.Wait(); err == nil {
			s.Disconnect()
			s.fullLogout()
			if s.store != nil && s.store.IsReady() {
				s.store.DeleteAccount(user)
			}
		}
	}()
	return p, nil
}

func (s *Session) del(topic, what string, ranges []DelRange, user string, cred *CredClient, hard bool) (*PendingReply, error) {
	return s.sendWithFuture(&ClientMsg{Del: &MsgDel{
		ID:     s.ids.NextMsgID(),
		Topic:  topic,
		What:   what,
		DelSeq: ranges,
		User:   user,
		Cred:   cred,
		Hard:   hard,
	}})
}

// NoteRead/NoteRecv/NoteKeyPress send {note}, fire-and-forget: no id is
// allocated and nothing is registered with the FutureRegistry.
func (s *Session) NoteRead(topic string, seqID int) error {
	return s.sendNote(&ClientMsg{Note: &MsgNote{Topic: topic, What: "read", SeqID: seqID}})
}

func (s *Session) NoteRecv(topic string, seqID int) error {
	return s.sendNote(&ClientMsg{Note: &MsgNote{Topic: topic, What: "recv", SeqID: seqID}})
}

func (s *Session) NoteKeyPress(topic string) error {
	return s.sendNote(&ClientMsg{Note: &MsgNote{Topic: topic, What: "kp"}})
}

// SetDeviceToken updates the push-notification device token on the
// server; value may be NullValue to clear it.
func (s *Session) SetDeviceToken(value string) (*PendingReply, error) {
	s.mu.Lock()
	if value != NullValue {
		s.deviceToken = value
	} else {
		s.deviceToken = ""
	}
	s.mu.Unlock()

	if s.store != nil && s.store.IsReady() {
		s.store.SetDeviceToken(value)
	}

	// The server takes device-token updates (including the NullValue clear)
	// from the dev field of a repeated {hi}.
	return s.sendWithFuture(&ClientMsg{Hi: &MsgHi{
		ID:       s.ids.NextMsgID(),
		DeviceID: value,
	}})
}

// ServerClockOffset returns the last computed signed offset between local
// and server clocks, in milliseconds. Zero until a timestamped reply lets
// the AuthCoordinator estimate it.
func (s *Session) ServerClockOffset() time.Duration {
	return time.Duration(s.auth.getClockOffset()) * time.Millisecond
}

// noteServerTimestamp lets dispatch code feed a server-stamped ctrl
// timestamp back into the clock-offset estimate.
func (s *Session) noteServerTimestamp(ts time.Time) {
	if ts.IsZero() {
		return
	}
	offset := time.Since(ts).Milliseconds()
	s.auth.setClockOffset(-offset)
	if s.store != nil && s.store.IsReady() {
		s.store.SetTimeAdjustment(-offset)
	}
}
