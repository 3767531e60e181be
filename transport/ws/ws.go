// Package ws implements the tinode.Transport collaborator interface over
// a real network socket using gorilla/websocket, the same library the
// teacher server (github.com/tinode/chat) uses on its side of this wire
// protocol (server/session.go ws *websocket.Conn field).
package ws

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// backoff bounds between automatic reconnect attempts.
const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Transport is a gorilla/websocket-backed implementation of
// tinode.Transport. Retry backoff shape is left to the transport; this
// implementation uses a simple doubling backoff, which is a policy choice
// internal to this package.
type Transport struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	id      string // per-Transport correlation id; not sent on the wire, and this package does no logging of its own

	mu              sync.Mutex
	writeMu         sync.Mutex
	conn            *websocket.Conn
	connected       bool
	waitingToReconnect bool
	closing         bool

	onConnect    func(reconnecting bool)
	onMessage    func(text string)
	onDisconnect func(byServer bool, code int, reason string)
	onError      func(err error)
}

// New creates a Transport for endpoint (see tinode.Endpoint for how to
// build it). extraHeaders may carry e.g. an API-key header.
func New(endpoint string, extraHeaders http.Header) *Transport {
	if extraHeaders == nil {
		extraHeaders = http.Header{}
	}
	return &Transport{
		url:    endpoint,
		header: extraHeaders,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		id: uuid.NewString(),
	}
}

func (t *Transport) SetOnConnect(f func(reconnecting bool))                     { t.onConnect = f }
func (t *Transport) SetOnMessage(f func(text string))                           { t.onMessage = f }
func (t *Transport) SetOnDisconnect(f func(byServer bool, code int, reason string)) { t.onDisconnect = f }
func (t *Transport) SetOnError(f func(err error))                               { t.onError = f }

// IsConnected reports whether a live socket currently exists.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// IsWaitingToConnect reports whether the automatic-reconnect loop is
// currently backing off before its next dial attempt.
func (t *Transport) IsWaitingToConnect() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waitingToReconnect
}

// Connect dials the endpoint once; if reconnectAutomatically is set, a
// background loop redials with exponential backoff whenever the socket
// drops unexpectedly, until Disconnect is called.
func (t *Transport) Connect(reconnectAutomatically bool) error {
	t.mu.Lock()
	t.closing = false
	t.mu.Unlock()

	if err := t.dial(false); err != nil {
		if reconnectAutomatically {
			go t.reconnectLoop()
			return nil
		}
		return err
	}
	if reconnectAutomatically {
		go t.readLoop(true)
	} else {
		go t.readLoop(false)
	}
	return nil
}

func (t *Transport) dial(reconnecting bool) error {
	u, err := url.Parse(t.url)
	if err != nil {
		return err
	}
	conn, _, err := t.dialer.Dial(u.String(), t.header)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.waitingToReconnect = false
	t.mu.Unlock()

	if t.onConnect != nil {
		t.onConnect(reconnecting)
	}
	return nil
}

func (t *Transport) readLoop(autoReconnect bool) {
	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(err, autoReconnect)
			return
		}
		if t.onMessage != nil {
			t.onMessage(string(data))
		}
	}
}

func (t *Transport) handleClose(err error, autoReconnect bool) {
	t.mu.Lock()
	t.connected = false
	t.conn = nil
	closing := t.closing
	t.mu.Unlock()

	code, reason := 0, ""
	if ce, ok := err.(*websocket.CloseError); ok {
		code, reason = ce.Code, ce.Text
	}

	if t.onDisconnect != nil {
		t.onDisconnect(!closing, code, reason)
	}

	if autoReconnect && !closing {
		go t.reconnectLoop()
	}
}

func (t *Transport) reconnectLoop() {
	t.mu.Lock()
	t.waitingToReconnect = true
	t.mu.Unlock()

	backoff := minBackoff
	for {
		t.mu.Lock()
		closing := t.closing
		t.mu.Unlock()
		if closing {
			return
		}

		time.Sleep(backoff)

		if err := t.dial(true); err == nil {
			go t.readLoop(true)
			return
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Disconnect closes the socket and stops any pending reconnect loop.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.closing = true
	conn := t.conn
	t.conn = nil
	t.connected = false
	t.waitingToReconnect = false
	t.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
}

// Send writes one frame. Safe to call concurrently with other Sends;
// gorilla/websocket requires callers to serialize writes.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return websocket.ErrCloseSent
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
