package tinode

import "sync"

// fakeTransport is an in-memory stand-in for tinode.Transport, letting
// session_test.go drive the connect/hello/login/dispatch machinery without
// a real socket. Connect and Send run synchronously on the calling
// goroutine, mirroring what transport/ws does for the initial dial.
type fakeTransport struct {
	mu sync.Mutex

	connected          bool
	waitingToReconnect bool
	closed             bool
	connectErr         error
	sendErr            error

	sent [][]byte

	onConnect    func(reconnecting bool)
	onMessage    func(text string)
	onDisconnect func(byServer bool, code int, reason string)
	onError      func(err error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) SetOnConnect(fn func(reconnecting bool))                        { f.onConnect = fn }
func (f *fakeTransport) SetOnMessage(fn func(text string))                              { f.onMessage = fn }
func (f *fakeTransport) SetOnDisconnect(fn func(byServer bool, code int, reason string)) { f.onDisconnect = fn }
func (f *fakeTransport) SetOnError(fn func(err error))                                  { f.onError = fn }

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) IsWaitingToConnect() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitingToReconnect
}

func (f *fakeTransport) Connect(reconnectAutomatically bool) error {
	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return err
	}
	f.connected = true
	f.closed = false
	f.mu.Unlock()

	if f.onConnect != nil {
		f.onConnect(false)
	}
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errNotConnectedFake
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

// lastSent returns the most recently sent frame, or nil if none.
func (f *fakeTransport) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// deliver simulates an inbound wire frame arriving on the socket.
func (f *fakeTransport) deliver(raw string) {
	if f.onMessage != nil {
		f.onMessage(raw)
	}
}

// simulateDisconnect simulates the server (or network) dropping the
// connection.
func (f *fakeTransport) simulateDisconnect(byServer bool, code int, reason string) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	if f.onDisconnect != nil {
		f.onDisconnect(byServer, code, reason)
	}
}

type fakeTransportError string

func (e fakeTransportError) Error() string { return string(e) }

const errNotConnectedFake = fakeTransportError("fake transport: not connected")
