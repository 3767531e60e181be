package tinode

// Transport is the websocket (or HTTP long-poll) connection collaborator.
// The session layer owns none of its implementation, treating it purely
// as an external interface. transport/ws provides a gorilla/websocket
// implementation.
type Transport interface {
	// Connect dials the endpoint. If reconnectAutomatically is true the
	// transport is expected to retry on its own policy after an
	// unexpected close, invoking OnConnect(reconnecting=true) on success.
	Connect(reconnectAutomatically bool) error
	Disconnect()
	Send(data []byte) error

	IsConnected() bool
	IsWaitingToConnect() bool

	SetOnConnect(func(reconnecting bool))
	SetOnMessage(func(text string))
	SetOnDisconnect(func(byServer bool, code int, reason string))
	SetOnError(func(err error))
}

// Endpoint builds the wire URL for a tinode-protocol endpoint: scheme
// depends on websocket-vs-HTTP and TLS, version is always the literal
// protocol version.
func Endpoint(host string, tls, websocket bool) string {
	var scheme string
	switch {
	case websocket && tls:
		scheme = "wss"
	case websocket && !tls:
		scheme = "ws"
	case !websocket && tls:
		scheme = "https"
	default:
		scheme = "http"
	}
	return scheme + "://" + host + "/v" + ProtocolVersion + "/channels"
}
