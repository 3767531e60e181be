package tinode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingListener struct {
	NoopListener
	connects []int
}

func (l *recordingListener) OnConnect(code int, reason string, params map[string]interface{}) {
	l.connects = append(l.connects, code)
}

func TestListenerSetAddIsIdempotent(t *testing.T) {
	var s ListenerSet
	l := &recordingListener{}
	s.Add(l)
	s.Add(l)
	assert.Len(t, s.snapshot(), 1)
}

func TestListenerSetRemove(t *testing.T) {
	var s ListenerSet
	l := &recordingListener{}
	s.Add(l)
	s.Remove(l)
	assert.Len(t, s.snapshot(), 0)
	// Removing again is a no-op, not a panic.
	s.Remove(l)
}

func TestListenerSetFireConnectReachesAllListeners(t *testing.T) {
	var s ListenerSet
	a := &recordingListener{}
	b := &recordingListener{}
	s.Add(a)
	s.Add(b)

	s.fireConnect(200, "ok", nil)

	assert.Equal(t, []int{200}, a.connects)
	assert.Equal(t, []int{200}, b.connects)
}

func TestListenerSetAddNilIsNoop(t *testing.T) {
	var s ListenerSet
	s.Add(nil)
	assert.Len(t, s.snapshot(), 0)
}
