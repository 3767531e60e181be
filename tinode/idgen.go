package tinode

import (
	"crypto/rand"
	"encoding/base32"
	"math/big"
	"strconv"
	"sync"
	"time"
)

// tinodeEpochMillis is the constant offset subtracted from the current
// wall-clock millisecond timestamp before folding it into a unique string,
// It has no calendar meaning; it is just large enough to
// keep the left-shifted value compact. Grounded on the same
// time-bits-then-counter layout github.com/tinode/snowflake uses for
// cluster-unique ids, adapted to the exact formula the protocol description names.
const tinodeEpochMillis = 1414213562373

// IDGenerator produces monotonic message ids and per-session unique
// strings.
type IDGenerator struct {
	mu      sync.Mutex
	msgID   int
	nameCtr int
}

// NewIDGenerator seeds the message-id counter with 0xffff + a uniform
// random value in [0, 0xffff], as required on every new connection.
func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.Reset()
	return g
}

// Reset reseeds the message-id counter; call on every new connection (not
// every reconnect attempt — only once the transport actually connects).
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.msgID = 0xffff + randIntn(0x10000)
}

// NextMsgID returns the next message id as a base-10 string and
// increments the counter.
func (g *IDGenerator) NextMsgID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.msgID++
	return strconv.Itoa(g.msgID)
}

// nameEncoding is unpadded base32, matching the protocol's "emits it base-32"
// requirement without introducing padding noise into generated names.
var nameEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NextUniqueString returns a per-process-lifetime-unique string, computed
// as (millis_since_epoch - tinodeEpochMillis) << 16 | (counter & 0xffff),
// base32-encoded.
func (g *IDGenerator) NextUniqueString() string {
	g.mu.Lock()
	g.nameCtr++
	ctr := g.nameCtr
	g.mu.Unlock()

	millis := time.Now().UnixMilli() - tinodeEpochMillis
	val := (millis << 16) | int64(ctr&0xffff)

	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(val & 0xff)
		val >>= 8
	}
	return nameEncoding.EncodeToString(buf[:])
}

// randIntn returns a cryptographically sound uniform random integer in
// [0, n). Falls back to a time-derived value if the system RNG is
// unavailable, which never happens in practice but keeps this total.
func randIntn(n int64) int {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return int(time.Now().UnixNano() % n)
	}
	return int(v.Int64())
}
