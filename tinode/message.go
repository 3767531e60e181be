// Package tinode implements the session layer of a client for a
// Tinode-protocol chat service: a single persistent websocket connection
// multiplexing request/response pairs, topic subscriptions, and the
// login/auto-reconnect state machine.
package tinode

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProtocolVersion is the wire protocol version this client speaks.
const ProtocolVersion = "0"

// NullValue is the server's "explicitly erase this field" sentinel.
const NullValue = "␡"

// IsNull reports whether v is the null-sentinel string.
func IsNull(v interface{}) bool {
	s, ok := v.(string)
	return ok && s == NullValue
}

// CredClient is an account credential such as an email address or phone
// number, sent from the client in {acc} and {login}.
type CredClient struct {
	Method   string      `json:"meth,omitempty"`
	Value    string      `json:"val,omitempty"`
	Response string      `json:"resp,omitempty"`
	Params   interface{} `json:"params,omitempty"`
}

// CredServer is a credential method as reported back by the server.
type CredServer struct {
	Method string `json:"meth,omitempty"`
	Value  string `json:"val,omitempty"`
	Done   bool   `json:"done,omitempty"`
}

// DefaultAcsMode describes a topic's default access mode.
type DefaultAcsMode struct {
	Auth string `json:"auth,omitempty"`
	Anon string `json:"anon,omitempty"`
}

// AccessMode is a topic access mode as reported by the server.
type AccessMode struct {
	Want  string `json:"want,omitempty"`
	Given string `json:"given,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// SetDesc is the topic-description half of a {set}/{acc}/{sub} request.
type SetDesc struct {
	DefaultAcs *DefaultAcsMode `json:"defacs,omitempty"`
	Public     interface{}     `json:"public,omitempty"`
	Private    interface{}     `json:"private,omitempty"`
}

// SetSub updates a subscription's access mode or invites another user.
type SetSub struct {
	User string `json:"user,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// SetQuery is the payload of a {set} request.
type SetQuery struct {
	Desc *SetDesc    `json:"desc,omitempty"`
	Sub  *SetSub     `json:"sub,omitempty"`
	Tags []string    `json:"tags,omitempty"`
	Cred *CredClient `json:"cred,omitempty"`
}

// GetOpts are the parameters of one {get} sub-query.
type GetOpts struct {
	User            string     `json:"user,omitempty"`
	Topic           string     `json:"topic,omitempty"`
	IfModifiedSince *time.Time `json:"ims,omitempty"`
	SinceID         int        `json:"since,omitempty"`
	BeforeID        int        `json:"before,omitempty"`
	Limit           int        `json:"limit,omitempty"`
}

// GetQuery is the payload of a {get} request.
type GetQuery struct {
	What string   `json:"what"`
	Desc *GetOpts `json:"desc,omitempty"`
	Sub  *GetOpts `json:"sub,omitempty"`
	Data *GetOpts `json:"data,omitempty"`
	Del  *GetOpts `json:"del,omitempty"`
}

// DelRange is either a single message id (HiID == 0) or a half-open range
// [LowID, HiID).
type DelRange struct {
	LowID int `json:"low,omitempty"`
	HiID  int `json:"hi,omitempty"`
}

// ---- Client to Server (C2S) payloads ----

// MsgHi is the {hi} handshake message.
type MsgHi struct {
	ID         string `json:"id,omitempty"`
	Version    string `json:"ver,omitempty"`
	UserAgent  string `json:"ua,omitempty"`
	DeviceID   string `json:"dev,omitempty"`
	Lang       string `json:"lang,omitempty"`
	Platform   string `json:"platf,omitempty"`
	Background bool   `json:"bkg,omitempty"`
}

// MsgAcc is the {acc} account-creation/update message.
type MsgAcc struct {
	ID        string        `json:"id,omitempty"`
	User      string        `json:"user,omitempty"`
	State     string        `json:"status,omitempty"`
	Token     []byte        `json:"token,omitempty"`
	Scheme    string        `json:"scheme,omitempty"`
	Secret    []byte        `json:"secret,omitempty"`
	Login     bool          `json:"login,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Desc      *SetDesc      `json:"desc,omitempty"`
	Cred      []CredClient  `json:"cred,omitempty"`
}

// MsgLogin is the {login} message.
type MsgLogin struct {
	ID     string       `json:"id,omitempty"`
	Scheme string       `json:"scheme,omitempty"`
	Secret []byte       `json:"secret"`
	Cred   []CredClient `json:"cred,omitempty"`
}

// MsgSub is the {sub} message.
type MsgSub struct {
	ID    string    `json:"id,omitempty"`
	Topic string    `json:"topic"`
	Set   *SetQuery `json:"set,omitempty"`
	Get   *GetQuery `json:"get,omitempty"`
}

// MsgLeave is the {leave} message.
type MsgLeave struct {
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic"`
	Unsub bool   `json:"unsub,omitempty"`
}

// MsgPub is the {pub} message.
type MsgPub struct {
	ID      string                 `json:"id,omitempty"`
	Topic   string                 `json:"topic"`
	NoEcho  bool                   `json:"noecho,omitempty"`
	Head    map[string]interface{} `json:"head,omitempty"`
	Content interface{}            `json:"content"`
}

// MsgGet is the {get} message.
type MsgGet struct {
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic"`
	GetQuery
}

// MsgSet is the {set} message.
type MsgSet struct {
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic"`
	SetQuery
}

// MsgDel is the {del} message.
type MsgDel struct {
	ID     string      `json:"id,omitempty"`
	Topic  string      `json:"topic,omitempty"`
	What   string      `json:"what"`
	DelSeq []DelRange  `json:"delseq,omitempty"`
	User   string      `json:"user,omitempty"`
	Cred   *CredClient `json:"cred,omitempty"`
	Hard   bool        `json:"hard,omitempty"`
}

// MsgNote is the fire-and-forget {note} message: no id, never registered
// with the FutureRegistry.
type MsgNote struct {
	Topic  string `json:"topic"`
	What   string `json:"what"`
	SeqID  int    `json:"seq,omitempty"`
	Unread int    `json:"unread,omitempty"`
}

// ClientMsg is the tagged union of client-to-server frames. Exactly one
// field is populated; the encoder enforces this.
type ClientMsg struct {
	Hi    *MsgHi    `json:"hi,omitempty"`
	Acc   *MsgAcc   `json:"acc,omitempty"`
	Login *MsgLogin `json:"login,omitempty"`
	Sub   *MsgSub   `json:"sub,omitempty"`
	Leave *MsgLeave `json:"leave,omitempty"`
	Pub   *MsgPub   `json:"pub,omitempty"`
	Get   *MsgGet   `json:"get,omitempty"`
	Set   *MsgSet   `json:"set,omitempty"`
	Del   *MsgDel   `json:"del,omitempty"`
	Note  *MsgNote  `json:"note,omitempty"`
}

// id returns the message id of whichever payload is set, or "" for {note}.
func (m *ClientMsg) id() string {
	switch {
	case m.Hi != nil:
		return m.Hi.ID
	case m.Acc != nil:
		return m.Acc.ID
	case m.Login != nil:
		return m.Login.ID
	case m.Sub != nil:
		return m.Sub.ID
	case m.Leave != nil:
		return m.Leave.ID
	case m.Pub != nil:
		return m.Pub.ID
	case m.Get != nil:
		return m.Get.ID
	case m.Set != nil:
		return m.Set.ID
	case m.Del != nil:
		return m.Del.ID
	}
	return ""
}

// tagCount reports how many of the tagged fields are non-nil. A valid
// ClientMsg has exactly one.
func (m *ClientMsg) tagCount() int {
	n := 0
	for _, set := range []bool{
		m.Hi != nil, m.Acc != nil, m.Login != nil, m.Sub != nil, m.Leave != nil,
		m.Pub != nil, m.Get != nil, m.Set != nil, m.Del != nil, m.Note != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// ---- Server to Client (S2C) payloads ----

// MsgServerCtrl is a {ctrl} control reply.
type MsgServerCtrl struct {
	ID        string                 `json:"id,omitempty"`
	Topic     string                 `json:"topic,omitempty"`
	Code      int                    `json:"code"`
	Text      string                 `json:"text,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timestamp time.Time              `json:"ts"`
}

// MsgServerData is a {data} content message.
type MsgServerData struct {
	ID        string                 `json:"-"`
	Topic     string                 `json:"topic"`
	From      string                 `json:"from,omitempty"`
	Timestamp time.Time              `json:"ts"`
	DeletedAt *time.Time             `json:"deleted,omitempty"`
	SeqID     int                    `json:"seq"`
	Head      map[string]interface{} `json:"head,omitempty"`
	Content   interface{}            `json:"content"`
}

// TopicDesc is the {meta.desc} payload.
type TopicDesc struct {
	CreatedAt  *time.Time      `json:"created,omitempty"`
	UpdatedAt  *time.Time      `json:"updated,omitempty"`
	TouchedAt  *time.Time      `json:"touched,omitempty"`
	State      string          `json:"state,omitempty"`
	Online     bool            `json:"online,omitempty"`
	DefaultAcs *DefaultAcsMode `json:"defacs,omitempty"`
	Acs        *AccessMode     `json:"acs,omitempty"`
	SeqID      int             `json:"seq,omitempty"`
	ReadSeqID  int             `json:"read,omitempty"`
	RecvSeqID  int             `json:"recv,omitempty"`
	DelID      int             `json:"clear,omitempty"`
	Public     interface{}     `json:"public,omitempty"`
	Private    interface{}     `json:"private,omitempty"`
}

// TopicSub is one element of the {meta.sub} array.
type TopicSub struct {
	UpdatedAt *time.Time  `json:"updated,omitempty"`
	DeletedAt *time.Time  `json:"deleted,omitempty"`
	Online    bool        `json:"online,omitempty"`
	Acs       AccessMode  `json:"acs,omitempty"`
	ReadSeqID int         `json:"read,omitempty"`
	RecvSeqID int         `json:"recv,omitempty"`
	Public    interface{} `json:"public,omitempty"`
	Private   interface{} `json:"private,omitempty"`
	User      string      `json:"user,omitempty"`
	Topic     string      `json:"topic,omitempty"`
	TouchedAt *time.Time  `json:"touched,omitempty"`
	SeqID     int         `json:"seq,omitempty"`
	DelID     int         `json:"clear,omitempty"`
}

// DelValues is the {meta.del} payload.
type DelValues struct {
	DelID  int        `json:"clear,omitempty"`
	DelSeq []DelRange `json:"delseq,omitempty"`
}

// MsgServerMeta is a {meta} metadata update.
type MsgServerMeta struct {
	ID        string        `json:"id,omitempty"`
	Topic     string        `json:"topic"`
	Timestamp *time.Time    `json:"ts,omitempty"`
	Desc      *TopicDesc    `json:"desc,omitempty"`
	Sub       []TopicSub    `json:"sub,omitempty"`
	Del       *DelValues    `json:"del,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Cred      []*CredServer `json:"cred,omitempty"`
}

// MsgServerPres is a {pres} presence update.
type MsgServerPres struct {
	Topic     string      `json:"topic"`
	Src       string      `json:"src,omitempty"`
	What      string      `json:"what"`
	UserAgent string      `json:"ua,omitempty"`
	SeqID     int         `json:"seq,omitempty"`
	DelID     int         `json:"clear,omitempty"`
	DelSeq    []DelRange  `json:"delseq,omitempty"`
	AcsTarget string      `json:"tgt,omitempty"`
	AcsActor  string      `json:"act,omitempty"`
	Acs       *AccessMode `json:"dacs,omitempty"`
}

// MsgServerInfo is an {info} delivery/read/typing receipt.
type MsgServerInfo struct {
	Topic string `json:"topic"`
	From  string `json:"from"`
	What  string `json:"what"`
	SeqID int    `json:"seq,omitempty"`
}

// ServerMsg is the tagged union of server-to-client frames. Decode rejects
// frames with zero or more than one populated field.
type ServerMsg struct {
	Ctrl *MsgServerCtrl `json:"ctrl,omitempty"`
	Data *MsgServerData `json:"data,omitempty"`
	Meta *MsgServerMeta `json:"meta,omitempty"`
	Pres *MsgServerPres `json:"pres,omitempty"`
	Info *MsgServerInfo `json:"info,omitempty"`
}

// tagCount reports how many of the tagged fields are populated.
func (m *ServerMsg) tagCount() int {
	n := 0
	for _, set := range []bool{m.Ctrl != nil, m.Data != nil, m.Meta != nil, m.Pres != nil, m.Info != nil} {
		if set {
			n++
		}
	}
	return n
}

// id returns the message id carried by whichever tag is populated, or ""
// for {pres}/{info} which never carry one.
func (m *ServerMsg) id() string {
	switch {
	case m.Ctrl != nil:
		return m.Ctrl.ID
	case m.Data != nil:
		return m.Data.ID
	case m.Meta != nil:
		return m.Meta.ID
	}
	return ""
}

// EncodeClientMsg serializes a client message to its wire form. It
// validates that exactly one tag is populated.
func EncodeClientMsg(m *ClientMsg) ([]byte, error) {
	if n := m.tagCount(); n != 1 {
		return nil, &JSONEncodeError{fmt.Errorf("client message must carry exactly one tag, got %d", n)}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, &JSONEncodeError{err}
	}
	return b, nil
}

// DecodeServerMsg parses one inbound wire frame. Unknown fields are
// ignored by encoding/json by default. A frame with zero or more than one
// recognized tag is a decode error.
func DecodeServerMsg(raw []byte) (*ServerMsg, error) {
	var m ServerMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &JSONDecodeError{err}
	}
	if n := m.tagCount(); n != 1 {
		return nil, &JSONDecodeError{fmt.Errorf("server frame must carry exactly one tag, got %d", n)}
	}
	// MsgServerData has no wire id (its ID field is tagged json:"-"), so
	// Data.ID is always empty after decoding.
	return &m, nil
}
