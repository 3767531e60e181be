package main

import (
	"log"
	"time"

	"github.com/tinode/tncore/tinode"
)

// consoleTopic is the minimal tinode.TopicHandle this demo needs: it just
// logs what arrives. A real application would maintain message history,
// subscriber sets and read markers here instead — explicitly out of scope
// for the core.
type consoleTopic struct {
	name      string
	kind      tinode.TopicType
	updatedAt time.Time
	touchedAt time.Time
}

func newConsoleTopic(name string) *consoleTopic {
	return &consoleTopic{name: name, kind: tinode.ClassifyTopicName(name)}
}

func (t *consoleTopic) Name() string             { return t.name }
func (t *consoleTopic) Type() tinode.TopicType   { return t.kind }
func (t *consoleTopic) UpdatedAt() time.Time     { return t.updatedAt }
func (t *consoleTopic) TouchedAt() time.Time     { return t.touchedAt }

func (t *consoleTopic) RouteData(msg *tinode.MsgServerData) {
	t.touchedAt = msg.Timestamp
	log.Printf("[%s] %s: %v", t.name, msg.From, msg.Content)
}

func (t *consoleTopic) RouteMeta(msg *tinode.MsgServerMeta) {
	if msg.Desc != nil {
		if msg.Desc.UpdatedAt != nil {
			t.updatedAt = *msg.Desc.UpdatedAt
		}
		if msg.Desc.TouchedAt != nil {
			t.touchedAt = *msg.Desc.TouchedAt
		}
	}
	log.Printf("[%s] meta: %+v", t.name, msg)
}

func (t *consoleTopic) RoutePres(msg *tinode.MsgServerPres) {
	log.Printf("[%s] pres %s from %s", t.name, msg.What, msg.Src)
}

func (t *consoleTopic) RouteInfo(msg *tinode.MsgServerInfo) {
	log.Printf("[%s] info %s from %s seq=%d", t.name, msg.What, msg.From, msg.SeqID)
}

func (t *consoleTopic) TopicLeft(unsub bool, code int, reason string) {
	log.Printf("[%s] left (unsub=%v code=%d reason=%s)", t.name, unsub, code, reason)
}

func (t *consoleTopic) AllMessagesReceived(count int) {
	log.Printf("[%s] all messages received (%d)", t.name, count)
}

func (t *consoleTopic) AllSubsReceived() {
	log.Printf("[%s] all subs received", t.name)
}

func topicFactory(name string, desc *tinode.TopicDesc) tinode.TopicHandle {
	t := newConsoleTopic(name)
	if desc != nil {
		if desc.UpdatedAt != nil {
			t.updatedAt = *desc.UpdatedAt
		}
		if desc.TouchedAt != nil {
			t.touchedAt = *desc.TouchedAt
		}
	}
	return t
}
