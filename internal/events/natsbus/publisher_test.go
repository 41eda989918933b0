package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/islandrelay/internal/protocol"
	"github.com/mcoot/islandrelay/internal/testutil"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	messages []published
	failOn   string
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if subject == f.failOn {
		return errors.New("nats: connection closed")
	}
	f.messages = append(f.messages, published{subject: subject, data: data})
	return nil
}

func TestSubject(t *testing.T) {
	p := NewPublisher(&fakeConn{}, "", testutil.NopLogger())
	assert.Equal(t, "presence.events.newPlayer", p.Subject(protocol.EventNewPlayer))

	p = NewPublisher(&fakeConn{}, "island.eu", testutil.NopLogger())
	assert.Equal(t, "island.eu.playerMoved", p.Subject(protocol.EventPlayerMoved))
}

func TestDeliverPublishesEachEvent(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "", testutil.NopLogger())

	p.Deliver(context.Background(), protocol.Batch{
		{Target: protocol.AllExcept("a"), Event: protocol.EventPlayerMoved, Payload: protocol.PlayerMoved{ID: "a", X: 1, Y: 2}},
		{Target: protocol.All(), Event: protocol.EventPlayerDisconnected, Payload: "b"},
	})

	require.Len(t, conn.messages, 2)
	assert.Equal(t, "presence.events.playerMoved", conn.messages[0].subject)
	assert.JSONEq(t, `{"target":"others:a","event":"playerMoved","data":{"id":"a","x":1,"y":2}}`, string(conn.messages[0].data))

	var msg Message
	require.NoError(t, json.Unmarshal(conn.messages[1].data, &msg))
	assert.Equal(t, "all", msg.Target)
	assert.JSONEq(t, `"b"`, string(msg.Data))
}

func TestDeliverContinuesAfterFailure(t *testing.T) {
	conn := &fakeConn{failOn: "presence.events.newChatMessage"}
	p := NewPublisher(conn, "", testutil.NopLogger())

	p.Deliver(context.Background(), protocol.Batch{
		{Target: protocol.All(), Event: protocol.EventNewChatMessage, Payload: protocol.ChatMessage{}},
		{Target: protocol.To("a"), Event: protocol.EventGiftConfirmed, Payload: protocol.GiftConfirmed{}},
	})

	require.Len(t, conn.messages, 1)
	assert.Equal(t, "presence.events.giftConfirmed", conn.messages[0].subject)
}

func TestConnectFailsWithoutServer(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "test")
	assert.Error(t, err)
}
