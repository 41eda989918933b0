package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/islandrelay/internal/protocol"
)

// relayConn is a logged-in WebSocket session against the relay
type relayConn struct {
	conn *websocket.Conn
	stop func() bool
	// id is the connection id the relay assigned to us
	id string
	// pending holds events read while waiting for the login roster
	pending []Event
}

// joinRelay dials the relay and logs in; emoji is drawn from the server when empty
func joinRelay(ctx context.Context, username, emoji string) (*relayConn, error) {
	if username == "" {
		return nil, errors.New("--username is required")
	}
	if emoji == "" {
		var character CharacterResult
		if err := client.Get(ctx, "/api/random-character", &character); err != nil {
			return nil, fmt.Errorf("drawing avatar: %w", err)
		}
		emoji = character.Emoji
	}

	socketURL, err := client.SocketURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	client.tracef("connected to %s\n", socketURL)

	// Unblock pending reads once the caller gives up
	rc := &relayConn{
		conn: conn,
		stop: context.AfterFunc(ctx, func() { _ = conn.Close() }),
	}

	if err := rc.send(protocol.EventLogin, map[string]string{"username": username, "emoji": emoji}); err != nil {
		rc.close()
		return nil, err
	}
	if err := rc.awaitRoster(); err != nil {
		rc.close()
		return nil, err
	}
	client.tracef("logged in as %s\n", rc.id)
	return rc, nil
}

// awaitRoster reads up to the existingPlayers reply to our login.
// The roster is in login order, so our own record is its last entry.
func (r *relayConn) awaitRoster() error {
	for {
		evt, err := r.read()
		if err != nil {
			return fmt.Errorf("waiting for login: %w", err)
		}
		r.pending = append(r.pending, evt)
		if evt.Event != protocol.EventExistingPlayers {
			continue
		}

		var roster []protocol.PlayerRecord
		if err := json.Unmarshal(evt.Data, &roster); err != nil {
			return fmt.Errorf("decoding roster: %w", err)
		}
		if len(roster) == 0 {
			return errors.New("login roster does not include us")
		}
		r.id = roster[len(roster)-1].ID
		return nil
	}
}

func (r *relayConn) send(event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	if err := r.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("sending %s: %w", event, err)
	}
	return nil
}

// next returns buffered events first, then blocks until the relay sends one or the connection ends
func (r *relayConn) next() (Event, error) {
	if len(r.pending) > 0 {
		evt := r.pending[0]
		r.pending = r.pending[1:]
		return evt, nil
	}
	return r.read()
}

func (r *relayConn) read() (Event, error) {
	_, raw, err := r.conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		return Event{}, err
	}
	return Event{Time: time.Now(), Event: env.Event, Data: env.Data}, nil
}

// close says goodbye politely; the relay treats either side closing as a disconnect
func (r *relayConn) close() {
	r.stop()
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = r.conn.Close()
}
