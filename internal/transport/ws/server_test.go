package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vovakirdan/quaternion/internal/config"
	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/match"
	"github.com/vovakirdan/quaternion/internal/room"
	"github.com/vovakirdan/quaternion/internal/sim"
)

func newServer(t *testing.T) (*room.Room, string) {
	t.Helper()
	tables, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg := core.DefaultMatchConfig()
	cfg.Mode = core.ModeMultiplayer
	cfg.RoomID = "ws"
	r, err := room.New(context.Background(), room.DefaultConfig(cfg, tables),
		room.WithMatchOptions(match.WithoutSubsystems(), match.WithoutEconomy()))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewServer(r, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		r.Close()
	})
	return r, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// client reads server messages into a channel.
type client struct {
	conn *websocket.Conn
	msgs chan ServerMsg
}

func dial(t *testing.T, url string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := &client{conn: conn, msgs: make(chan ServerMsg, 256)}
	go func() {
		defer close(c.msgs)
		for {
			var msg ServerMsg
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			c.msgs <- msg
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return c
}

// await steps the room until the client sees a message of type typ.
func await(t *testing.T, r *room.Room, c *client, typ string) ServerMsg {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		r.Step(1.0 / 60)
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				t.Fatalf("connection closed while waiting for %s", typ)
			}
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s message", typ)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHelloActionRejection(t *testing.T) {
	r, url := newServer(t)
	c := dial(t, url)

	if err := c.conn.WriteJSON(ClientMsg{Type: TypeHello, Version: Version, Player: "alice"}); err != nil {
		t.Fatal(err)
	}
	welcome := await(t, r, c, TypeWelcome)
	if welcome.Player != "alice" || welcome.Room != "ws" || welcome.MatchID != r.MatchID() {
		t.Fatalf("welcome = %+v", welcome)
	}
	snap := await(t, r, c, TypeSnapshot)
	if snap.State == nil || snap.State.Player("alice") == nil {
		t.Fatalf("snapshot = %+v", snap)
	}

	action := core.PlayerAction{Type: core.ActionBuild, ActorID: "mallory", Payload: core.ActionPayload{Building: "barracks"}}
	if err := c.conn.WriteJSON(ClientMsg{Type: TypeAction, Version: Version, Action: &action}); err != nil {
		t.Fatal(err)
	}
	rej := await(t, r, c, TypeRejection)
	if rej.Rejection.Action.ActorID != "alice" || rej.Rejection.Action.SequenceNo != 1 {
		t.Fatalf("rejection = %+v", rej.Rejection)
	}
	if !strings.Contains(rej.Rejection.Reason, sim.ErrUnaffordable.Error()) {
		t.Fatalf("reason = %q", rej.Rejection.Reason)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if e := await(t, r, c, TypeError); e.Error != "malformed message" {
		t.Fatalf("error = %+v", e)
	}
}

func TestHandshakeRejectsBadHello(t *testing.T) {
	tests := []struct {
		name  string
		hello ClientMsg
	}{
		{"wrong type", ClientMsg{Type: TypeAction, Version: Version, Player: "a"}},
		{"wrong version", ClientMsg{Type: TypeHello, Version: 99, Player: "a"}},
		{"no player", ClientMsg{Type: TypeHello, Version: Version}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, url := newServer(t)
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()
			conn.WriteJSON(tt.hello)
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err = conn.ReadMessage()
			if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				t.Fatalf("err = %v, want policy violation close", err)
			}
		})
	}
}

func TestEncodeCoversEveryEvent(t *testing.T) {
	tests := []struct {
		evt  room.Event
		want string
	}{
		{room.WelcomeEvent{Player: "a"}, TypeWelcome},
		{room.SnapshotEvent{}, TypeSnapshot},
		{room.EffectEvent{Effect: sim.NarrativeBeat{Text: "x"}}, TypeEffect},
		{room.RejectionEvent{}, TypeRejection},
		{room.DecisionEvent{}, TypeDecision},
		{room.EndgameEvent{}, TypeEndgame},
		{room.ErrorEvent{Message: "m"}, TypeError},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			msg, ok := encode(tt.evt)
			if !ok || msg.Type != tt.want || msg.Version != Version {
				t.Fatalf("encode = %+v, %v", msg, ok)
			}
		})
	}
}
