// Package ws exposes a room over websockets with a small JSON protocol:
// the client says hello with its player id, then sends actions; the
// server pushes welcome, snapshots, effects, rejections and the endgame.
package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/quaternion/internal/room"
)

const (
	writeWait     = 5 * time.Second
	handshakeWait = 5 * time.Second
	readWait      = 60 * time.Second
	sessionBuffer = 128
)

// Server serves one room.
type Server struct {
	room *room.Room
	log  *log.Logger

	upgrader websocket.Upgrader
}

// NewServer creates a websocket front for r. A nil logger discards.
func NewServer(r *room.Room, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		room: r,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades the request and runs the session until either side
// closes.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer conn.Close()

		hello, ok := s.handshake(conn)
		if !ok {
			return
		}

		session := room.NewChannelSession(room.SessionID(uuid.NewString()), sessionBuffer)
		defer session.Close()
		s.room.Join(session, hello.Player)
		defer s.room.Leave(session.ID())
		s.log.Info("client connected", "session", session.ID(), "player", hello.Player, "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go s.writeLoop(ctx, cancel, conn, session)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var msg ClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				session.Send(room.ErrorEvent{Message: "malformed message"})
				continue
			}
			if msg.Type != TypeAction || msg.Action == nil {
				session.Send(room.ErrorEvent{Message: "expected an action"})
				continue
			}
			s.room.Submit(session.ID(), *msg.Action)
		}
		s.log.Info("client disconnected", "session", session.ID(), "player", hello.Player)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (ClientMsg, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	var hello ClientMsg
	if err := conn.ReadJSON(&hello); err != nil {
		return hello, false
	}
	reason := ""
	switch {
	case hello.Type != TypeHello:
		reason = "expected hello"
	case hello.Version != Version:
		reason = "bad protocol version"
	case hello.Player == "":
		reason = "player id is required"
	}
	if reason != "" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(time.Second))
		return hello, false
	}
	return hello, true
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, session *room.ChannelSession) {
	defer cancel()
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.room.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed"),
				time.Now().Add(time.Second))
			return
		case evt := <-session.Events():
			msg, ok := encode(evt)
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
