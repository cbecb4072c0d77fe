package room

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vovakirdan/quaternion/internal/core"
)

// SessionID uniquely identifies a connection (SSH session, websocket).
type SessionID string

// SessionHandle is how the room talks to a connection without knowing the
// transport behind it.
type SessionHandle interface {
	ID() SessionID

	// Send queues evt for the client. It must never block the room loop.
	Send(evt Event)

	// Done is closed when the connection is gone.
	Done() <-chan struct{}
}

// ChannelSession is a SessionHandle backed by a bounded channel. When the
// client falls behind, the oldest queued event is dropped.
type ChannelSession struct {
	id       SessionID
	events   chan Event
	done     chan struct{}
	doneOnce sync.Once
	dropped  atomic.Uint64
}

// NewChannelSession creates a session queueing up to size events.
func NewChannelSession(id SessionID, size int) *ChannelSession {
	if size < 1 {
		size = 64
	}
	return &ChannelSession{
		id:     id,
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *ChannelSession) ID() SessionID { return s.id }

// Send queues evt, evicting the oldest events until it fits. Events sent
// after Close are discarded.
func (s *ChannelSession) Send(evt Event) {
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case s.events <- evt:
			return
		default:
		}
		select {
		case <-s.events:
			s.dropped.Add(1)
		default:
		}
	}
}

// Events is read by the transport.
func (s *ChannelSession) Events() <-chan Event { return s.events }

// Done is closed by Close.
func (s *ChannelSession) Done() <-chan struct{} { return s.done }

// Dropped returns how many events were evicted unread.
func (s *ChannelSession) Dropped() uint64 { return s.dropped.Load() }

// Close ends the session. Safe to call more than once.
func (s *ChannelSession) Close() {
	s.doneOnce.Do(func() { close(s.done) })
}

type seat struct {
	session SessionHandle
	player  core.PlayerID
}

// Seats binds sessions to the players they act for. One player may hold
// several seats, e.g. after reconnecting before the old connection timed
// out.
type Seats struct {
	mu    sync.RWMutex
	seats map[SessionID]seat
}

// NewSeats creates an empty seat table.
func NewSeats() *Seats {
	return &Seats{seats: make(map[SessionID]seat)}
}

// Seat binds s to player, replacing any previous binding of s.
func (t *Seats) Seat(s SessionHandle, player core.PlayerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seats[s.ID()] = seat{session: s, player: player}
}

// Unseat removes a session and returns the player it acted for.
func (t *Seats) Unseat(id SessionID) (core.PlayerID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.seats[id]
	if ok {
		delete(t.seats, id)
	}
	return st.player, ok
}

// Player returns the player a session acts for.
func (t *Seats) Player(id SessionID) (core.PlayerID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.seats[id]
	return st.player, ok
}

// Session returns a seated session.
func (t *Seats) Session(id SessionID) (SessionHandle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.seats[id]
	return st.session, ok
}

// Count returns the number of seated sessions.
func (t *Seats) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seats)
}

// Broadcast sends evt to every seated session.
func (t *Seats) Broadcast(evt Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, st := range t.seats {
		st.session.Send(evt)
	}
}

// SendTo sends evt to every session of player.
func (t *Seats) SendTo(player core.PlayerID, evt Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, st := range t.seats {
		if st.player == player {
			st.session.Send(evt)
		}
	}
}

// Prune unseats every session whose connection has ended and returns
// their ids in sorted order.
func (t *Seats) Prune() []SessionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var gone []SessionID
	for id, st := range t.seats {
		select {
		case <-st.session.Done():
			delete(t.seats, id)
			gone = append(gone, id)
		default:
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	return gone
}
