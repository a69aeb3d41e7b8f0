package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrAlreadyInRoom  = errors.New("session already in another room")
)

type sessionEntry struct {
	Session core.MemberSession
	Cancel  context.CancelFunc
	User    *domain.User
	Room    core.RoomService
}

// Registry maps connections to users and owns room lifecycle: a room is
// created by its first join and deleted when its last member leaves.
// Room creation and deletion happen under mu, so a join can never land in a
// room that is being deleted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    core.RoomManager
	lastUser uint64
	now      func() time.Time
}

func NewRegistry(rooms core.RoomManager) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    rooms,
		now:      time.Now,
	}
}

func (r *Registry) Rooms() core.RoomManager { return r.rooms }

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind forgets the connection. Callers leave the room first.
func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// Join makes the connection a member of the room named key, creating the room
// if needed. A new user identifier is minted and a color is taken from the
// room's pool. welcome runs inside the room transaction right after the
// member is admitted.
//
// Joining the room the connection is already in is idempotent: the existing
// user is returned and welcome runs again with rejoin set. Joining a
// different room returns ErrAlreadyInRoom.
func (r *Registry) Join(
	sid core.SessionID,
	key domain.RoomKey,
	welcome func(tx *core.Tx, user domain.User, rejoin bool),
) (domain.User, core.RoomService, core.PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sid]
	if !ok {
		return domain.User{}, nil, core.PublishResult{}, ErrUnknownSession
	}
	if e.User != nil {
		if e.User.Room != key {
			return *e.User, e.Room, core.PublishResult{}, ErrAlreadyInRoom
		}
		user := *e.User
		res := e.Room.Exec(func(tx *core.Tx) {
			if welcome != nil {
				welcome(tx, user, true)
			}
		})
		return user, e.Room, res, nil
	}

	r.lastUser++
	user := &domain.User{
		ID:       domain.NewUserID(r.lastUser),
		Room:     key,
		JoinedAt: r.now(),
	}
	room := r.rooms.GetOrCreate(key)
	res := room.Exec(func(tx *core.Tx) {
		tx.Admit(sid, e.Session, user)
		if welcome != nil {
			welcome(tx, *user, false)
		}
	})
	e.User = user
	e.Room = room

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Str("room", string(key)).Msg("joined room")
	return *user, room, res, nil
}

// Leave removes the connection's user from its room and frees its color.
// farewell runs inside the room transaction after the member is evicted.
// A room left empty is deleted together with its timeline.
// ok is false when the connection was not in a room.
func (r *Registry) Leave(
	sid core.SessionID,
	farewell func(tx *core.Tx, user domain.User),
) (user domain.User, res core.PublishResult, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.sessions[sid]
	if !found || e.User == nil {
		return domain.User{}, core.PublishResult{}, false
	}
	room := e.Room
	empty := false
	res = room.Exec(func(tx *core.Tx) {
		u, evicted := tx.Evict(sid)
		if !evicted {
			u = *e.User
		}
		user = u
		if farewell != nil {
			farewell(tx, u)
		}
		empty = tx.MemberCount() == 0
	})
	if empty {
		r.rooms.StopRoom(room.Key())
		log.Info().Str("module", "app.registry").Str("room", string(room.Key())).Msg("room deleted")
	}
	e.User = nil
	e.Room = nil

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Str("room", string(room.Key())).Msg("left room")
	return user, res, true
}

func (r *Registry) Lookup(sid core.SessionID) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.User == nil {
		return domain.User{}, false
	}
	return *e.User, true
}

func (r *Registry) RoomOf(sid core.SessionID) (core.RoomService, domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.User == nil {
		return nil, domain.User{}, false
	}
	return e.Room, *e.User, true
}

func (r *Registry) MembersOf(key domain.RoomKey) []core.MemberDTO {
	room, ok := r.rooms.Get(key)
	if !ok {
		return nil
	}
	return room.MembersSnapshot()
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
