package core

import (
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/rs/zerolog/log"
)

// Tx is the exclusive view of a room handed to RoomService.Exec callbacks.
// It must not be retained after the callback returns.
type Tx struct {
	room     *roomImpl
	Timeline *Timeline
	res      PublishResult
}

func (tx *Tx) Key() domain.RoomKey { return tx.room.key }

func (tx *Tx) MemberCount() int { return len(tx.room.bySID) }

func (tx *Tx) Members() []MemberDTO { return tx.room.members() }

// Admit registers the session as a member, assigns user a color from the
// room's pool and returns it. Admitting an existing member returns its color.
func (tx *Tx) Admit(sid SessionID, ms MemberSession, user *domain.User) domain.Color {
	r := tx.room
	if m, ok := r.bySID[sid]; ok {
		user.Color = m.user.Color
		return m.user.Color
	}
	user.Color = r.allocateColor()
	user.Room = r.key
	r.bySID[sid] = &member{sess: ms, user: *user}
	r.byUser[user.ID] = sid
	log.Info().Str("module", "core.room").Str("room", string(r.key)).Str("sid", string(sid)).Str("user", string(user.ID)).Str("color", string(user.Color)).Msg("member added")
	return user.Color
}

// Evict removes the member, frees its color and drops its undo stack.
func (tx *Tx) Evict(sid SessionID) (domain.User, bool) {
	r := tx.room
	m, ok := r.bySID[sid]
	if !ok {
		return domain.User{}, false
	}
	delete(r.bySID, sid)
	delete(r.byUser, m.user.ID)
	r.releaseColor(m.user.Color)
	r.timeline.Forget(m.user.ID)
	log.Info().Str("module", "core.room").Str("room", string(r.key)).Str("sid", string(sid)).Str("user", string(m.user.ID)).Msg("member removed")
	return m.user, true
}

// Publish enqueues f for the recipients selected by scope relative to from.
func (tx *Tx) Publish(scope Scope, from SessionID, f Frame) {
	switch scope {
	case ScopeSender:
		if m, ok := tx.room.bySID[from]; ok {
			tx.send(from, m, f)
		}
	case ScopeRoom, ScopeOthers:
		for sid, m := range tx.room.bySID {
			if scope == ScopeOthers && sid == from {
				continue
			}
			tx.send(sid, m, f)
		}
	}
}

func (tx *Tx) ToRoom(f Frame) { tx.Publish(ScopeRoom, "", f) }

func (tx *Tx) ToOthers(from SessionID, f Frame) { tx.Publish(ScopeOthers, from, f) }

func (tx *Tx) ToOne(sid SessionID, f Frame) { tx.Publish(ScopeSender, sid, f) }

func (tx *Tx) send(sid SessionID, m *member, f Frame) {
	if err := m.sess.Signal().TrySend(f); err != nil {
		tx.res.Dropped = append(tx.res.Dropped, sid)
		return
	}
	tx.res.SendTo++
}
