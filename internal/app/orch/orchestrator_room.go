package orch

import (
	"errors"

	"github.com/dkeye/Canvas/internal/app"
	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/dkeye/Canvas/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join puts sid into the room, leaving its current room first if it is a
// different one. The joiner receives user-info, existing-users and
// full-state-sync; everyone else receives user-joined.
func (o *Orchestrator) Join(sid core.SessionID, key domain.RoomKey) (domain.User, error) {
	user, room, res, err := o.Registry.Join(sid, key, welcome(sid))
	if errors.Is(err, app.ErrAlreadyInRoom) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(user.Room)).Str("room", string(key)).Msg("switching rooms")
		o.LeaveRoom(sid)
		user, room, res, err = o.Registry.Join(sid, key, welcome(sid))
	}
	if err != nil {
		return domain.User{}, err
	}
	o.settle(room, res)
	return user, nil
}

func welcome(sid core.SessionID) func(tx *core.Tx, user domain.User, rejoin bool) {
	return func(tx *core.Tx, user domain.User, rejoin bool) {
		unicast(tx, sid, protocol.NewUserInfo(user))
		unicast(tx, sid, protocol.NewExistingUsers(tx.Members(), user.ID))
		unicast(tx, sid, protocol.NewFullStateSync(tx.Timeline.FullState()))
		if !rejoin {
			publish(tx, sid, protocol.NewUserJoined(user))
		}
	}
}

// LeaveRoom removes sid from its room. The user's open strokes are closed
// (those too short to keep are discarded) and a stroke-end is announced for
// each, followed by user-left.
func (o *Orchestrator) LeaveRoom(sid core.SessionID) bool {
	room, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	_, res, ok := o.Registry.Leave(sid, func(tx *core.Tx, user domain.User) {
		for _, c := range tx.Timeline.CloseOpenBy(user.ID) {
			publish(tx, sid, protocol.NewStrokeEnded(c.ID, user.ID, c.Kept))
		}
		publish(tx, sid, protocol.NewUserLeft(user.ID))
	})
	if ok {
		o.settle(room, res)
	}
	return ok
}

// OnDisconnect is called once the transport for sid is gone.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.LeaveRoom(sid)
	o.Registry.Unbind(sid)
}

func (o *Orchestrator) CursorMove(sid core.SessionID, req protocol.CursorMove) bool {
	room, user, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	res := room.Exec(func(tx *core.Tx) {
		publish(tx, sid, protocol.NewCursorMoved(user, req.At))
	})
	o.settle(room, res)
	return true
}
