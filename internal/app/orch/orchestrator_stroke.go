package orch

import (
	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/dkeye/Canvas/internal/protocol"
	"github.com/rs/zerolog/log"
)

// StrokeStart opens a stroke and echoes it, with its durable identifier, to
// the whole room including the originator.
func (o *Orchestrator) StrokeStart(sid core.SessionID, req protocol.StrokeStart) (domain.StrokeID, bool) {
	room, user, ok := o.Registry.RoomOf(sid)
	if !ok {
		return 0, false
	}
	var s domain.Stroke
	res := room.Exec(func(tx *core.Tx) {
		s = tx.Timeline.Open(user.ID, req.Kind, req.Color, req.Size, req.At)
		publish(tx, sid, protocol.NewStrokeStarted(s))
	})
	o.settle(room, res)
	log.Debug().Str("module", "orch").Str("room", string(room.Key())).Str("user", string(user.ID)).Uint64("stroke", uint64(s.ID)).Msg("stroke opened")
	return s.ID, true
}

// StrokeUpdate appends a point to one of the sender's own open strokes.
func (o *Orchestrator) StrokeUpdate(sid core.SessionID, req protocol.StrokeUpdate) bool {
	room, user, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	appended := false
	res := room.Exec(func(tx *core.Tx) {
		if owner, found := tx.Timeline.Owner(req.StrokeID); !found || owner != user.ID {
			return
		}
		if !tx.Timeline.Append(req.StrokeID, req.At) {
			return
		}
		appended = true
		publish(tx, sid, protocol.NewStrokeUpdated(req.StrokeID, user.ID, req.At))
	})
	o.settle(room, res)
	if !appended {
		log.Debug().Str("module", "orch").Str("user", string(user.ID)).Uint64("stroke", uint64(req.StrokeID)).Msg("update for unknown stroke")
	}
	return appended
}

// StrokeEnd closes one of the sender's own open strokes.
func (o *Orchestrator) StrokeEnd(sid core.SessionID, req protocol.StrokeEnd) bool {
	room, user, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	closed := false
	res := room.Exec(func(tx *core.Tx) {
		if owner, found := tx.Timeline.Owner(req.StrokeID); !found || owner != user.ID {
			return
		}
		kept, ok := tx.Timeline.Close(req.StrokeID)
		if !ok {
			return
		}
		closed = true
		publish(tx, sid, protocol.NewStrokeEnded(req.StrokeID, user.ID, kept))
	})
	o.settle(room, res)
	if !closed {
		log.Debug().Str("module", "orch").Str("user", string(user.ID)).Uint64("stroke", uint64(req.StrokeID)).Msg("end for unknown stroke")
	}
	return closed
}

// Undo removes the sender's latest closed stroke from the shared timeline.
func (o *Orchestrator) Undo(sid core.SessionID) (domain.StrokeID, bool) {
	room, user, ok := o.Registry.RoomOf(sid)
	if !ok {
		return 0, false
	}
	var (
		s    domain.Stroke
		done bool
	)
	res := room.Exec(func(tx *core.Tx) {
		s, done = tx.Timeline.Undo(user.ID)
		if done {
			publish(tx, sid, protocol.NewUndone(user.ID, s.ID))
		}
	})
	o.settle(room, res)
	return s.ID, done
}

// Redo restores the sender's latest undone stroke at the end of the timeline.
func (o *Orchestrator) Redo(sid core.SessionID) (domain.Stroke, bool) {
	room, user, ok := o.Registry.RoomOf(sid)
	if !ok {
		return domain.Stroke{}, false
	}
	var (
		s    domain.Stroke
		done bool
	)
	res := room.Exec(func(tx *core.Tx) {
		s, done = tx.Timeline.Redo(user.ID)
		if done {
			publish(tx, sid, protocol.NewRedone(user.ID, s))
		}
	})
	o.settle(room, res)
	return s, done
}
