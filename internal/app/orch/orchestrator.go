package orch

import (
	"github.com/dkeye/Canvas/internal/app"
	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Orchestrator binds each connection's drawing actions to its room's
// authoritative timeline and fans the resulting events out.
type Orchestrator struct {
	Registry *app.Registry
	Policy   app.Policy
}

// Dispatch routes one validated request from sid. Ping is answered by the
// transport and never reaches here.
func (o *Orchestrator) Dispatch(sid core.SessionID, req protocol.Request) {
	switch r := req.(type) {
	case protocol.JoinRoom:
		if _, err := o.Join(sid, r.Room); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("join failed")
		}
	case protocol.LeaveRoom:
		o.LeaveRoom(sid)
	case protocol.StrokeStart:
		o.StrokeStart(sid, r)
	case protocol.StrokeUpdate:
		o.StrokeUpdate(sid, r)
	case protocol.StrokeEnd:
		o.StrokeEnd(sid, r)
	case protocol.Undo:
		o.Undo(sid)
	case protocol.Redo:
		o.Redo(sid)
	case protocol.CursorMove:
		o.CursorMove(sid, r)
	default:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("type", string(req.Type())).Msg("unhandled request")
	}
}

// publish encodes e and enqueues it with the scope its type calls for.
func publish(tx *core.Tx, from core.SessionID, e protocol.Event) {
	f, err := protocol.Encode(e)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return
	}
	tx.Publish(protocol.ScopeOf(e.EventType()), from, f)
}

func unicast(tx *core.Tx, to core.SessionID, e protocol.Event) {
	f, err := protocol.Encode(e)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return
	}
	tx.ToOne(to, f)
}

// settle applies the backpressure policy to members that could not keep up.
func (o *Orchestrator) settle(room core.RoomService, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow)).Str("room", string(room.Key())).Msg("kicking slow member")
			o.Registry.Cancel(slow)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
