// Package client is a drawing participant: it keeps a local mirror of a room
// and maps the strokes it draws onto the identifiers the server assigns.
package client

import (
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/dkeye/Canvas/internal/protocol"
)

// LocalID names a stroke on this connection before the server has named it.
// It is never sent on the wire.
type LocalID uint64

type State int

const (
	Provisional State = iota
	AwaitingServerID
	Reconciled
)

func (s State) String() string {
	switch s {
	case Provisional:
		return "provisional"
	case AwaitingServerID:
		return "awaiting"
	case Reconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

type localStroke struct {
	start  protocol.StrokeStart
	state  State
	server domain.StrokeID
	points []domain.Point
	ended  bool
}

// Reconciler tracks the strokes this connection has started. The server
// echoes a connection's own stroke-starts in the order they were sent, so
// echoes are matched first-in first-out. Points and ends issued before the
// echo are held back and released with the durable identifier.
//
// Reconciler is not safe for concurrent use.
type Reconciler struct {
	self     domain.UserID
	next     LocalID
	strokes  map[LocalID]*localStroke
	awaiting []LocalID
}

func NewReconciler() *Reconciler {
	return &Reconciler{strokes: make(map[LocalID]*localStroke)}
}

// SetSelf records the user this connection draws as; echoes from anyone else
// are not ours.
func (r *Reconciler) SetSelf(id domain.UserID) { r.self = id }

// Reset forgets every in-flight stroke, for example after a room change.
func (r *Reconciler) Reset() {
	r.strokes = make(map[LocalID]*localStroke)
	r.awaiting = nil
}

// Begin opens a provisional local stroke.
func (r *Reconciler) Begin(kind domain.StrokeKind, color domain.Color, size float64, at domain.Point) LocalID {
	r.next++
	id := r.next
	r.strokes[id] = &localStroke{
		start: protocol.StrokeStart{Kind: kind, Color: color, Size: size, At: at},
		state: Provisional,
	}
	return id
}

// Announce moves a provisional stroke to AwaitingServerID and returns the
// stroke-start to send. The caller must send it before announcing another,
// and must only announce strokes that pass protocol.Validate: the server
// never echoes the rest.
func (r *Reconciler) Announce(id LocalID) (protocol.Request, bool) {
	s, ok := r.strokes[id]
	if !ok || s.state != Provisional {
		return nil, false
	}
	s.state = AwaitingServerID
	r.awaiting = append(r.awaiting, id)
	return s.start, true
}

// Drop discards a stroke that was never announced.
func (r *Reconciler) Drop(id LocalID) {
	if s, ok := r.strokes[id]; ok && s.state == Provisional {
		delete(r.strokes, id)
	}
}

// Point returns the requests to send for a new point on the local stroke.
// Nothing is returned while the durable identifier is unknown, or for a
// stroke that is unknown or already ended.
func (r *Reconciler) Point(id LocalID, at domain.Point) []protocol.Request {
	s, ok := r.strokes[id]
	if !ok || s.ended {
		return nil
	}
	if s.state != Reconciled {
		s.points = append(s.points, at)
		return nil
	}
	return []protocol.Request{protocol.StrokeUpdate{StrokeID: s.server, At: at}}
}

// End closes the local stroke. Once reconciled and ended the mapping is
// dropped.
func (r *Reconciler) End(id LocalID) []protocol.Request {
	s, ok := r.strokes[id]
	if !ok || s.ended {
		return nil
	}
	s.ended = true
	if s.state != Reconciled {
		return nil
	}
	delete(r.strokes, id)
	return []protocol.Request{protocol.StrokeEnd{StrokeID: s.server}}
}

// OnStrokeStarted consumes a server stroke-start. For this connection's own
// echo it reports the matched local stroke and the held-back requests, now
// carrying the durable identifier.
func (r *Reconciler) OnStrokeStarted(ev *protocol.StrokeStarted) (LocalID, []protocol.Request, bool) {
	if ev.UserID != r.self || len(r.awaiting) == 0 {
		return 0, nil, false
	}
	id := r.awaiting[0]
	r.awaiting = r.awaiting[1:]
	s, ok := r.strokes[id]
	if !ok {
		return id, nil, true
	}
	s.state = Reconciled
	s.server = ev.StrokeID

	out := make([]protocol.Request, 0, len(s.points)+1)
	for _, p := range s.points {
		out = append(out, protocol.StrokeUpdate{StrokeID: s.server, At: p})
	}
	s.points = nil
	if s.ended {
		out = append(out, protocol.StrokeEnd{StrokeID: s.server})
		delete(r.strokes, id)
	}
	return id, out, true
}

// State reports where a local stroke is in its lifecycle. ok is false once
// the stroke has been ended and reconciled.
func (r *Reconciler) State(id LocalID) (State, bool) {
	s, ok := r.strokes[id]
	if !ok {
		return 0, false
	}
	return s.state, true
}

func (r *Reconciler) ServerID(id LocalID) (domain.StrokeID, bool) {
	s, ok := r.strokes[id]
	if !ok || s.state != Reconciled {
		return 0, false
	}
	return s.server, true
}

// Pending is the number of stroke-starts still waiting for their echo.
func (r *Reconciler) Pending() int { return len(r.awaiting) }
