package client

import (
	"slices"
	"time"

	"github.com/dkeye/Canvas/internal/domain"
	"github.com/dkeye/Canvas/internal/protocol"
)

// Board mirrors one room as this participant sees it. Confirmed strokes are
// kept in server timeline order. Strokes drawn here that the server has not
// named yet are painted on top under their local identifier and move into
// the timeline when their echo arrives, at the position the echo implies.
//
// Points this participant draws are applied locally as they are drawn, so
// the server's echoes of its own stroke-updates are not applied again.
type Board struct {
	Self   domain.User
	Synced bool

	confirmed []domain.Stroke
	local     map[LocalID]*domain.Stroke
	order     []LocalID
	bound     map[LocalID]domain.StrokeID
	users     map[domain.UserID]domain.Color
	cursors   map[domain.UserID]domain.Point
}

func NewBoard() *Board {
	b := &Board{}
	b.clear()
	return b
}

func (b *Board) clear() {
	b.Synced = false
	b.confirmed = nil
	b.local = make(map[LocalID]*domain.Stroke)
	b.order = nil
	b.bound = make(map[LocalID]domain.StrokeID)
	b.users = make(map[domain.UserID]domain.Color)
	b.cursors = make(map[domain.UserID]domain.Point)
}

// BeginLocal paints a new local stroke optimistically.
func (b *Board) BeginLocal(id LocalID, kind domain.StrokeKind, color domain.Color, size float64, at domain.Point) {
	if kind == domain.StrokeErase {
		color = ""
	}
	b.local[id] = &domain.Stroke{
		UserID:    b.Self.ID,
		CreatedAt: time.Now(),
		Kind:      kind,
		Color:     color,
		Size:      size,
		Points:    []domain.Point{at},
	}
	b.order = append(b.order, id)
}

func (b *Board) AddLocalPoint(id LocalID, at domain.Point) {
	if s := b.stroke(id); s != nil && !s.Closed {
		s.Points = append(s.Points, at)
	}
}

// EndLocal closes a local stroke. Whether it is kept is the server's call,
// reported by its stroke-end.
func (b *Board) EndLocal(id LocalID) {
	if s := b.stroke(id); s != nil {
		s.Closed = true
	}
}

func (b *Board) stroke(id LocalID) *domain.Stroke {
	if s, ok := b.local[id]; ok {
		return s
	}
	if sid, ok := b.bound[id]; ok {
		if i := b.index(sid); i >= 0 {
			return &b.confirmed[i]
		}
	}
	return nil
}

// Confirm moves a local stroke into the timeline under its durable id.
func (b *Board) Confirm(id LocalID, ev *protocol.StrokeStarted) {
	s, ok := b.local[id]
	if !ok {
		b.Apply(ev)
		return
	}
	delete(b.local, id)
	b.order = slices.DeleteFunc(b.order, func(x LocalID) bool { return x == id })
	s.ID = ev.StrokeID
	s.CreatedAt = ev.Timestamp
	b.confirmed = append(b.confirmed, *s)
	if !s.Closed {
		b.bound[id] = ev.StrokeID
	}
}

// Apply folds one server event into the mirror. Own stroke-starts go through
// Confirm instead.
func (b *Board) Apply(e protocol.Event) {
	switch ev := e.(type) {
	case *protocol.UserInfo:
		b.Self = domain.User{ID: ev.UserID, Color: ev.Color, Room: ev.Room}
	case *protocol.ExistingUsers:
		b.users = make(map[domain.UserID]domain.Color, len(ev.Users))
		for _, u := range ev.Users {
			b.users[u.ID] = u.Color
		}
	case *protocol.UserJoined:
		b.users[ev.UserID] = ev.Color
	case *protocol.UserLeft:
		delete(b.users, ev.UserID)
		delete(b.cursors, ev.UserID)
	case *protocol.FullStateSync:
		b.confirmed = slices.Clone(ev.Strokes)
		b.Synced = true
	case *protocol.StrokeStarted:
		b.confirmed = append(b.confirmed, domain.Stroke{
			ID:        ev.StrokeID,
			UserID:    ev.UserID,
			CreatedAt: ev.Timestamp,
			Kind:      ev.Kind,
			Color:     ev.Color,
			Size:      ev.Size,
			Points:    []domain.Point{{X: ev.X, Y: ev.Y}},
		})
	case *protocol.StrokeUpdated:
		if ev.UserID == b.Self.ID {
			return
		}
		if i := b.index(ev.StrokeID); i >= 0 && !b.confirmed[i].Closed {
			b.confirmed[i].Points = append(b.confirmed[i].Points, domain.Point{X: ev.X, Y: ev.Y})
		}
	case *protocol.StrokeEnded:
		i := b.index(ev.StrokeID)
		if i < 0 {
			return
		}
		if !ev.Kept {
			b.confirmed = slices.Delete(b.confirmed, i, i+1)
		} else {
			b.confirmed[i].Closed = true
		}
		b.unbind(ev.StrokeID)
	case *protocol.Undone:
		if i := b.index(ev.StrokeID); i >= 0 {
			b.confirmed = slices.Delete(b.confirmed, i, i+1)
		}
	case *protocol.Redone:
		b.confirmed = append(b.confirmed, ev.Stroke)
	case *protocol.CursorMoved:
		b.cursors[ev.UserID] = domain.Point{X: ev.X, Y: ev.Y}
	case *protocol.Left:
		b.clear()
		b.Self = domain.User{}
	}
}

func (b *Board) unbind(sid domain.StrokeID) {
	for id, s := range b.bound {
		if s == sid {
			delete(b.bound, id)
		}
	}
}

func (b *Board) index(id domain.StrokeID) int {
	for i := len(b.confirmed) - 1; i >= 0; i-- {
		if b.confirmed[i].ID == id {
			return i
		}
	}
	return -1
}

// Strokes returns the timeline followed by unconfirmed local strokes, in
// paint order.
func (b *Board) Strokes() []domain.Stroke {
	out := make([]domain.Stroke, 0, len(b.confirmed)+len(b.order))
	for _, s := range b.confirmed {
		out = append(out, s.Clone())
	}
	for _, id := range b.order {
		out = append(out, b.local[id].Clone())
	}
	return out
}

// Confirmed returns only the strokes the server has ordered.
func (b *Board) Confirmed() []domain.Stroke {
	out := make([]domain.Stroke, len(b.confirmed))
	for i := range b.confirmed {
		out[i] = b.confirmed[i].Clone()
	}
	return out
}

func (b *Board) PendingLocal() int { return len(b.order) }

// Users returns the other members of the room.
func (b *Board) Users() map[domain.UserID]domain.Color {
	out := make(map[domain.UserID]domain.Color, len(b.users))
	for k, v := range b.users {
		out[k] = v
	}
	return out
}

func (b *Board) Cursor(id domain.UserID) (domain.Point, bool) {
	p, ok := b.cursors[id]
	return p, ok
}

// resetLocal drops unconfirmed local strokes.
func (b *Board) resetLocal() {
	b.local = make(map[LocalID]*domain.Stroke)
	b.order = nil
	b.bound = make(map[LocalID]domain.StrokeID)
}
