package core

import (
	"sync/atomic"
	"time"

	"github.com/dkeye/Canvas/internal/domain"
)

// Sequence mints stroke identifiers. One Sequence is shared by every room of
// the process, so an identifier is never reused, not even by a room that was
// deleted and created again under the same key.
type Sequence struct {
	n atomic.Uint64
}

func (s *Sequence) Next() domain.StrokeID {
	return domain.StrokeID(s.n.Add(1))
}

// Closure describes what happened to a stroke when it was closed.
type Closure struct {
	ID   domain.StrokeID
	Kept bool
}

// Timeline is a room's authoritative stroke order plus per-user undo stacks.
// A stroke lives either in active or in exactly one undo stack.
// Timeline is not safe for concurrent use; the owning room serializes access.
type Timeline struct {
	ids    *Sequence
	now    func() time.Time
	active []*domain.Stroke
	undone map[domain.UserID][]*domain.Stroke
}

func NewTimeline(ids *Sequence) *Timeline {
	return &Timeline{
		ids:    ids,
		now:    time.Now,
		undone: make(map[domain.UserID][]*domain.Stroke),
	}
}

// Open starts a stroke with one point and appends it to the active timeline.
// It clears the user's undo stack.
func (t *Timeline) Open(
	user domain.UserID,
	kind domain.StrokeKind,
	color domain.Color,
	size float64,
	first domain.Point,
) domain.Stroke {
	s := &domain.Stroke{
		ID:        t.ids.Next(),
		UserID:    user,
		CreatedAt: t.now(),
		Kind:      kind,
		Size:      size,
		Points:    []domain.Point{first},
	}
	if kind == domain.StrokeDraw {
		s.Color = color
	}
	delete(t.undone, user)
	t.active = append(t.active, s)
	return s.Clone()
}

// Append adds p to an open stroke. It reports false when the stroke is not
// active or already closed.
func (t *Timeline) Append(id domain.StrokeID, p domain.Point) bool {
	_, s := t.find(id)
	if s == nil || s.Closed {
		return false
	}
	s.Points = append(s.Points, p)
	return true
}

// Close marks the stroke closed, or discards it when it has too few points.
// ok is false when the stroke is not active or already closed.
func (t *Timeline) Close(id domain.StrokeID) (kept, ok bool) {
	i, s := t.find(id)
	if s == nil || s.Closed {
		return false, false
	}
	if len(s.Points) < domain.MinStrokePoints {
		t.removeAt(i)
		return false, true
	}
	s.Closed = true
	return true, true
}

// CloseOpenBy closes every open stroke owned by user, in timeline order.
func (t *Timeline) CloseOpenBy(user domain.UserID) []Closure {
	var open []domain.StrokeID
	for _, s := range t.active {
		if s.UserID == user && !s.Closed {
			open = append(open, s.ID)
		}
	}
	out := make([]Closure, 0, len(open))
	for _, id := range open {
		kept, _ := t.Close(id)
		out = append(out, Closure{ID: id, Kept: kept})
	}
	return out
}

// Undo moves the user's most recent closed stroke from the active timeline
// onto the user's undo stack.
func (t *Timeline) Undo(user domain.UserID) (domain.Stroke, bool) {
	for i := len(t.active) - 1; i >= 0; i-- {
		s := t.active[i]
		if s.UserID != user || !s.Closed {
			continue
		}
		t.removeAt(i)
		t.undone[user] = append(t.undone[user], s)
		return s.Clone(), true
	}
	return domain.Stroke{}, false
}

// Redo pops the user's undo stack and appends the stroke at the current end
// of the active timeline, keeping its identifier.
func (t *Timeline) Redo(user domain.UserID) (domain.Stroke, bool) {
	stack := t.undone[user]
	if len(stack) == 0 {
		return domain.Stroke{}, false
	}
	s := stack[len(stack)-1]
	stack[len(stack)-1] = nil
	if len(stack) == 1 {
		delete(t.undone, user)
	} else {
		t.undone[user] = stack[:len(stack)-1]
	}
	t.active = append(t.active, s)
	return s.Clone(), true
}

// Forget drops the user's undo stack.
func (t *Timeline) Forget(user domain.UserID) {
	delete(t.undone, user)
}

// FullState returns copies of the active strokes in draw order.
func (t *Timeline) FullState() []domain.Stroke {
	out := make([]domain.Stroke, len(t.active))
	for i, s := range t.active {
		out[i] = s.Clone()
	}
	return out
}

// Owner reports who drew an active stroke.
func (t *Timeline) Owner(id domain.StrokeID) (domain.UserID, bool) {
	_, s := t.find(id)
	if s == nil {
		return "", false
	}
	return s.UserID, true
}

func (t *Timeline) Len() int { return len(t.active) }

func (t *Timeline) UndoDepth(user domain.UserID) int { return len(t.undone[user]) }

// find scans from the end: strokes still receiving points are almost always recent.
func (t *Timeline) find(id domain.StrokeID) (int, *domain.Stroke) {
	for i := len(t.active) - 1; i >= 0; i-- {
		if t.active[i].ID == id {
			return i, t.active[i]
		}
	}
	return -1, nil
}

func (t *Timeline) removeAt(i int) {
	copy(t.active[i:], t.active[i+1:])
	t.active[len(t.active)-1] = nil
	t.active = t.active[:len(t.active)-1]
}
