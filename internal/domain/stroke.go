package domain

import "time"

type StrokeID uint64

type StrokeKind string

const (
	StrokeDraw  StrokeKind = "draw"
	StrokeErase StrokeKind = "erase"
)

func (k StrokeKind) Valid() bool {
	return k == StrokeDraw || k == StrokeErase
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MinStrokePoints is the point count a stroke needs at close time to be kept.
const MinStrokePoints = 2

type Stroke struct {
	ID        StrokeID   `json:"id"`
	UserID    UserID     `json:"userId"`
	CreatedAt time.Time  `json:"timestamp"`
	Kind      StrokeKind `json:"kind"`
	Color     Color      `json:"color,omitempty"`
	Size      float64    `json:"size"`
	Points    []Point    `json:"points"`
	Closed    bool       `json:"closed"`
}

// Clone returns a copy that shares no point storage with s.
func (s *Stroke) Clone() Stroke {
	out := *s
	out.Points = make([]Point, len(s.Points))
	copy(out.Points, s.Points)
	return out
}
