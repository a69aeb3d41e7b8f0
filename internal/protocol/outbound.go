package protocol

import (
	"fmt"
	"time"

	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/domain"
	json "github.com/goccy/go-json"
)

// Event is one server → client message.
type Event interface {
	EventType() Type
}

type UserInfo struct {
	Type   Type           `json:"type"`
	UserID domain.UserID  `json:"userId"`
	Color  domain.Color   `json:"color"`
	Room   domain.RoomKey `json:"roomId"`
}

type ExistingUsers struct {
	Type  Type             `json:"type"`
	Users []core.MemberDTO `json:"users"`
}

type UserJoined struct {
	Type   Type          `json:"type"`
	UserID domain.UserID `json:"userId"`
	Color  domain.Color  `json:"color"`
}

type UserLeft struct {
	Type   Type          `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type FullStateSync struct {
	Type    Type            `json:"type"`
	Strokes []domain.Stroke `json:"strokes"`
}

type StrokeStarted struct {
	Type      Type              `json:"type"`
	StrokeID  domain.StrokeID   `json:"strokeId"`
	UserID    domain.UserID     `json:"userId"`
	Kind      domain.StrokeKind `json:"kind"`
	Color     domain.Color      `json:"color,omitempty"`
	Size      float64           `json:"size"`
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
	Timestamp time.Time         `json:"timestamp"`
}

type StrokeUpdated struct {
	Type     Type            `json:"type"`
	StrokeID domain.StrokeID `json:"strokeId"`
	UserID   domain.UserID   `json:"userId"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
}

// StrokeEnded reports a close. Kept is false when the stroke had too few
// points and was discarded; receivers drop it.
type StrokeEnded struct {
	Type     Type            `json:"type"`
	StrokeID domain.StrokeID `json:"strokeId"`
	UserID   domain.UserID   `json:"userId"`
	Kept     bool            `json:"kept"`
}

type Undone struct {
	Type     Type            `json:"type"`
	UserID   domain.UserID   `json:"userId"`
	StrokeID domain.StrokeID `json:"strokeId"`
}

type Redone struct {
	Type   Type          `json:"type"`
	UserID domain.UserID `json:"userId"`
	Stroke domain.Stroke `json:"stroke"`
}

type CursorMoved struct {
	Type   Type          `json:"type"`
	UserID domain.UserID `json:"userId"`
	Color  domain.Color  `json:"color"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
}

type Left struct {
	Type Type `json:"type"`
}

type Pong struct {
	Type Type `json:"type"`
}

func (UserInfo) EventType() Type      { return TypeUserInfo }
func (ExistingUsers) EventType() Type { return TypeExistingUsers }
func (UserJoined) EventType() Type    { return TypeUserJoined }
func (UserLeft) EventType() Type      { return TypeUserLeft }
func (FullStateSync) EventType() Type { return TypeFullStateSync }
func (StrokeStarted) EventType() Type { return TypeStrokeStart }
func (StrokeUpdated) EventType() Type { return TypeStrokeUpdate }
func (StrokeEnded) EventType() Type   { return TypeStrokeEnd }
func (Undone) EventType() Type        { return TypeUndo }
func (Redone) EventType() Type        { return TypeRedo }
func (CursorMoved) EventType() Type   { return TypeCursorMove }
func (Left) EventType() Type          { return TypeLeft }
func (Pong) EventType() Type          { return TypePong }

func NewUserInfo(u domain.User) UserInfo {
	return UserInfo{Type: TypeUserInfo, UserID: u.ID, Color: u.Color, Room: u.Room}
}

// NewExistingUsers lists members other than self.
func NewExistingUsers(members []core.MemberDTO, self domain.UserID) ExistingUsers {
	others := make([]core.MemberDTO, 0, len(members))
	for _, m := range members {
		if m.ID != self {
			others = append(others, m)
		}
	}
	return ExistingUsers{Type: TypeExistingUsers, Users: others}
}

func NewUserJoined(u domain.User) UserJoined {
	return UserJoined{Type: TypeUserJoined, UserID: u.ID, Color: u.Color}
}

func NewUserLeft(id domain.UserID) UserLeft {
	return UserLeft{Type: TypeUserLeft, UserID: id}
}

func NewFullStateSync(strokes []domain.Stroke) FullStateSync {
	if strokes == nil {
		strokes = []domain.Stroke{}
	}
	return FullStateSync{Type: TypeFullStateSync, Strokes: strokes}
}

func NewStrokeStarted(s domain.Stroke) StrokeStarted {
	return StrokeStarted{
		Type:      TypeStrokeStart,
		StrokeID:  s.ID,
		UserID:    s.UserID,
		Kind:      s.Kind,
		Color:     s.Color,
		Size:      s.Size,
		X:         s.Points[0].X,
		Y:         s.Points[0].Y,
		Timestamp: s.CreatedAt,
	}
}

func NewStrokeUpdated(id domain.StrokeID, user domain.UserID, p domain.Point) StrokeUpdated {
	return StrokeUpdated{Type: TypeStrokeUpdate, StrokeID: id, UserID: user, X: p.X, Y: p.Y}
}

func NewStrokeEnded(id domain.StrokeID, user domain.UserID, kept bool) StrokeEnded {
	return StrokeEnded{Type: TypeStrokeEnd, StrokeID: id, UserID: user, Kept: kept}
}

func NewUndone(user domain.UserID, id domain.StrokeID) Undone {
	return Undone{Type: TypeUndo, UserID: user, StrokeID: id}
}

func NewRedone(user domain.UserID, s domain.Stroke) Redone {
	return Redone{Type: TypeRedo, UserID: user, Stroke: s}
}

func NewCursorMoved(u domain.User, p domain.Point) CursorMoved {
	return CursorMoved{Type: TypeCursorMove, UserID: u.ID, Color: u.Color, X: p.X, Y: p.Y}
}

func NewLeft() Left { return Left{Type: TypeLeft} }

func NewPong() Pong { return Pong{Type: TypePong} }

// Encode marshals an event into a frame.
func Encode(e Event) (core.Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return core.Frame(b), nil
}

// DecodeEvent is the client-side parser for server frames.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var e Event
	switch env.Type {
	case TypeUserInfo:
		e = &UserInfo{}
	case TypeExistingUsers:
		e = &ExistingUsers{}
	case TypeUserJoined:
		e = &UserJoined{}
	case TypeUserLeft:
		e = &UserLeft{}
	case TypeFullStateSync:
		e = &FullStateSync{}
	case TypeStrokeStart:
		e = &StrokeStarted{}
	case TypeStrokeUpdate:
		e = &StrokeUpdated{}
	case TypeStrokeEnd:
		e = &StrokeEnded{}
	case TypeUndo:
		e = &Undone{}
	case TypeRedo:
		e = &Redone{}
	case TypeCursorMove:
		e = &CursorMoved{}
	case TypeLeft:
		e = &Left{}
	case TypePong:
		e = &Pong{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}
