package protocol

import (
	"fmt"
	"math"

	"github.com/dkeye/Canvas/internal/domain"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

// Request is one validated client → server message. The concrete types
// below are the only implementations.
type Request interface {
	Type() Type
	wire() any
}

type JoinRoom struct{ Room domain.RoomKey }

type LeaveRoom struct{}

type StrokeStart struct {
	Kind  domain.StrokeKind
	Color domain.Color
	Size  float64
	At    domain.Point
}

type StrokeUpdate struct {
	StrokeID domain.StrokeID
	At       domain.Point
}

type StrokeEnd struct{ StrokeID domain.StrokeID }

type Undo struct{}

type Redo struct{}

type CursorMove struct{ At domain.Point }

type Ping struct{}

func (JoinRoom) Type() Type     { return TypeJoinRoom }
func (LeaveRoom) Type() Type    { return TypeLeaveRoom }
func (StrokeStart) Type() Type  { return TypeStrokeStart }
func (StrokeUpdate) Type() Type { return TypeStrokeUpdate }
func (StrokeEnd) Type() Type    { return TypeStrokeEnd }
func (Undo) Type() Type         { return TypeUndo }
func (Redo) Type() Type         { return TypeRedo }
func (CursorMove) Type() Type   { return TypeCursorMove }
func (Ping) Type() Type         { return TypePing }

type envelope struct {
	Type Type `json:"type"`
}

type joinWire struct {
	Type Type   `json:"type"`
	Room string `json:"roomId" validate:"required"`
}

type strokeStartWire struct {
	Type  Type     `json:"type"`
	X     *float64 `json:"x" validate:"required"`
	Y     *float64 `json:"y" validate:"required"`
	Kind  string   `json:"kind" validate:"required,oneof=draw erase"`
	Color string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Size  float64  `json:"size" validate:"gt=0,lte=500"`
}

type strokeUpdateWire struct {
	Type     Type     `json:"type"`
	StrokeID *uint64  `json:"strokeId" validate:"required"`
	X        *float64 `json:"x" validate:"required"`
	Y        *float64 `json:"y" validate:"required"`
}

type strokeEndWire struct {
	Type     Type    `json:"type"`
	StrokeID *uint64 `json:"strokeId" validate:"required"`
}

type cursorWire struct {
	Type Type     `json:"type"`
	X    *float64 `json:"x" validate:"required"`
	Y    *float64 `json:"y" validate:"required"`
}

type bareWire struct {
	Type Type `json:"type"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses and validates one inbound frame. Anything that is not one of
// the known shapes is rejected with ErrUnknownType or ErrMalformed.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeJoinRoom:
		var w joinWire
		if err := decodeWire(data, &w); err != nil {
			return nil, err
		}
		key, err := domain.NewRoomKey(w.Room)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return JoinRoom{Room: key}, nil
	case TypeStrokeStart:
		var w strokeStartWire
		if err := decodeWire(data, &w); err != nil {
			return nil, err
		}
		if err := checkInk(domain.StrokeKind(w.Kind), w.Color); err != nil {
			return nil, err
		}
		s := StrokeStart{
			Kind: domain.StrokeKind(w.Kind),
			Size: w.Size,
			At:   domain.Point{X: *w.X, Y: *w.Y},
		}
		if s.Kind == domain.StrokeDraw {
			s.Color = domain.Color(w.Color)
		}
		return s, nil
	case TypeStrokeUpdate:
		var w strokeUpdateWire
		if err := decodeWire(data, &w); err != nil {
			return nil, err
		}
		return StrokeUpdate{StrokeID: domain.StrokeID(*w.StrokeID), At: domain.Point{X: *w.X, Y: *w.Y}}, nil
	case TypeStrokeEnd:
		var w strokeEndWire
		if err := decodeWire(data, &w); err != nil {
			return nil, err
		}
		return StrokeEnd{StrokeID: domain.StrokeID(*w.StrokeID)}, nil
	case TypeCursorMove:
		var w cursorWire
		if err := decodeWire(data, &w); err != nil {
			return nil, err
		}
		return CursorMove{At: domain.Point{X: *w.X, Y: *w.Y}}, nil
	case TypeLeaveRoom:
		return LeaveRoom{}, nil
	case TypeUndo:
		return Undo{}, nil
	case TypeRedo:
		return Redo{}, nil
	case TypePing:
		return Ping{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Validate applies the checks Decode would apply to r once it is on the wire.
// A stroke-start the server would reject is never echoed, so a client must
// not announce one it cannot confirm.
func Validate(r Request) error {
	if s, ok := r.(StrokeStart); ok {
		if math.IsNaN(s.Size) || math.IsInf(s.Size, 0) || !finite(s.At) {
			return fmt.Errorf("%w: non-finite stroke-start", ErrMalformed)
		}
		if err := checkInk(s.Kind, string(s.Color)); err != nil {
			return err
		}
	}
	if j, ok := r.(JoinRoom); ok {
		if _, err := domain.NewRoomKey(string(j.Room)); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := validate.Struct(r.wire()); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func checkInk(kind domain.StrokeKind, color string) error {
	if kind == domain.StrokeDraw && color == "" {
		return fmt.Errorf("%w: draw stroke without color", ErrMalformed)
	}
	return nil
}

func finite(p domain.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

func decodeWire(data []byte, w any) error {
	if err := json.Unmarshal(data, w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (r JoinRoom) wire() any { return joinWire{Type: TypeJoinRoom, Room: string(r.Room)} }
func (LeaveRoom) wire() any  { return bareWire{Type: TypeLeaveRoom} }

func (r StrokeStart) wire() any {
	x, y := r.At.X, r.At.Y
	return strokeStartWire{Type: TypeStrokeStart, X: &x, Y: &y, Kind: string(r.Kind), Color: string(r.Color), Size: r.Size}
}

func (r StrokeUpdate) wire() any {
	id, x, y := uint64(r.StrokeID), r.At.X, r.At.Y
	return strokeUpdateWire{Type: TypeStrokeUpdate, StrokeID: &id, X: &x, Y: &y}
}

func (r StrokeEnd) wire() any {
	id := uint64(r.StrokeID)
	return strokeEndWire{Type: TypeStrokeEnd, StrokeID: &id}
}

func (Undo) wire() any { return bareWire{Type: TypeUndo} }
func (Redo) wire() any { return bareWire{Type: TypeRedo} }

func (r CursorMove) wire() any {
	x, y := r.At.X, r.At.Y
	return cursorWire{Type: TypeCursorMove, X: &x, Y: &y}
}

func (Ping) wire() any { return bareWire{Type: TypePing} }

// EncodeRequest is the client-side inverse of Decode.
func EncodeRequest(r Request) ([]byte, error) {
	return json.Marshal(r.wire())
}
