// Package protocol defines the closed set of messages exchanged between
// drawing clients and the server, and validates inbound ones at the boundary.
package protocol

import (
	"errors"

	"github.com/dkeye/Canvas/internal/core"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrMalformed   = errors.New("malformed message")
)

type Type string

// Client → server.
const (
	TypeJoinRoom     Type = "join-room"
	TypeLeaveRoom    Type = "leave-room"
	TypeStrokeStart  Type = "stroke-start"
	TypeStrokeUpdate Type = "stroke-update"
	TypeStrokeEnd    Type = "stroke-end"
	TypeUndo         Type = "undo"
	TypeRedo         Type = "redo"
	TypeCursorMove   Type = "cursor-move"
	TypePing         Type = "ping"
)

// Server → client only.
const (
	TypeUserInfo      Type = "user-info"
	TypeExistingUsers Type = "existing-users"
	TypeUserJoined    Type = "user-joined"
	TypeUserLeft      Type = "user-left"
	TypeFullStateSync Type = "full-state-sync"
	TypeLeft          Type = "left"
	TypePong          Type = "pong"
)

// ScopeOf returns the delivery scope of a server-produced event.
func ScopeOf(t Type) core.Scope {
	switch t {
	case TypeStrokeStart, TypeStrokeUpdate, TypeStrokeEnd, TypeUndo, TypeRedo:
		return core.ScopeRoom
	case TypeCursorMove, TypeUserJoined, TypeUserLeft:
		return core.ScopeOthers
	default:
		return core.ScopeSender
	}
}
