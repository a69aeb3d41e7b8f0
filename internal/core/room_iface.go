package core

import (
	"github.com/dkeye/Canvas/internal/domain"
)

// Scope selects the recipients of a published frame.
type Scope int

const (
	// ScopeRoom delivers to every member including the actor.
	ScopeRoom Scope = iota
	// ScopeOthers delivers to every member except the actor.
	ScopeOthers
	// ScopeSender delivers to the actor only.
	ScopeSender
)

func (s Scope) String() string {
	switch s {
	case ScopeRoom:
		return "room"
	case ScopeOthers:
		return "others"
	case ScopeSender:
		return "sender"
	}
	return "unknown"
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID    domain.UserID `json:"userId"`
	Color domain.Color  `json:"color"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set, the color pool and the timeline, but never
// touches transport resources beyond TrySend.
type RoomService interface {
	Key() domain.RoomKey
	Info() RoomInfo
	MembersSnapshot() []MemberDTO
	FullState() []domain.Stroke

	// Exec runs fn with exclusive access to the room. Frames published
	// through the Tx are enqueued before Exec returns, so every member
	// observes room events in the same order they were applied.
	Exec(fn func(tx *Tx)) PublishResult
}

type RoomInfo struct {
	Key         domain.RoomKey `json:"roomId"`
	MemberCount int            `json:"memberCount"`
	StrokeCount int            `json:"strokeCount"`
}

type RoomManager interface {
	GetOrCreate(key domain.RoomKey) RoomService
	Get(key domain.RoomKey) (RoomService, bool)
	List() []RoomInfo
	StopRoom(key domain.RoomKey)
}
