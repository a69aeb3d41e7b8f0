package domain

import "errors"

// MaxRoomKeyLen is measured in bytes.
const MaxRoomKeyLen = 64

var (
	ErrRoomKeyEmpty   = errors.New("room key empty")
	ErrRoomKeyTooLong = errors.New("room key too long")
)

// RoomKey is the external, client-chosen room identifier. It is opaque:
// " a" and "a" are different rooms.
type RoomKey string

func NewRoomKey(raw string) (RoomKey, error) {
	if raw == "" {
		return "", ErrRoomKeyEmpty
	}
	if len(raw) > MaxRoomKeyLen {
		return "", ErrRoomKeyTooLong
	}
	return RoomKey(raw), nil
}
