// Package domain contains entity without logic, just meta-data
package domain

import (
	"fmt"
	"time"
)

type UserID string

// NewUserID formats the n-th minted user identifier.
func NewUserID(n uint64) UserID {
	return UserID(fmt.Sprintf("user_%d", n))
}

type User struct {
	ID       UserID    `json:"userId"`
	Color    Color     `json:"color"`
	Room     RoomKey   `json:"roomId"`
	JoinedAt time.Time `json:"joinedAt"`
}
