package core

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/dkeye/Canvas/internal/domain"
	"github.com/rs/zerolog/log"
)

type member struct {
	sess MemberSession
	user domain.User
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	key      domain.RoomKey
	mu       sync.Mutex
	bySID    map[SessionID]*member
	byUser   map[domain.UserID]SessionID
	colors   map[domain.Color]int
	timeline *Timeline
	pick     func(n int) int
}

func NewRoomService(key domain.RoomKey, ids *Sequence) RoomService {
	return &roomImpl{
		key:      key,
		bySID:    make(map[SessionID]*member),
		byUser:   make(map[domain.UserID]SessionID),
		colors:   make(map[domain.Color]int),
		timeline: NewTimeline(ids),
		pick:     rand.IntN,
	}
}

func (r *roomImpl) Key() domain.RoomKey { return r.key }

func (r *roomImpl) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{Key: r.key, MemberCount: len(r.bySID), StrokeCount: r.timeline.Len()}
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members()
}

func (r *roomImpl) FullState() []domain.Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeline.FullState()
}

func (r *roomImpl) Exec(fn func(tx *Tx)) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &Tx{room: r, Timeline: r.timeline}
	fn(tx)
	if len(tx.res.Dropped) > 0 {
		log.Debug().Str("module", "core.room").Str("room", string(r.key)).Int("sent_to", tx.res.SendTo).Int("dropped", len(tx.res.Dropped)).Msg("publish backpressure")
	}
	return tx.res
}

func (r *roomImpl) members() []MemberDTO {
	out := make([]MemberDTO, 0, len(r.bySID))
	joined := make(map[domain.UserID]int64, len(r.bySID))
	for _, m := range r.bySID {
		out = append(out, MemberDTO{ID: m.user.ID, Color: m.user.Color})
		joined[m.user.ID] = m.user.JoinedAt.UnixNano()
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := joined[out[i].ID], joined[out[j].ID]
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// allocateColor is first-fit over the palette. Once every palette color is
// taken it falls back to a random palette color, so duplicates become
// possible past the palette size.
func (r *roomImpl) allocateColor() domain.Color {
	for _, c := range domain.Palette {
		if r.colors[c] == 0 {
			r.colors[c] = 1
			return c
		}
	}
	c := domain.Palette[r.pick(len(domain.Palette))]
	r.colors[c]++
	return c
}

func (r *roomImpl) releaseColor(c domain.Color) {
	if r.colors[c] <= 1 {
		delete(r.colors, c)
		return
	}
	r.colors[c]--
}
