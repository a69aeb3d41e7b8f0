package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Canvas/internal/domain"
)

var errFull = errors.New("full")

// recordingConn is a SignalConnection that keeps every frame it accepts.
type recordingConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
}

func (c *recordingConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {}

func (c *recordingConn) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = string(f)
	}
	return out
}

func admit(t *testing.T, room RoomService, sid SessionID, id domain.UserID) (*recordingConn, domain.Color) {
	t.Helper()
	conn := &recordingConn{}
	sess := NewMemberSession(domain.NewMember(""), conn)
	user := &domain.User{ID: id}
	var color domain.Color
	room.Exec(func(tx *Tx) { color = tx.Admit(sid, sess, user) })
	if user.Color != color || user.Room != room.Key() {
		t.Fatalf("Admit did not populate user: %+v", user)
	}
	return conn, color
}

func TestRoomColorsUniqueWithinPalette(t *testing.T) {
	room := NewRoomService("r", &Sequence{})
	seen := make(map[domain.Color]bool)
	for i := 0; i < len(domain.Palette); i++ {
		_, c := admit(t, room, SessionID(rune('a'+i)), domain.NewUserID(uint64(i)))
		if seen[c] {
			t.Fatalf("color %s assigned twice with %d members", c, i+1)
		}
		seen[c] = true
	}
	_, extra := admit(t, room, "overflow", "user_overflow")
	if !seen[extra] {
		t.Errorf("overflow color %s not from palette", extra)
	}
}

func TestRoomColorFirstFitAfterRelease(t *testing.T) {
	room := NewRoomService("r", &Sequence{})
	admit(t, room, "a", "user_1")
	_, second := admit(t, room, "b", "user_2")
	admit(t, room, "c", "user_3")

	room.Exec(func(tx *Tx) {
		if _, ok := tx.Evict("b"); !ok {
			t.Fatal("Evict(b) failed")
		}
	})
	_, reused := admit(t, room, "d", "user_4")
	if reused != second {
		t.Errorf("first-fit color = %s, want freed %s", reused, second)
	}
}

func TestRoomDuplicateColorRelease(t *testing.T) {
	room := NewRoomService("r", &Sequence{}).(*roomImpl)
	room.pick = func(int) int { return 0 }
	for i := 0; i < len(domain.Palette); i++ {
		admit(t, room, SessionID(rune('a'+i)), domain.NewUserID(uint64(i)))
	}
	_, dup := admit(t, room, "dup", "user_dup")
	if dup != domain.Palette[0] {
		t.Fatalf("fallback color = %s, want %s", dup, domain.Palette[0])
	}
	room.Exec(func(tx *Tx) { tx.Evict("dup") })
	if room.colors[domain.Palette[0]] != 1 {
		t.Errorf("releasing a duplicate freed the original holder's color")
	}
}

func TestRoomPublishScopes(t *testing.T) {
	room := NewRoomService("r", &Sequence{})
	a, _ := admit(t, room, "a", "user_1")
	b, _ := admit(t, room, "b", "user_2")

	room.Exec(func(tx *Tx) {
		tx.ToRoom(Frame("all"))
		tx.ToOthers("a", Frame("others"))
		tx.ToOne("a", Frame("one"))
	})

	if got := a.texts(); len(got) != 2 || got[0] != "all" || got[1] != "one" {
		t.Errorf("a received %v", got)
	}
	if got := b.texts(); len(got) != 2 || got[0] != "all" || got[1] != "others" {
		t.Errorf("b received %v", got)
	}
}

func TestRoomPublishReportsDropped(t *testing.T) {
	room := NewRoomService("r", &Sequence{})
	admit(t, room, "a", "user_1")
	slow, _ := admit(t, room, "b", "user_2")
	slow.full = true

	res := room.Exec(func(tx *Tx) { tx.ToRoom(Frame("x")) })
	if res.SendTo != 1 || len(res.Dropped) != 1 || res.Dropped[0] != "b" {
		t.Errorf("result = %+v", res)
	}
}

func TestRoomEvictDropsUndoStack(t *testing.T) {
	room := NewRoomService("r", &Sequence{})
	admit(t, room, "a", "user_1")
	room.Exec(func(tx *Tx) {
		s := tx.Timeline.Open("user_1", domain.StrokeDraw, "#000000", 1, domain.Point{})
		tx.Timeline.Append(s.ID, domain.Point{X: 1})
		tx.Timeline.Close(s.ID)
		tx.Timeline.Undo("user_1")
		tx.Evict("a")
		if tx.Timeline.UndoDepth("user_1") != 0 {
			t.Error("undo stack survived eviction")
		}
	})
	if info := room.Info(); info.MemberCount != 0 {
		t.Errorf("MemberCount = %d", info.MemberCount)
	}
}

func TestRoomMembersSnapshotOrder(t *testing.T) {
	room := NewRoomService("r", &Sequence{})
	admit(t, room, "a", "user_1")
	admit(t, room, "b", "user_2")
	members := room.MembersSnapshot()
	if len(members) != 2 || members[0].ID != "user_1" || members[1].ID != "user_2" {
		t.Errorf("members = %+v", members)
	}
}
