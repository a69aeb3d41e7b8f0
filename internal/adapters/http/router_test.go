package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Canvas/internal/app"
	"github.com/dkeye/Canvas/internal/app/orch"
	"github.com/dkeye/Canvas/internal/client"
	"github.com/dkeye/Canvas/internal/config"
	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/dkeye/Canvas/internal/protocol"
	"github.com/gin-gonic/gin"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:         "test",
		Secret:       "test-secret",
		ReadLimit:    32768,
		PingPeriod:   time.Second,
		PongWait:     2 * time.Second,
		WriteWait:    time.Second,
		SendBuffer:   256,
		CursorRate:   1000,
		CursorBurst:  100,
		CanvasWidth:  200,
		CanvasHeight: 100,
	}
}

func newServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(app.NewRoomManager()),
		Policy:   app.SimplePolicy{},
	}
	srv := httptest.NewServer(SetupRouter(ctx, testConfig(), o))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, o
}

type sinkConn struct{}

func (sinkConn) TrySend(core.Frame) error { return nil }
func (sinkConn) Close()                   {}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealthAndMissingRoom(t *testing.T) {
	srv, o := newServer(t)

	resp, body := get(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
	var health struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	if err := json.Unmarshal(body, &health); err != nil || health.Status != "ok" || health.Rooms != 0 {
		t.Fatalf("health = %s (%v)", body, err)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	for _, path := range []string{"", "/members", "/strokes", "/snapshot.png", "/export.pdf"} {
		resp, _ := get(t, srv.URL+"/api/rooms/nowhere"+path)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: status %d, want 404", path, resp.StatusCode)
		}
	}
	if n := len(o.Registry.Rooms().List()); n != 0 {
		t.Fatalf("REST created %d rooms", n)
	}
}

func TestRoomEndpoints(t *testing.T) {
	srv, o := newServer(t)
	o.Registry.BindSignal("s1", core.NewMemberSession(domain.NewMember(""), sinkConn{}), nil)
	if _, err := o.Join("s1", "studio"); err != nil {
		t.Fatal(err)
	}
	id, _ := o.StrokeStart("s1", protocol.StrokeStart{Kind: domain.StrokeDraw, Color: "#FF0000", Size: 4, At: domain.Point{X: 10, Y: 10}})
	o.StrokeUpdate("s1", protocol.StrokeUpdate{StrokeID: id, At: domain.Point{X: 150, Y: 80}})
	o.StrokeEnd("s1", protocol.StrokeEnd{StrokeID: id})

	_, body := get(t, srv.URL+"/api/rooms")
	var list struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	if err := json.Unmarshal(body, &list); err != nil || len(list.Rooms) != 1 {
		t.Fatalf("rooms = %s (%v)", body, err)
	}
	if r := list.Rooms[0]; r.Key != "studio" || r.MemberCount != 1 || r.StrokeCount != 1 {
		t.Fatalf("room info = %+v", r)
	}

	_, body = get(t, srv.URL+"/api/rooms/studio/members")
	var members struct {
		Users []core.MemberDTO `json:"users"`
	}
	if err := json.Unmarshal(body, &members); err != nil || len(members.Users) != 1 {
		t.Fatalf("members = %s (%v)", body, err)
	}

	_, body = get(t, srv.URL+"/api/rooms/studio/strokes")
	var strokes struct {
		Strokes []domain.Stroke `json:"strokes"`
	}
	if err := json.Unmarshal(body, &strokes); err != nil || len(strokes.Strokes) != 1 || strokes.Strokes[0].ID != id {
		t.Fatalf("strokes = %s (%v)", body, err)
	}

	resp, body := get(t, srv.URL+"/api/rooms/studio/snapshot.png?width=40&height=20")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || len(body) == 0 {
		t.Fatalf("png: status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	resp, _ = get(t, srv.URL+"/api/rooms/studio/snapshot.png?width=-3")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad width status %d", resp.StatusCode)
	}
	resp, body = get(t, srv.URL+"/api/rooms/studio/export.pdf")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "%PDF-") {
		t.Fatalf("pdf: status %d", resp.StatusCode)
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *client.Client {
	t.Helper()
	c, err := client.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func closedStrokes(n int) func(b *client.Board) bool {
	return func(b *client.Board) bool {
		got := b.Confirmed()
		if len(got) != n || b.PendingLocal() != 0 {
			return false
		}
		for _, s := range got {
			if !s.Closed {
				return false
			}
		}
		return true
	}
}

func TestWebSocketSessionEndToEnd(t *testing.T) {
	srv, o := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := dial(t, ctx, srv)
	b := dial(t, ctx, srv)
	ua, err := a.Join(ctx, "room1")
	if err != nil {
		t.Fatalf("a join: %v", err)
	}
	ub, err := b.Join(ctx, "room1")
	if err != nil {
		t.Fatalf("b join: %v", err)
	}
	if ua.ID == ub.ID || ua.Color == ub.Color {
		t.Fatalf("identities collide: %+v %+v", ua, ub)
	}
	if err := a.Wait(ctx, func(bd *client.Board) bool { _, ok := bd.Users()[ub.ID]; return ok }); err != nil {
		t.Fatalf("a never saw b join: %v", err)
	}

	id, err := a.BeginStroke(domain.StrokeDraw, "#FF6B6B", 4, domain.Point{X: 1, Y: 1})
	if err != nil {
		t.Fatal(err)
	}
	for i := 2; i <= 4; i++ {
		if err := a.AddPoint(id, domain.Point{X: float64(i), Y: float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.EndStroke(id); err != nil {
		t.Fatal(err)
	}

	for name, c := range map[string]*client.Client{"a": a, "b": b} {
		if err := c.Wait(ctx, closedStrokes(1)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	var fromA, fromB []domain.Stroke
	a.View(func(bd *client.Board) { fromA = bd.Confirmed() })
	b.View(func(bd *client.Board) { fromB = bd.Confirmed() })
	if len(fromA[0].Points) != 4 || len(fromB[0].Points) != 4 || fromA[0].ID != fromB[0].ID {
		t.Fatalf("boards diverged: %+v vs %+v", fromA, fromB)
	}

	room, ok := o.Registry.Rooms().Get("room1")
	if !ok {
		t.Fatal("room missing")
	}
	if srvState := room.FullState(); len(srvState) != 1 || len(srvState[0].Points) != 4 {
		t.Fatalf("server state = %+v", srvState)
	}

	if err := a.Undo(); err != nil {
		t.Fatal(err)
	}
	if err := b.Wait(ctx, closedStrokes(0)); err != nil {
		t.Fatalf("undo not seen: %v", err)
	}

	if err := a.MoveCursor(domain.Point{X: 7, Y: 8}); err != nil {
		t.Fatal(err)
	}
	if err := b.Wait(ctx, func(bd *client.Board) bool { p, ok := bd.Cursor(ua.ID); return ok && p.X == 7 }); err != nil {
		t.Fatalf("cursor not seen: %v", err)
	}

	_ = a.Close()
	if err := b.Wait(ctx, func(bd *client.Board) bool { return len(bd.Users()) == 0 }); err != nil {
		t.Fatalf("departure not seen: %v", err)
	}
	if err := b.Leave(ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok := o.Registry.Rooms().Get("room1"); ok {
		t.Fatal("room survived its last member")
	}
}

func TestRejectedStrokeDoesNotShiftReconciliation(t *testing.T) {
	srv, o := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := dial(t, ctx, srv)
	if _, err := c.BeginStroke(domain.StrokeDraw, "#FF6B6B", 2, domain.Point{}); !errors.Is(err, client.ErrNotInRoom) {
		t.Fatalf("stroke before join: err = %v, want ErrNotInRoom", err)
	}
	if _, err := c.Join(ctx, "strict"); err != nil {
		t.Fatal(err)
	}

	rejected := []struct {
		name  string
		kind  domain.StrokeKind
		color domain.Color
		size  float64
	}{
		{"zero size", domain.StrokeDraw, "#FF6B6B", 0},
		{"oversized", domain.StrokeDraw, "#FF6B6B", 501},
		{"draw without color", domain.StrokeDraw, "", 2},
		{"bad color", domain.StrokeDraw, "red", 2},
	}
	for _, r := range rejected {
		if _, err := c.BeginStroke(r.kind, r.color, r.size, domain.Point{X: 100, Y: 100}); !errors.Is(err, protocol.ErrMalformed) {
			t.Fatalf("%s: err = %v, want ErrMalformed", r.name, err)
		}
	}
	c.View(func(bd *client.Board) {
		if n := len(bd.Strokes()); n != 0 {
			t.Fatalf("rejected strokes painted locally: %d", n)
		}
	})

	id, err := c.BeginStroke(domain.StrokeDraw, "#FF6B6B", 2, domain.Point{X: 1, Y: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddPoint(id, domain.Point{X: 2, Y: 2}); err != nil {
		t.Fatal(err)
	}
	if err := c.EndStroke(id); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(ctx, func(bd *client.Board) bool { return bd.PendingLocal() == 0 }); err != nil {
		t.Fatalf("valid stroke never reconciled: %v", err)
	}
	if err := c.Wait(ctx, closedStrokes(1)); err != nil {
		t.Fatal(err)
	}

	room, ok := o.Registry.Rooms().Get("strict")
	if !ok {
		t.Fatal("room missing")
	}
	state := room.FullState()
	want := []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}
	if len(state) != 1 || state[0].Size != 2 || len(state[0].Points) != len(want) {
		t.Fatalf("server state = %+v", state)
	}
	for i, p := range want {
		if state[0].Points[i] != p {
			t.Fatalf("server points = %v, want %v", state[0].Points, want)
		}
	}
}

func TestConcurrentDrawingConverges(t *testing.T) {
	srv, _ := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const perClient = 5
	clients := []*client.Client{dial(t, ctx, srv), dial(t, ctx, srv), dial(t, ctx, srv)}
	for _, c := range clients {
		if _, err := c.Join(ctx, "shared"); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range clients {
		if err := c.Wait(ctx, func(bd *client.Board) bool { return len(bd.Users()) == len(clients)-1 }); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for n, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				id, err := c.BeginStroke(domain.StrokeDraw, "#000000", 2, domain.Point{X: float64(n), Y: float64(i)})
				if err != nil {
					t.Error(err)
					return
				}
				_ = c.AddPoint(id, domain.Point{X: float64(n) + 1, Y: float64(i) + 1})
				_ = c.EndStroke(id)
			}
		}()
	}
	wg.Wait()

	want := perClient * len(clients)
	var first []domain.StrokeID
	for i, c := range clients {
		if err := c.Wait(ctx, closedStrokes(want)); err != nil {
			t.Fatalf("client %d: %v", i, err)
		}
		var got []domain.StrokeID
		c.View(func(bd *client.Board) {
			for _, s := range bd.Confirmed() {
				got = append(got, s.ID)
			}
		})
		if first == nil {
			first = got
			continue
		}
		for j := range first {
			if got[j] != first[j] {
				t.Fatalf("client %d order %v, client 0 order %v", i, got, first)
			}
		}
	}
}

func TestPingPong(t *testing.T) {
	srv, _ := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, srv)
	if err := c.Ping(); err != nil {
		t.Fatal(err)
	}
	// A pong changes nothing on the board but must not break the session.
	if _, err := c.Join(ctx, "p"); err != nil {
		t.Fatalf("join after ping: %v", err)
	}
}
