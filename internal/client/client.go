package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/dkeye/Canvas/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed    = errors.New("client closed")
	ErrNotInRoom = errors.New("not in a room")
)

// Client is one WebSocket participant. Its methods are safe for concurrent
// use; server events are applied by a background reader.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	rec     *Reconciler
	board   *Board
	changed chan struct{}
	done    chan struct{}
	err     error
}

// Dial connects to a server WebSocket endpoint such as ws://host:8080/api/ws.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		rec:     NewReconciler(),
		board:   NewBoard(),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	}()
	for {
		var data []byte
		_, data, err = c.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, derr := protocol.DecodeEvent(data)
		if derr != nil {
			log.Warn().Err(derr).Str("module", "client").Msg("dropping server frame")
			continue
		}
		if err = c.handle(ev); err != nil {
			return
		}
	}
}

func (c *Client) handle(ev protocol.Event) error {
	c.mu.Lock()
	var flush []protocol.Request
	switch e := ev.(type) {
	case *protocol.UserInfo:
		c.rec.SetSelf(e.UserID)
		c.board.Apply(e)
	case *protocol.StrokeStarted:
		if id, reqs, own := c.rec.OnStrokeStarted(e); own {
			c.board.Confirm(id, e)
			flush = reqs
		} else {
			c.board.Apply(e)
		}
	default:
		c.board.Apply(ev)
	}
	close(c.changed)
	c.changed = make(chan struct{})
	// Held-back requests go out before any later point on the same stroke.
	c.writeMu.Lock()
	c.mu.Unlock()
	defer c.writeMu.Unlock()
	return c.writeLocked(flush)
}

func (c *Client) send(reqs ...protocol.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(reqs)
}

// Join enters room and waits for the server's full state.
func (c *Client) Join(ctx context.Context, room domain.RoomKey) (domain.User, error) {
	c.mu.Lock()
	c.rec.Reset()
	c.board.resetLocal()
	c.board.Synced = false
	c.mu.Unlock()

	if err := c.send(protocol.JoinRoom{Room: room}); err != nil {
		return domain.User{}, err
	}
	err := c.Wait(ctx, func(b *Board) bool { return b.Synced && b.Self.Room == room })
	if err != nil {
		return domain.User{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.Self, nil
}

// Leave leaves the current room and waits for the acknowledgement.
func (c *Client) Leave(ctx context.Context) error {
	if err := c.send(protocol.LeaveRoom{}); err != nil {
		return err
	}
	return c.Wait(ctx, func(b *Board) bool { return b.Self.ID == "" })
}

// BeginStroke starts a stroke and paints it immediately. A stroke the server
// would reject is refused here, because the server drops it without an echo
// and every later stroke would then match the wrong echo.
func (c *Client) BeginStroke(kind domain.StrokeKind, color domain.Color, size float64, at domain.Point) (LocalID, error) {
	start := protocol.StrokeStart{Kind: kind, Color: color, Size: size, At: at}
	if kind == domain.StrokeErase {
		start.Color = ""
	}
	if err := protocol.Validate(start); err != nil {
		return 0, err
	}
	c.mu.Lock()
	if c.board.Self.Room == "" {
		c.mu.Unlock()
		return 0, ErrNotInRoom
	}
	id := c.rec.Begin(start.Kind, start.Color, start.Size, start.At)
	c.board.BeginLocal(id, kind, color, size, at)
	c.writeMu.Lock()
	req, _ := c.rec.Announce(id)
	c.mu.Unlock()
	defer c.writeMu.Unlock()
	return id, c.writeLocked([]protocol.Request{req})
}

func (c *Client) AddPoint(id LocalID, at domain.Point) error {
	c.mu.Lock()
	c.board.AddLocalPoint(id, at)
	reqs := c.rec.Point(id, at)
	c.writeMu.Lock()
	c.mu.Unlock()
	defer c.writeMu.Unlock()
	return c.writeLocked(reqs)
}

func (c *Client) EndStroke(id LocalID) error {
	c.mu.Lock()
	c.board.EndLocal(id)
	reqs := c.rec.End(id)
	c.writeMu.Lock()
	c.mu.Unlock()
	defer c.writeMu.Unlock()
	return c.writeLocked(reqs)
}

// writeLocked sends reqs; the caller holds writeMu.
func (c *Client) writeLocked(reqs []protocol.Request) error {
	for _, r := range reqs {
		b, err := protocol.EncodeRequest(r)
		if err != nil {
			return err
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return fmt.Errorf("send %s: %w", r.Type(), err)
		}
	}
	return nil
}

func (c *Client) Undo() error { return c.send(protocol.Undo{}) }

func (c *Client) Redo() error { return c.send(protocol.Redo{}) }

func (c *Client) MoveCursor(at domain.Point) error {
	return c.send(protocol.CursorMove{At: at})
}

func (c *Client) Ping() error { return c.send(protocol.Ping{}) }

// Wait blocks until cond holds for the board, ctx is done, or the connection
// ends. cond runs with the board locked and must not retain it.
func (c *Client) Wait(ctx context.Context, cond func(b *Board) bool) error {
	for {
		c.mu.Lock()
		ok := cond(c.board)
		ch := c.changed
		c.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			c.mu.Lock()
			ok := cond(c.board)
			err := c.err
			c.mu.Unlock()
			if ok {
				return nil
			}
			if err == nil {
				err = ErrClosed
			}
			return err
		}
	}
}

// View runs fn with the board locked.
func (c *Client) View(fn func(b *Board)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.board)
}

// StrokeState reports a local stroke's reconciliation state.
func (c *Client) StrokeState(id LocalID) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.State(id)
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

// DialRetry keeps dialing with exponential backoff until it connects, ctx is
// done, or maxElapsed passes.
func DialRetry(ctx context.Context, url string, header http.Header, maxElapsed time.Duration) (*Client, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	var c *Client
	op := func() error {
		var err error
		c, err = Dial(ctx, url, header)
		if err != nil {
			log.Debug().Err(err).Str("module", "client").Str("url", url).Msg("dial failed, retrying")
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return c, nil
}
