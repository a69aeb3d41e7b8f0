package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Canvas/internal/app"
	"github.com/dkeye/Canvas/internal/app/orch"
	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
	"github.com/sourcegraph/conc"
)

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrConnectionClosed = errors.New("connection closed")
)

// Options tune the per-connection pumps.
type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  5 * time.Second,
		SendBuffer: 256,
	}
}

type SignalWSController struct {
	Orch   *orch.Orchestrator
	Cursor *app.RateLimiter
	opts   Options
}

func NewSignalWSController(o *orch.Orchestrator, cursor *app.RateLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 1
	}
	return &SignalWSController{Orch: o, Cursor: cursor, opts: opts}
}

// WsSignalConn is the outbound half of one WebSocket. TrySend never blocks:
// a full buffer is reported as ErrBackpressure.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close is idempotent. Closing the socket unblocks the read pump.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until either pump
// stops. Disconnect processing runs exactly once, after both pumps are done.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(ksuid.New().String())
	token := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client_token", token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	sess := core.NewMemberSession(domain.NewMember(token), conn)
	ctx, cancel := context.WithCancel(ctx)
	stop := func() {
		cancel()
		conn.Close()
	}
	ctl.Orch.Registry.BindSignal(sid, sess, stop)

	go ctl.run(ctx, sid, conn, stop)
}

func (ctl *SignalWSController) run(ctx context.Context, sid core.SessionID, conn *WsSignalConn, stop func()) {
	var wg conc.WaitGroup
	wg.Go(func() {
		defer stop()
		ctl.writePump(ctx, sid, conn)
	})
	wg.Go(func() {
		defer stop()
		ctl.readPump(ctx, sid, conn)
	})
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Str("module", "signal").Str("sid", string(sid)).Str("panic", r.String()).Msg("pump panicked")
	}

	ctl.Orch.OnDisconnect(sid)
	if ctl.Cursor != nil {
		ctl.Cursor.Forget(sid)
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("connection finished")
}
