package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/protocol"
	"github.com/dkeye/Canvas/internal/telemetry"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait)) }
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = extend()
		ctl.handleSignal(ctx, sid, c, data)
	}
}

// handleSignal decodes one frame and routes it. Frames that fail decoding or
// validation are dropped.
func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	req, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Int("bytes", len(data)).Msg("dropping message")
		return
	}

	_, span := telemetry.StartSpan(ctx, "signal."+string(req.Type()), attribute.String("sid", string(sid)))
	defer span.End()
	if user, ok := ctl.Orch.Registry.Lookup(sid); ok {
		span.SetAttributes(
			attribute.String("room", string(user.Room)),
			attribute.String("user", string(user.ID)),
		)
	}

	switch r := req.(type) {
	case protocol.Ping:
		ctl.handlePing(sid, c)
	case protocol.LeaveRoom:
		ctl.handleLeave(sid, c)
	case protocol.CursorMove:
		if ctl.Cursor != nil && !ctl.Cursor.Allow(sid) {
			return
		}
		ctl.Orch.CursorMove(sid, r)
	default:
		ctl.Orch.Dispatch(sid, req)
	}
}

// reply sends a unicast outside any room transaction.
func (ctl *SignalWSController) reply(sid core.SessionID, c *WsSignalConn, e protocol.Event) {
	f, err := protocol.Encode(e)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("reply encode")
		return
	}
	if err := c.TrySend(f); errors.Is(err, ErrBackpressure) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("reply dropped, kicking")
		ctl.Orch.Registry.Cancel(sid)
	}
}
