package signal

import (
	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(sid core.SessionID, conn *WsSignalConn) {
	ctl.reply(sid, conn, protocol.NewPong())
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, conn *WsSignalConn) {
	if !ctl.Orch.LeaveRoom(sid) {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("leave outside a room")
	}
	ctl.reply(sid, conn, protocol.NewLeft())
}
