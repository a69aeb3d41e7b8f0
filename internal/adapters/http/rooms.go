package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/dkeye/Canvas/internal/app"
	"github.com/dkeye/Canvas/internal/core"
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/dkeye/Canvas/internal/render"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrRoomNotFound = errors.New("room not found")

// roomHandlers expose read-only room state. They never create rooms.
type roomHandlers struct {
	reg    *app.Registry
	canvas render.Size
}

type snapshotQuery struct {
	Width  int `form:"width" binding:"omitempty,min=1,max=8192"`
	Height int `form:"height" binding:"omitempty,min=1,max=8192"`
}

func (h *roomHandlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(h.reg.Rooms().List())})
}

func (h *roomHandlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.reg.Rooms().List()})
}

// room resolves :key or writes the error response.
func (h *roomHandlers) room(c *gin.Context) (core.RoomService, bool) {
	key, err := domain.NewRoomKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	room, ok := h.reg.Rooms().Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrRoomNotFound.Error()})
		return nil, false
	}
	return room, true
}

func (h *roomHandlers) info(c *gin.Context) {
	if room, ok := h.room(c); ok {
		c.JSON(http.StatusOK, room.Info())
	}
}

func (h *roomHandlers) members(c *gin.Context) {
	if room, ok := h.room(c); ok {
		c.JSON(http.StatusOK, gin.H{"roomId": room.Key(), "users": room.MembersSnapshot()})
	}
}

func (h *roomHandlers) strokes(c *gin.Context) {
	if room, ok := h.room(c); ok {
		c.JSON(http.StatusOK, gin.H{"roomId": room.Key(), "strokes": room.FullState()})
	}
}

func (h *roomHandlers) snapshotPNG(c *gin.Context) {
	var q snapshotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid width or height"})
		return
	}
	room, ok := h.room(c)
	if !ok {
		return
	}
	out := h.canvas
	if q.Width > 0 {
		out.Width = q.Width
	}
	if q.Height > 0 {
		out.Height = q.Height
	}

	var buf bytes.Buffer
	if err := render.PNG(&buf, room.FullState(), h.canvas, out); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room.Key())).Msg("render png")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *roomHandlers) exportPDF(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.PDF(&buf, room.FullState(), h.canvas); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room.Key())).Msg("render pdf")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+string(room.Key())+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
