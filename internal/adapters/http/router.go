package http

import (
	"context"

	"github.com/dkeye/Canvas/internal/adapters/signal"
	"github.com/dkeye/Canvas/internal/app"
	"github.com/dkeye/Canvas/internal/app/orch"
	"github.com/dkeye/Canvas/internal/config"
	"github.com/dkeye/Canvas/internal/render"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SignalOptions(cfg *config.Config) signal.Options {
	return signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(TracingMiddleware())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CanvasSession", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	rooms := &roomHandlers{
		reg:    o.Registry,
		canvas: render.Size{Width: cfg.CanvasWidth, Height: cfg.CanvasHeight},
	}
	r.GET("/health", rooms.health)

	api := r.Group("/api")
	api.GET("/rooms", rooms.list)
	api.GET("/rooms/:key", rooms.info)
	api.GET("/rooms/:key/members", rooms.members)
	api.GET("/rooms/:key/strokes", rooms.strokes)
	api.GET("/rooms/:key/snapshot.png", rooms.snapshotPNG)
	api.GET("/rooms/:key/export.pdf", rooms.exportPDF)

	ctrl := signal.NewSignalWSController(o, app.NewRateLimiter(cfg.CursorRate, cfg.CursorBurst), SignalOptions(cfg))
	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString(clientTokenKey)).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
