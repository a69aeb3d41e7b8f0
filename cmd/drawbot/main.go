// Command drawbot joins a room and draws random strokes, or lists servers
// advertised on the local network.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/dkeye/Canvas/internal/client"
	"github.com/dkeye/Canvas/internal/discovery"
	"github.com/dkeye/Canvas/internal/domain"
)

func main() {
	var (
		server   = flag.StringP("server", "s", "ws://localhost:8080/api/ws", "server WebSocket URL")
		room     = flag.StringP("room", "r", "lobby", "room to join")
		strokes  = flag.IntP("strokes", "n", 10, "strokes to draw")
		points   = flag.Int("points", 24, "points per stroke")
		interval = flag.Duration("interval", 20*time.Millisecond, "delay between points")
		width    = flag.Float64("width", 1920, "canvas width")
		height   = flag.Float64("height", 1080, "canvas height")
		undo     = flag.Bool("undo-last", false, "undo the final stroke")
		discover = flag.Bool("discover", false, "list servers on the local network and exit")
		retry    = flag.Duration("retry", 30*time.Second, "keep retrying the connection for this long")
		verbose  = flag.BoolP("verbose", "v", false, "debug logging")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *discover {
		peers, err := discovery.Browse(ctx, 3*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("browse")
		}
		for _, p := range peers {
			fmt.Printf("%s\tws://%s/api/ws\n", p.Instance, p.Addr)
		}
		return
	}

	key, err := domain.NewRoomKey(*room)
	if err != nil {
		log.Fatal().Err(err).Msg("room")
	}

	c, err := client.DialRetry(ctx, *server, nil, *retry)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer c.Close()

	joinCtx, joinCancel := context.WithTimeout(ctx, 5*time.Second)
	me, err := c.Join(joinCtx, key)
	joinCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("join")
	}
	log.Info().Str("module", "client").Str("user", string(me.ID)).Str("color", string(me.Color)).Str("room", string(me.Room)).Msg("joined")

	for i := 0; i < *strokes && ctx.Err() == nil; i++ {
		if err := scribble(ctx, c, me.Color, *points, *interval, *width, *height); err != nil {
			log.Fatal().Err(err).Msg("draw")
		}
	}

	if *undo {
		if err := c.Undo(); err != nil {
			log.Fatal().Err(err).Msg("undo")
		}
	}

	settle, settleCancel := context.WithTimeout(ctx, 5*time.Second)
	defer settleCancel()
	if err := c.Wait(settle, func(b *client.Board) bool { return b.PendingLocal() == 0 }); err != nil {
		log.Warn().Err(err).Msg("strokes still unconfirmed")
	}
	c.View(func(b *client.Board) {
		log.Info().Str("module", "client").Int("strokes", len(b.Confirmed())).Int("peers", len(b.Users())).Msg("done")
	})
}

// scribble draws one wavy stroke at a random spot.
func scribble(ctx context.Context, c *client.Client, color domain.Color, points int, interval time.Duration, w, h float64) error {
	x, y := rand.Float64()*w, rand.Float64()*h
	phase := rand.Float64() * math.Pi
	id, err := c.BeginStroke(domain.StrokeDraw, color, 2+rand.Float64()*6, domain.Point{X: x, Y: y})
	if err != nil {
		return err
	}
	for i := 1; i < points; i++ {
		select {
		case <-ctx.Done():
			return c.EndStroke(id)
		case <-time.After(interval):
		}
		p := domain.Point{
			X: math.Min(w, math.Max(0, x+float64(i)*6)),
			Y: math.Min(h, math.Max(0, y+20*math.Sin(phase+float64(i)/3))),
		}
		if err := c.AddPoint(id, p); err != nil {
			return err
		}
		if err := c.MoveCursor(p); err != nil {
			return err
		}
	}
	return c.EndStroke(id)
}
