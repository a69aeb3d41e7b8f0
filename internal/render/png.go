package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/dkeye/Canvas/internal/domain"
	"github.com/gogpu/gg"
)

var ErrBadSize = errors.New("render: width and height must be positive")

// PNG paints strokes, given in canvas coordinates, onto an out-sized image.
// Coordinates are scaled from canvas to out on each axis.
func PNG(w io.Writer, strokes []domain.Stroke, canvas, out Size) error {
	if !canvas.valid() || !out.valid() {
		return ErrBadSize
	}
	sx := float64(out.Width) / float64(canvas.Width)
	sy := float64(out.Height) / float64(canvas.Height)
	scale := min(sx, sy)

	dc := gg.NewContext(out.Width, out.Height)
	defer dc.Close()
	dc.ClearWithColor(gg.Hex(background))
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		dc.SetColor(ink(s).Color())
		width := max(s.Size*scale, 1)

		first := s.Points[0]
		if len(s.Points) == 1 {
			dc.DrawCircle(first.X*sx, first.Y*sy, width/2)
			if err := dc.Fill(); err != nil {
				return fmt.Errorf("fill stroke %d: %w", s.ID, err)
			}
			continue
		}
		dc.SetLineWidth(width)
		dc.MoveTo(first.X*sx, first.Y*sy)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X*sx, p.Y*sy)
		}
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("stroke %d: %w", s.ID, err)
		}
	}
	return dc.EncodePNG(w)
}
