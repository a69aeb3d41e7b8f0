package render

import (
	"fmt"
	"io"

	"github.com/dkeye/Canvas/internal/domain"
	"github.com/gogpu/gg"
	"github.com/jung-kurt/gofpdf"
)

// PDF writes strokes as vector lines on a single page the size of canvas,
// one canvas unit per point.
func PDF(w io.Writer, strokes []domain.Stroke, canvas Size) error {
	if !canvas.valid() {
		return ErrBadSize
	}
	orientation := "L"
	if canvas.Height > canvas.Width {
		orientation = "P"
	}
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(canvas.Width), Ht: float64(canvas.Height)},
	})
	p.SetCreator("canvas", true)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		r, g, b := rgb255(ink(s))
		p.SetDrawColor(r, g, b)
		p.SetFillColor(r, g, b)
		width := max(s.Size, 0.5)

		if len(s.Points) == 1 {
			p.Circle(s.Points[0].X, s.Points[0].Y, width/2, "F")
			continue
		}
		p.SetLineWidth(width)
		for i := 1; i < len(s.Points); i++ {
			a, z := s.Points[i-1], s.Points[i]
			p.Line(a.X, a.Y, z.X, z.Y)
		}
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func rgb255(c gg.RGBA) (int, int, int) {
	return int(c.R*255 + 0.5), int(c.G*255 + 0.5), int(c.B*255 + 0.5)
}
