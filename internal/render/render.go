// Package render rasterizes a room's stroke timeline. Strokes are painted in
// timeline order; erase strokes paint with the background color, so a later
// erase covers what came before it and a later draw covers the erase.
package render

import (
	"github.com/dkeye/Canvas/internal/domain"
	"github.com/gogpu/gg"
)

const background = "#FFFFFF"

// Size is a width and height in canvas units.
type Size struct {
	Width  int
	Height int
}

func (s Size) valid() bool { return s.Width > 0 && s.Height > 0 }

// ink returns the color a stroke paints with.
func ink(s domain.Stroke) gg.RGBA {
	switch {
	case s.Kind == domain.StrokeErase:
		return gg.Hex(background)
	case s.Color == "":
		return gg.Black
	default:
		return gg.Hex(string(s.Color))
	}
}
