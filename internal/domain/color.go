package domain

// Color is a "#RRGGBB" hex string.
type Color string

// Palette is the fixed set of display colors assigned to room members.
var Palette = [...]Color{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#FFA07A",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E2",
	"#F8B739",
	"#52B788",
}
