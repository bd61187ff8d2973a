package ir

// Color is one of the named palette colors a block type may carry.
type Color string

// blankColor is what the settings form submits for "no color".
const blankColor = "__blank__"

var palette = map[Color]bool{
	"red": true, "orange": true, "amber": true, "yellow": true, "lime": true,
	"green": true, "emerald": true, "teal": true, "cyan": true, "sky": true,
	"blue": true, "indigo": true, "violet": true, "purple": true,
	"fuchsia": true, "pink": true, "rose": true, "white": true, "gray": true,
	"black": true,
}

// ParseColor normalizes a stored or configured color. Empty and blank values
// yield the zero Color; unknown names are returned as-is for validation to
// reject.
func ParseColor(s string) Color {
	if s == "" || s == blankColor {
		return ""
	}
	return Color(s)
}

// Valid reports whether c is empty or a palette color.
func (c Color) Valid() bool {
	return c == "" || palette[c]
}
