package ui

import "github.com/gdamore/tcell/v2"

// Colors - dark terminal chat style
var (
	ColorBg        = tcell.NewRGBColor(16, 16, 32)    // Near-black background
	ColorFg        = tcell.NewRGBColor(192, 192, 192) // Light gray text
	ColorBorder    = tcell.NewRGBColor(0, 255, 255)   // Cyan borders
	ColorTitle     = tcell.NewRGBColor(255, 255, 255) // White titles
	ColorHighlight = tcell.NewRGBColor(0, 255, 255)   // Cyan highlight
	ColorOnline    = tcell.NewRGBColor(0, 255, 0)     // Green for online users
	ColorOwn       = tcell.NewRGBColor(255, 255, 0)   // Yellow for own messages
	ColorOther     = tcell.NewRGBColor(0, 255, 255)   // Cyan for other users' messages
)
