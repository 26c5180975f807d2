// Package color provides basic color definitions for a chess game
package color

// Color represent a chess color
type Color string

// Possible color variations in a chess game
const (
	White Color = "w"
	Black Color = "b"
)

// Opp returns the opposite color for the given color.
func (c Color) Opp() Color {
	if c == White {
		return Black
	}

	return White
}

// Slot returns the seat index for the color. White always sits in slot 0.
func (c Color) Slot() int {
	if c == White {
		return 0
	}

	return 1
}

// FromSlot returns the color seated in the given slot.
func FromSlot(slot int) Color {
	if slot == 0 {
		return White
	}

	return Black
}
