/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import "math/rand/v2"

type Color int

const (
	Red Color = iota
	Blue
	Green
	Orange
	Purple
	Pink
	Yellow
	Mint

	paletteSize
)

var colorNames = [paletteSize]string{
	"red", "blue", "green", "orange", "purple", "pink", "yellow", "mint",
}

var colorHex = [paletteSize]string{
	"#ff3b30", "#007aff", "#34c759", "#ff9500", "#af52de", "#ff2d55", "#ffcc00", "#00c7be",
}

func (c Color) String() string {
	if c < 0 || c >= paletteSize {
		return "unknown"
	}
	return colorNames[c]
}

// Hex returns the CSS color used to draw c.
func (c Color) Hex() string {
	if c < 0 || c >= paletteSize {
		return "#ffffff"
	}
	return colorHex[c]
}

// Palette tracks which colors are free to hand out.
type Palette struct {
	available [paletteSize]bool
	free      int
}

func NewPalette() *Palette {
	p := &Palette{}
	p.Restore()
	return p
}

// Restore makes every color available again.
func (p *Palette) Restore() {
	for i := range p.available {
		p.available[i] = true
	}
	p.free = int(paletteSize)
}

// Take picks a color uniformly among the available ones and marks it used.
func (p *Palette) Take(rng *rand.Rand) (Color, bool) {
	if p.free == 0 {
		return 0, false
	}

	n := rng.IntN(p.free)
	for i, ok := range p.available {
		if !ok {
			continue
		}
		if n == 0 {
			p.available[i] = false
			p.free--
			return Color(i), true
		}
		n--
	}

	return 0, false
}

func (p *Palette) Release(c Color) {
	if c < 0 || c >= paletteSize || p.available[c] {
		return
	}
	p.available[c] = true
	p.free++
}

func (p *Palette) IsAvailable(c Color) bool {
	return c >= 0 && c < paletteSize && p.available[c]
}

func (p *Palette) Available() int {
	return p.free
}

func (p *Palette) Size() int {
	return int(paletteSize)
}
