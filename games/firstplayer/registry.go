/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Slot is a registered player's placeholder on screen.
type Slot struct {
	ID          string
	Position    Point
	Color       Color
	Ordinal     int
	Highlighted bool
	Wobbling    bool
	CreatedAt   time.Time
}

// Registry holds the ordered set of player slots for one table.
type Registry struct {
	slots       []Slot
	target      int
	nextOrdinal int
	palette     *Palette

	rng   *rand.Rand
	clock clockwork.Clock
	log   zerolog.Logger
}

func NewRegistry(target int, rng *rand.Rand, clock clockwork.Clock, logger zerolog.Logger) *Registry {
	if validPlayerCount(target) != nil {
		target = DefaultPlayers
	}

	return &Registry{
		target:      target,
		nextOrdinal: 1,
		palette:     NewPalette(),
		rng:         rng,
		clock:       clock,
		log:         logger,
	}
}

// Add creates a slot at pos with the next ordinal and a random unused color.
func (r *Registry) Add(pos Point) (Slot, error) {
	if r.Full() {
		return Slot{}, ErrCapacityExceeded
	}

	color, ok := r.palette.Take(r.rng)
	if !ok {
		r.log.Warn().
			Float64("x", pos.X).
			Float64("y", pos.Y).
			Int("slots", len(r.slots)).
			Msg("palette exhausted, dropping new slot")

		return Slot{}, ErrPaletteExhausted
	}

	slot := Slot{
		ID:        uuid.NewString(),
		Position:  pos,
		Color:     color,
		Ordinal:   r.nextOrdinal,
		Wobbling:  true,
		CreatedAt: r.clock.Now(),
	}
	r.nextOrdinal++
	r.slots = append(r.slots, slot)

	r.log.Debug().
		Str("slot", slot.ID).
		Int("ordinal", slot.Ordinal).
		Stringer("color", slot.Color).
		Float64("x", pos.X).
		Float64("y", pos.Y).
		Msg("slot created")

	return slot, nil
}

func (r *Registry) Full() bool {
	return len(r.slots) >= r.target
}

func (r *Registry) Len() int {
	return len(r.slots)
}

func (r *Registry) Target() int {
	return r.target
}

// SetTarget changes the player count; only allowed while empty.
func (r *Registry) SetTarget(n int) error {
	if len(r.slots) > 0 {
		return ErrRegistryNotEmpty
	}
	if err := validPlayerCount(n); err != nil {
		return err
	}
	r.target = n
	return nil
}

// Reset drops every slot and restores the full palette. The target count is
// left alone.
func (r *Registry) Reset() {
	r.slots = nil
	r.nextOrdinal = 1
	r.palette.Restore()
}

// Slots returns a copy of the current slots in creation order.
func (r *Registry) Slots() []Slot {
	out := make([]Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

func (r *Registry) Positions() []Point {
	out := make([]Point, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s.Position)
	}
	return out
}

func (r *Registry) Get(id string) (Slot, bool) {
	if i := r.index(id); i >= 0 {
		return r.slots[i], true
	}
	return Slot{}, false
}

func (r *Registry) Contains(id string) bool {
	return r.index(id) >= 0
}

// Remove deletes a slot and hands its color back to the palette. Ordinals of
// the remaining slots are not renumbered; Session only removes while a
// selection is running, which then disrupts it.
func (r *Registry) Remove(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}

	r.palette.Release(r.slots[i].Color)
	r.slots = append(r.slots[:i], r.slots[i+1:]...)
	return true
}

// Retain removes every slot except id.
func (r *Registry) Retain(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}

	keep := r.slots[i]
	for _, s := range r.slots {
		if s.ID != id {
			r.palette.Release(s.Color)
		}
	}
	r.slots = []Slot{keep}
	return true
}

// SetHighlighted makes id the only highlighted slot. An empty id clears
// every highlight.
func (r *Registry) SetHighlighted(id string) {
	for i := range r.slots {
		r.slots[i].Highlighted = r.slots[i].ID == id
	}
}

func (r *Registry) StopWobble() {
	for i := range r.slots {
		r.slots[i].Wobbling = false
	}
}

func (r *Registry) Palette() *Palette {
	return r.palette
}

func (r *Registry) index(id string) int {
	for i := range r.slots {
		if r.slots[i].ID == id {
			return i
		}
	}
	return -1
}
