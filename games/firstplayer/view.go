/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import (
	"math"
	"time"
)

const (
	wobbleAmplitude  = 5.0
	wobbleHalfPeriod = 500 * time.Millisecond
)

type SlotView struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	Hex         string  `json:"hex"`
	Ordinal     int     `json:"ordinal"`
	Highlighted bool    `json:"highlighted"`
	Wobbling    bool    `json:"wobbling"`
	Wobble      float64 `json:"wobble"`
}

// View is everything the presentation layer needs to draw a table.
type View struct {
	Slots               []SlotView `json:"slots"`
	Target              int        `json:"target"`
	Phase               string     `json:"phase"`
	SelectionInProgress bool       `json:"selection_in_progress"`
	Configurable        bool       `json:"configurable"`
	Disrupted           bool       `json:"disrupted"`
	Winner              string     `json:"winner,omitempty"`
	Tick                int        `json:"tick"`
	Ticks               int        `json:"ticks"`
	Round               int        `json:"round"`
	HighlightPolicy     string     `json:"highlight_policy"`
}

func (s *Session) View() View {
	now := s.clock.Now()

	slots := s.registry.Slots()
	views := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		v := SlotView{
			ID:          slot.ID,
			X:           slot.Position.X,
			Y:           slot.Position.Y,
			Color:       slot.Color.String(),
			Hex:         slot.Color.Hex(),
			Ordinal:     slot.Ordinal,
			Highlighted: slot.Highlighted,
			Wobbling:    slot.Wobbling,
		}
		if slot.Wobbling {
			v.Wobble = wobbleAngle(now.Sub(slot.CreatedAt))
		}
		views = append(views, v)
	}

	return View{
		Slots:               views,
		Target:              s.registry.Target(),
		Phase:               s.engine.Phase().String(),
		SelectionInProgress: s.engine.Phase() == Highlighting,
		Configurable:        s.registry.Len() == 0,
		Disrupted:           s.engine.Disrupted(),
		Winner:              s.engine.Winner(),
		Tick:                s.engine.Ticks(),
		Ticks:               s.cfg.Ticks(),
		Round:               s.engine.Rounds(),
		HighlightPolicy:     HighlightPolicy,
	}
}

// wobbleAngle eases between 0 and wobbleAmplitude degrees and back, one
// half period each way.
func wobbleAngle(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	phase := math.Mod(float64(elapsed)/float64(wobbleHalfPeriod), 2)
	return wobbleAmplitude * (1 - math.Cos(math.Pi*phase)) / 2
}
