/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// HighlightPolicy names the tick policy this engine implements.
const HighlightPolicy = "uniform-random"

type Phase int

const (
	Idle Phase = iota
	Highlighting
	Resolved
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Highlighting:
		return "highlighting"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Engine runs the highlight sequence over a full registry and picks the
// winner. It keeps at most one pending timer; the owner receives from Wake
// and calls Fire on its own goroutine.
type Engine struct {
	cfg      Config
	registry *Registry
	clock    clockwork.Clock
	rng      *rand.Rand
	log      zerolog.Logger

	phase     Phase
	snapshot  []Slot
	ticks     int
	timer     clockwork.Timer
	winner    string
	disrupted bool
	rounds    int
}

func NewEngine(cfg Config, registry *Registry, clock clockwork.Clock, rng *rand.Rand, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		clock:    clock,
		rng:      rng,
		log:      logger,
	}
}

// Start freezes the current slots and begins highlighting. It only succeeds
// from Idle with a full registry.
func (e *Engine) Start() error {
	if e.phase != Idle {
		return fmt.Errorf("%w (phase %s)", ErrAlreadyStarted, e.phase)
	}
	if !e.registry.Full() {
		return ErrRegistryNotFull
	}

	e.snapshot = e.registry.Slots()
	e.registry.StopWobble()
	e.registry.SetHighlighted("")

	e.phase = Highlighting
	e.ticks = 0
	e.winner = ""
	e.disrupted = false
	e.rounds++

	e.log.Info().
		Int("round", e.rounds).
		Int("players", len(e.snapshot)).
		Int("ticks", e.cfg.Ticks()).
		Str("policy", HighlightPolicy).
		Msg("selection started")

	e.schedule(e.cfg.TickInterval)

	return nil
}

// Wake returns the channel of the pending timer, or nil when nothing is
// scheduled. A nil channel blocks forever in a select.
func (e *Engine) Wake() <-chan time.Time {
	if e.timer == nil {
		return nil
	}
	return e.timer.Chan()
}

// Fire advances the sequence after the pending timer expired: one highlight
// tick, or the final draw once every tick has run.
func (e *Engine) Fire() error {
	if e.timer == nil {
		return nil
	}
	e.timer = nil

	if e.phase != Highlighting {
		return nil
	}

	if err := e.verify(); err != nil {
		e.disrupt(err)
		return err
	}

	if e.ticks < e.cfg.Ticks() {
		e.tick()
		if e.ticks < e.cfg.Ticks() {
			e.schedule(e.cfg.TickInterval)
		} else {
			e.schedule(e.cfg.SettleDelay)
		}
		return nil
	}

	e.resolve()

	return nil
}

// Check aborts a running sequence if the registry no longer holds every
// participant.
func (e *Engine) Check() error {
	if e.phase != Highlighting {
		return nil
	}
	if err := e.verify(); err != nil {
		e.disrupt(err)
		return err
	}
	return nil
}

// Reset cancels any pending timer and returns to Idle.
func (e *Engine) Reset() {
	e.cancel()
	e.phase = Idle
	e.snapshot = nil
	e.ticks = 0
	e.winner = ""
	e.disrupted = false
}

func (e *Engine) Phase() Phase {
	return e.phase
}

func (e *Engine) Disrupted() bool {
	return e.disrupted
}

func (e *Engine) Winner() string {
	return e.winner
}

// Ticks reports how many highlight ticks ran in the current round.
func (e *Engine) Ticks() int {
	return e.ticks
}

func (e *Engine) Rounds() int {
	return e.rounds
}

// Snapshot returns a copy of the participants frozen at Start.
func (e *Engine) Snapshot() []Slot {
	out := make([]Slot, len(e.snapshot))
	copy(out, e.snapshot)
	return out
}

func (e *Engine) tick() {
	pick := e.snapshot[e.rng.IntN(len(e.snapshot))]
	e.registry.SetHighlighted(pick.ID)
	e.ticks++

	e.log.Debug().
		Int("tick", e.ticks).
		Int("ordinal", pick.Ordinal).
		Msg("highlight")
}

func (e *Engine) resolve() {
	winner := e.snapshot[e.rng.IntN(len(e.snapshot))]

	e.registry.Retain(winner.ID)
	e.registry.SetHighlighted(winner.ID)

	e.phase = Resolved
	e.winner = winner.ID

	e.log.Info().
		Int("round", e.rounds).
		Str("slot", winner.ID).
		Int("ordinal", winner.Ordinal).
		Stringer("color", winner.Color).
		Msg("winner selected")
}

func (e *Engine) verify() error {
	for _, s := range e.snapshot {
		if !e.registry.Contains(s.ID) {
			return fmt.Errorf("%w: player %d left during selection", ErrSelectionDisrupted, s.Ordinal)
		}
	}
	return nil
}

func (e *Engine) disrupt(err error) {
	e.cancel()
	e.registry.SetHighlighted("")

	e.phase = Idle
	e.snapshot = nil
	e.ticks = 0
	e.disrupted = true

	e.log.Warn().Err(err).Int("round", e.rounds).Msg("selection disrupted")
}

func (e *Engine) schedule(d time.Duration) {
	e.cancel()
	e.timer = e.clock.NewTimer(d)
}

func (e *Engine) cancel() {
	if e.timer == nil {
		return
	}
	stopAndDrainTimer(e.timer)
	e.timer = nil
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
