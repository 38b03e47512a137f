/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Session is one table: a registry of slots plus the engine that picks among
// them. The presentation layer drives it and renders View.
type Session struct {
	cfg      Config
	clock    clockwork.Clock
	log      zerolog.Logger
	registry *Registry
	engine   *Engine
}

// NewSession validates cfg and builds a session. A nil rng is replaced by a
// ChaCha8 generator seeded from crypto/rand.
func NewSession(cfg Config, clock clockwork.Clock, rng *rand.Rand, logger zerolog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rng == nil {
		seeded, err := newSeededRand()
		if err != nil {
			return nil, err
		}
		rng = seeded
	}

	registry := NewRegistry(cfg.Players, rng, clock, logger)

	return &Session{
		cfg:      cfg,
		clock:    clock,
		log:      logger,
		registry: registry,
		engine:   NewEngine(cfg, registry, clock, rng, logger),
	}, nil
}

func newSeededRand() (*rand.Rand, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seeding rng: %w", err)
	}
	return rand.New(rand.NewChaCha8(seed)), nil
}

// Touch handles one pointer report. Only touch-begin events can create slots;
// when the last slot is created the highlight sequence starts. The error is
// only set for anomalies that were handled locally.
func (s *Session) Touch(t Touch) (Decision, error) {
	if t.Phase != TouchBegin {
		return Decision{Verdict: RejectMoved, At: t.Point}, nil
	}
	if s.engine.Phase() != Idle || s.engine.Disrupted() {
		return Decision{Verdict: RejectBusy, At: t.Point}, nil
	}

	d := Classify(t.Point, s.registry.Positions(), s.registry.Full(), s.cfg.TouchRadius)
	if !d.Accepted() {
		s.log.Debug().
			Float64("x", t.X).
			Float64("y", t.Y).
			Stringer("verdict", d.Verdict).
			Msg("touch rejected")

		return d, nil
	}

	slot, err := s.registry.Add(t.Point)
	switch {
	case errors.Is(err, ErrPaletteExhausted):
		return Decision{Verdict: RejectExhausted, At: t.Point}, err
	case errors.Is(err, ErrCapacityExceeded):
		return Decision{Verdict: RejectFull, At: t.Point}, nil
	case err != nil:
		return Decision{}, err
	}
	d.SlotID = slot.ID

	if s.registry.Full() {
		if err := s.engine.Start(); err != nil {
			return d, err
		}
	}

	return d, nil
}

// Reset clears every slot, restores the palette and returns the engine to
// Idle, cancelling anything it had scheduled.
func (s *Session) Reset() {
	s.engine.Reset()
	s.registry.Reset()

	s.log.Debug().Msg("session reset")
}

func (s *Session) SetPlayerCount(n int) error {
	if err := s.registry.SetTarget(n); err != nil {
		return err
	}
	s.cfg.Players = n
	return nil
}

// RemoveSlot reports that a participant left while players are being
// highlighted, which disrupts the selection. Outside of a running selection
// nothing is removed, so ordinals stay 1..N.
func (s *Session) RemoveSlot(id string) error {
	switch s.engine.Phase() {
	case Resolved:
		return ErrResolved
	case Idle:
		return ErrNotHighlighting
	}
	if !s.registry.Remove(id) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, id)
	}
	return s.engine.Check()
}

func (s *Session) Wake() <-chan time.Time {
	return s.engine.Wake()
}

// Fire must be called after receiving from Wake.
func (s *Session) Fire() error {
	return s.engine.Fire()
}

func (s *Session) Phase() Phase {
	return s.engine.Phase()
}

func (s *Session) Disrupted() bool {
	return s.engine.Disrupted()
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) Registry() *Registry {
	return s.registry
}

func (s *Session) Engine() *Engine {
	return s.engine
}
