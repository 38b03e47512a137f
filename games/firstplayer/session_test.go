package firstplayer

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTwoPlayerScenario(t *testing.T) {
	s, _ := newTestSession(t, 2, 7)

	d := touch(t, s, 100, 100)
	assert.True(t, d.Accepted())
	assert.NotEmpty(t, d.SlotID)
	assert.Equal(t, 1, s.Registry().Len())

	d = touch(t, s, 110, 110)
	assert.Equal(t, RejectTooClose, d.Verdict)
	assert.Equal(t, 1, s.Registry().Len())
	assert.Equal(t, Idle, s.Phase())

	d = touch(t, s, 400, 400)
	assert.True(t, d.Accepted())
	assert.Equal(t, 2, s.Registry().Len())
	assert.Equal(t, Highlighting, s.Phase())
	assert.NotNil(t, s.Wake())
}

func TestSessionResetDuringHighlighting(t *testing.T) {
	s, fc := newTestSession(t, 2, 7)
	fill(t, s, 2)

	for i := 0; i < 4; i++ {
		require.True(t, advance(t, fc, s, 200*time.Millisecond))
	}

	s.Reset()

	assert.Equal(t, Idle, s.Phase())
	assert.Equal(t, 0, s.Registry().Len())
	assert.Equal(t, 8, s.Registry().Palette().Available())

	for i := 0; i < 30; i++ {
		assert.False(t, advance(t, fc, s, 200*time.Millisecond), "tick fired after reset")
	}
	assert.Equal(t, 0, s.Engine().Ticks())

	// a fresh game starts from ordinal 1 again
	d := touch(t, s, 100, 100)
	require.True(t, d.Accepted())
	slot, ok := s.Registry().Get(d.SlotID)
	require.True(t, ok)
	assert.Equal(t, 1, slot.Ordinal)
}

func TestSessionIgnoresTouchMoves(t *testing.T) {
	s, _ := newTestSession(t, 2, 7)

	touch(t, s, 100, 100)

	// a finger sliding well outside its own slot must not spawn another one
	d, err := s.Touch(Touch{Point: Point{X: 300, Y: 100}, Phase: TouchMove})
	require.NoError(t, err)
	assert.Equal(t, RejectMoved, d.Verdict)
	assert.Equal(t, 1, s.Registry().Len())
	assert.Equal(t, Idle, s.Phase())
}

func TestSessionInvariantsUnderRandomTouches(t *testing.T) {
	rng := rand.New(rand.NewPCG(99, 100))

	for target := MinPlayers; target <= MaxPlayers; target++ {
		s, _ := newTestSession(t, target, uint64(target))

		for i := 0; i < 500; i++ {
			_, err := s.Touch(Touch{Point: Point{X: rng.Float64() * 1000, Y: rng.Float64() * 1600}})
			require.NoError(t, err)

			slots := s.Registry().Slots()
			require.LessOrEqual(t, len(slots), target)

			colors := make(map[Color]bool)
			for a := range slots {
				require.False(t, colors[slots[a].Color], "shared color")
				colors[slots[a].Color] = true
				require.Equal(t, a+1, slots[a].Ordinal)

				for b := a + 1; b < len(slots); b++ {
					dist := slots[a].Position.Distance(slots[b].Position)
					require.GreaterOrEqual(t, dist, DefaultTouchRadius)
				}
			}
		}

		assert.Equal(t, target, s.Registry().Len())
		assert.Equal(t, 1, s.Engine().Rounds(), "selection must start exactly once")
	}
}

func TestSessionResolvedIsTerminal(t *testing.T) {
	s, fc := newTestSession(t, 2, 3)
	fill(t, s, 2)
	runToResolution(t, fc, s)

	require.Equal(t, Resolved, s.Phase())

	d := touch(t, s, 800, 800)
	assert.Equal(t, RejectBusy, d.Verdict)
	assert.Equal(t, 1, s.Registry().Len())

	assert.ErrorIs(t, s.SetPlayerCount(4), ErrRegistryNotEmpty)
	assert.ErrorIs(t, s.RemoveSlot(s.Engine().Winner()), ErrResolved)

	s.Reset()
	assert.Equal(t, Idle, s.Phase())
	assert.Empty(t, s.Engine().Winner())
	require.NoError(t, s.SetPlayerCount(4))
	assert.Equal(t, 4, s.Config().Players)
}

func TestSessionRemoveSlotOnlyWhileHighlighting(t *testing.T) {
	s, _ := newTestSession(t, 4, 3)
	fill(t, s, 3)

	id := s.Registry().Slots()[1].ID
	assert.ErrorIs(t, s.RemoveSlot(id), ErrNotHighlighting)
	assert.Equal(t, 3, s.Registry().Len())
	assert.False(t, s.Disrupted())

	require.True(t, touch(t, s, 100, 900).Accepted())
	require.Equal(t, Highlighting, s.Phase())

	for i, slot := range s.Registry().Slots() {
		assert.Equal(t, i+1, slot.Ordinal)
	}
}

func TestSessionRemoveUnknownSlot(t *testing.T) {
	s, _ := newTestSession(t, 2, 3)
	fill(t, s, 2)
	require.Equal(t, Highlighting, s.Phase())

	assert.ErrorIs(t, s.RemoveSlot("missing"), ErrUnknownSlot)
	assert.Equal(t, Highlighting, s.Phase())
	assert.False(t, s.Disrupted())
}

func TestSessionRemoveSlotDisruptsHighlighting(t *testing.T) {
	s, fc := newTestSession(t, 3, 3)
	fill(t, s, 3)
	require.True(t, advance(t, fc, s, 200*time.Millisecond))

	err := s.RemoveSlot(s.Registry().Slots()[2].ID)
	assert.ErrorIs(t, err, ErrSelectionDisrupted)
	assert.True(t, s.Disrupted())
	assert.Equal(t, Idle, s.Phase())
	assert.Nil(t, s.Wake())

	d := touch(t, s, 900, 900)
	assert.Equal(t, RejectBusy, d.Verdict, "touches wait for the disruption to be acknowledged")

	view := s.View()
	assert.True(t, view.Disrupted)
	assert.False(t, view.SelectionInProgress)

	s.Reset()
	assert.False(t, s.Disrupted())
	assert.True(t, touch(t, s, 100, 100).Accepted())
}

func TestSessionSetPlayerCount(t *testing.T) {
	s, _ := newTestSession(t, 2, 3)

	require.NoError(t, s.SetPlayerCount(8))
	assert.Equal(t, 8, s.View().Target)

	assert.ErrorIs(t, s.SetPlayerCount(0), ErrInvalidPlayerCount)

	touch(t, s, 10, 10)
	assert.ErrorIs(t, s.SetPlayerCount(3), ErrRegistryNotEmpty)
	assert.Equal(t, 8, s.Registry().Target())
}

func TestNewSessionValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Players = 12

	_, err := NewSession(cfg, clockwork.NewFakeClock(), nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidPlayerCount)

	s, err := NewSession(DefaultConfig(), nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, Idle, s.Phase())
}

// The winner must be uniform over the participants: chi-square over 10,000
// full rounds per table size, at p = 0.001.
func TestSessionWinnerIsUniform(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	critical := map[int]float64{
		1: 10.828, 2: 13.816, 3: 16.266, 4: 18.467, 5: 20.515, 6: 22.458, 7: 24.322,
	}

	const runs = 10000

	for n := MinPlayers; n <= MaxPlayers; n++ {
		cfg := DefaultConfig()
		cfg.Players = n
		fc := clockwork.NewFakeClockAt(epoch)
		s, err := NewSession(cfg, fc, rand.New(rand.NewPCG(uint64(n)*7919, 104729)), zerolog.Nop())
		require.NoError(t, err)

		wins := make([]int, n)
		for i := 0; i < runs; i++ {
			s.Reset()
			fill(t, s, n)

			participants := make(map[string]int, n)
			for _, slot := range s.Engine().Snapshot() {
				participants[slot.ID] = slot.Ordinal
			}

			runToResolution(t, fc, s)

			ordinal, ok := participants[s.Engine().Winner()]
			require.True(t, ok, "winner not in snapshot")
			wins[ordinal-1]++
		}

		expected := float64(runs) / float64(n)
		chi := 0.0
		for _, w := range wins {
			diff := float64(w) - expected
			chi += diff * diff / expected
		}

		assert.Less(t, chi, critical[n-1], "n=%d wins=%v", n, wins)
	}
}

func TestViewReportsState(t *testing.T) {
	s, fc := newTestSession(t, 2, 21)

	v := s.View()
	assert.Equal(t, "idle", v.Phase)
	assert.True(t, v.Configurable)
	assert.Equal(t, 15, v.Ticks)
	assert.Equal(t, HighlightPolicy, v.HighlightPolicy)
	assert.Empty(t, v.Slots)

	touch(t, s, 100, 100)
	fc.Advance(wobbleHalfPeriod)

	v = s.View()
	require.Len(t, v.Slots, 1)
	assert.False(t, v.Configurable)
	assert.True(t, v.Slots[0].Wobbling)
	assert.InDelta(t, wobbleAmplitude, v.Slots[0].Wobble, 1e-9)
	assert.Equal(t, 1, v.Slots[0].Ordinal)
	assert.NotEmpty(t, v.Slots[0].Hex)

	touch(t, s, 400, 400)
	v = s.View()
	assert.True(t, v.SelectionInProgress)
	assert.Equal(t, "highlighting", v.Phase)
	for _, slot := range v.Slots {
		assert.False(t, slot.Wobbling)
		assert.Zero(t, slot.Wobble)
	}

	runToResolution(t, fc, s)
	v = s.View()
	assert.Equal(t, "resolved", v.Phase)
	assert.False(t, v.SelectionInProgress)
	require.Len(t, v.Slots, 1)
	assert.Equal(t, v.Winner, v.Slots[0].ID)
	assert.True(t, v.Slots[0].Highlighted)
	assert.Equal(t, 1, v.Round)
}

func TestWobbleAngle(t *testing.T) {
	assert.Zero(t, wobbleAngle(0))
	assert.InDelta(t, wobbleAmplitude/2, wobbleAngle(wobbleHalfPeriod/2), 1e-9)
	assert.InDelta(t, wobbleAmplitude, wobbleAngle(wobbleHalfPeriod), 1e-9)
	assert.InDelta(t, 0, wobbleAngle(2*wobbleHalfPeriod), 1e-9)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 15, DefaultConfig().Ticks())

	bad := []func(*Config){
		func(c *Config) { c.Players = 1 },
		func(c *Config) { c.TouchRadius = 0 },
		func(c *Config) { c.TickInterval = 0 },
		func(c *Config) { c.HighlightDuration = time.Millisecond },
		func(c *Config) { c.SettleDelay = -time.Second },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
}
