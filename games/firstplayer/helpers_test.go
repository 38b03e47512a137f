package firstplayer

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, time.March, 25, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, players int, seed uint64) (*Session, *clockwork.FakeClock) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Players = players

	fc := clockwork.NewFakeClockAt(epoch)
	s, err := NewSession(cfg, fc, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)

	return s, fc
}

// advance moves the fake clock forward and runs the session's timer if it
// expired, reporting whether it did.
func advance(t *testing.T, fc *clockwork.FakeClock, s *Session, d time.Duration) bool {
	t.Helper()

	fc.Advance(d)

	select {
	case <-s.Wake():
		_ = s.Fire()
		return true
	default:
		return false
	}
}

func touch(t *testing.T, s *Session, x, y float64) Decision {
	t.Helper()

	d, err := s.Touch(Touch{Point: Point{X: x, Y: y}, Phase: TouchBegin})
	require.NoError(t, err)

	return d
}

// fill places n well separated touches.
func fill(t *testing.T, s *Session, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		d := touch(t, s, 100+float64(i)*200, 300)
		require.True(t, d.Accepted(), "touch %d: %s", i, d.Verdict)
	}
}

// runToResolution drives the clock until the engine leaves Highlighting.
func runToResolution(t *testing.T, fc *clockwork.FakeClock, s *Session) {
	t.Helper()

	for i := 0; s.Phase() == Highlighting; i++ {
		require.Less(t, i, 1000, "selection never resolved")
		advance(t, fc, s, s.Config().TickInterval)
	}
}

func highlightedCount(r *Registry) int {
	n := 0
	for _, s := range r.Slots() {
		if s.Highlighted {
			n++
		}
	}
	return n
}
