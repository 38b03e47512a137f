package main

import (
	"context"
	"math/rand/v2"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Seednode/whoplaysfirst/games/firstplayer"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, time.March, 25, 12, 0, 0, 0, time.UTC)

func testConfig() *Config {
	return &Config{
		bind:              "127.0.0.1",
		port:              8080,
		players:           firstplayer.DefaultPlayers,
		touchRadius:       firstplayer.DefaultTouchRadius,
		highlightDuration: firstplayer.DefaultHighlightDuration,
		highlightInterval: firstplayer.DefaultTickInterval,
		settleDelay:       firstplayer.DefaultSettleDelay,
	}
}

func newTestHub(t *testing.T, players int) (*Hub, *clockwork.FakeClock) {
	t.Helper()

	cfg := firstplayer.DefaultConfig()
	cfg.Players = players

	fc := clockwork.NewFakeClockAt(epoch)
	session, err := firstplayer.NewSession(cfg, fc, rand.New(rand.NewPCG(7, 11)), zerolog.Nop())
	require.NoError(t, err)

	h := newHub("TestGame", session, fc, zerolog.Nop())
	go h.run()

	t.Cleanup(func() {
		h.stop()
		<-h.done
	})

	return h, fc
}

func newFakeClient(playerID string) *Client {
	return &Client{
		send:     make(chan any, 256),
		playerID: playerID,
	}
}

// expectMessage skips queued messages until one of type T arrives.
func expectMessage[T any](t *testing.T, c *Client) T {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.send:
			require.True(t, ok, "client channel closed")
			if m, ok := msg.(T); ok {
				return m
			}
		case <-timeout:
			var zero T
			require.FailNowf(t, "timed out", "waiting for %T", zero)
			return zero
		}
	}
}

func waitForView(t *testing.T, h *Hub, cond func(firstplayer.View) bool) firstplayer.View {
	t.Helper()

	require.Eventually(t, func() bool {
		v, err := h.View(context.Background())
		return err == nil && cond(v)
	}, 2*time.Second, 5*time.Millisecond)

	v, err := h.View(context.Background())
	require.NoError(t, err)

	return v
}

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *clockwork.FakeClock) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 64)
	fc := clockwork.NewFakeClockAt(epoch)

	srv := httptest.NewServer(newRouter(ctx, cfg, fc, errs))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return srv, fc
}
