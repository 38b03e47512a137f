/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinPlayers = 2
	MaxPlayers = 8

	DefaultPlayers           = MinPlayers
	DefaultTouchRadius       = 75.0
	DefaultHighlightDuration = 3 * time.Second
	DefaultTickInterval      = 200 * time.Millisecond
	DefaultSettleDelay       = 500 * time.Millisecond
)

// Config tunes a Session. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	Players           int
	TouchRadius       float64
	HighlightDuration time.Duration
	TickInterval      time.Duration
	SettleDelay       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Players:           DefaultPlayers,
		TouchRadius:       DefaultTouchRadius,
		HighlightDuration: DefaultHighlightDuration,
		TickInterval:      DefaultTickInterval,
		SettleDelay:       DefaultSettleDelay,
	}
}

func (c Config) Validate() error {
	if err := validPlayerCount(c.Players); err != nil {
		return err
	}
	if c.TouchRadius <= 0 {
		return fmt.Errorf("invalid touch radius (must be positive): %g", c.TouchRadius)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("invalid highlight interval (must be positive): %s", c.TickInterval)
	}
	if c.HighlightDuration < c.TickInterval {
		return errors.New("highlight duration must be at least one highlight interval")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("invalid settle delay (must not be negative): %s", c.SettleDelay)
	}
	return nil
}

// Ticks is the number of highlight steps that fit in the highlight duration.
func (c Config) Ticks() int {
	return int(c.HighlightDuration / c.TickInterval)
}

func validPlayerCount(n int) error {
	if n < MinPlayers || n > MaxPlayers {
		return fmt.Errorf("%w (must be between %d-%d inclusive): %d", ErrInvalidPlayerCount, MinPlayers, MaxPlayers, n)
	}
	return nil
}
