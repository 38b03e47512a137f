package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/whoplaysfirst/games/firstplayer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	corsOrigins       []string
	highlightDuration time.Duration
	highlightInterval time.Duration
	players           int
	port              int
	prefix            string
	profile           bool
	sessionTimeout    time.Duration
	settleDelay       time.Duration
	tlsCert           string
	tlsKey            string
	touchRadius       float64
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	if err := c.game().Validate(); err != nil {
		return fmt.Errorf("invalid game settings: %w", err)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// game returns the settings every new table starts with.
func (c *Config) game() firstplayer.Config {
	return firstplayer.Config{
		Players:           c.players,
		TouchRadius:       c.touchRadius,
		HighlightDuration: c.highlightDuration,
		TickInterval:      c.highlightInterval,
		SettleDelay:       c.settleDelay,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WHOPLAYSFIRST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "whoplaysfirst",
		Short: "Everyone puts a finger on the screen, and the app picks who goes first.",
		Long: `Everyone puts a finger on the screen, and the app picks who goes first.

Once the chosen number of fingers is down, one player is highlighted at a time
for a few seconds. Each highlight step picks a player uniformly at random, so
the same player can light up twice in a row. After a short pause, the winner
is drawn uniformly at random, independently of the last highlight.`,
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WHOPLAYSFIRST_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origins", nil, "origins allowed to read game state cross-origin (env: WHOPLAYSFIRST_CORS_ORIGINS)")
	fs.DurationVar(&cfg.highlightDuration, "highlight-duration", firstplayer.DefaultHighlightDuration, "how long players are highlighted before the winner is drawn (env: WHOPLAYSFIRST_HIGHLIGHT_DURATION)")
	fs.DurationVar(&cfg.highlightInterval, "highlight-interval", firstplayer.DefaultTickInterval, "time between highlight steps (env: WHOPLAYSFIRST_HIGHLIGHT_INTERVAL)")
	fs.IntVarP(&cfg.players, "players", "n", firstplayer.DefaultPlayers, "default number of players for new games, 2-8 (env: WHOPLAYSFIRST_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WHOPLAYSFIRST_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WHOPLAYSFIRST_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WHOPLAYSFIRST_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle games are ended, 0 to keep forever (env: WHOPLAYSFIRST_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.settleDelay, "settle-delay", firstplayer.DefaultSettleDelay, "pause between the last highlight and the winner (env: WHOPLAYSFIRST_SETTLE_DELAY)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WHOPLAYSFIRST_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WHOPLAYSFIRST_TLS_KEY)")
	fs.Float64Var(&cfg.touchRadius, "touch-radius", firstplayer.DefaultTouchRadius, "minimum distance between two players' fingers, in screen points (env: WHOPLAYSFIRST_TOUCH_RADIUS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WHOPLAYSFIRST_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WHOPLAYSFIRST_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("whoplaysfirst v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
