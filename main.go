/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	releaseVersion = "1.0.0"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: logDate}).
		With().
		Timestamp().
		Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	loadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(ctx))
}

// loadEnvFile pulls variables from a .env file (or WHOPLAYSFIRST_ENV_FILE)
// into the environment so the flag bindings below can see them.
func loadEnvFile() {
	path := os.Getenv("WHOPLAYSFIRST_ENV_FILE")
	if path == "" {
		path = ".env"
	}

	err := godotenv.Load(path)
	switch {
	case err == nil:
		log.Info().Str("path", path).Msg("loaded environment file")
	case errors.Is(err, fs.ErrNotExist):
	default:
		log.Warn().Err(err).Str("path", path).Msg("could not load environment file")
	}
}
