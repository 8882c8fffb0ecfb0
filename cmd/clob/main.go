package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skuldlabs/clob/internal/host"
)

func main() {
	ignoreErrors := flag.Bool("ignore-errors", false, "skip malformed input records instead of aborting")
	verbose := flag.Bool("verbose", false, "emit debug-level diagnostics to stderr")
	session := flag.String("session", "", "correlation id attached to this run's diagnostics; generated if empty")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := host.NewHost(logger)
	if err := h.Run(ctx, os.Stdin, os.Stdout, *ignoreErrors, *session); err != nil {
		log.Error().Err(err).Msg("aborting on malformed input")
		os.Exit(1)
	}
}
