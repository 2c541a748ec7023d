package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/patrikhermansson/ssg/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main sets up console logging and runs the CLI. The log level comes from
// DEBUG_SSG (see core/log_config.go). The first interrupt cancels the running
// command between work chunks, a second one exits immediately.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := make(chan os.Signal, 2)
	signal.Notify(stopChan, os.Interrupt)
	go listenForInterrupt(stopChan, cancel)

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("ssg failed")
	}
}

// listenForInterrupt cancels the command on the first interrupt signal and
// exits the program on the second.
func listenForInterrupt(stopChan chan os.Signal, cancel context.CancelFunc) {
	<-stopChan
	log.Warn().Msg("Interrupt signal received. Stopping...")
	cancel()
	<-stopChan
	log.Fatal().Msg("Interrupt signal received. Exiting...")
}
