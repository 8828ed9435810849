package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "chatd").
		Logger()

	args, err := getArgs()
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := defaultConfig()
	if len(args.ConfigFile) > 0 {
		logger.Info().Str("path", args.ConfigFile).Msg("loading configuration")
		cfg, err = loadConfig(args.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration problem: %s\n", err)
			os.Exit(1)
		}
	} else {
		logger.Info().Msg("no configuration file provided, using built-in defaults")
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		server.Stop()
	}()

	if err := server.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info().Msg("server shut down cleanly")
}
