package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"askmydocs/app/server"
	"askmydocs/types"
)

func main() {
	// .env is optional; environment variables win either way.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using environment")
	}

	cfg := types.ConfigFromEnv()
	s := server.New(cfg)

	errc := make(chan error, 1)
	go func() {
		errc <- s.Run()
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-sigch:
		slog.Info("shutdown signal received")
		s.Stop()
	}
}
