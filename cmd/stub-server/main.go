// Command stub-server serves the HTTP transcription backend protocol with a
// fixed transcript, for trying the transcriber without a model.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/speech-transcriber/internal/server"
)

func main() {
	address := flag.String("address", "127.0.0.1", "Listen address")
	port := flag.Int("port", 9000, "Listen port")
	text := flag.String("text", "This is a test transcription of an audio chunk.", "Text returned for every chunk")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	stub := server.NewStubServer(server.Config{Address: *address, Port: *port, Text: *text}, logger)
	if err := stub.Start(); err != nil {
		logger.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Point the http backend at this endpoint",
		slog.String("endpoint", "/transcribe"),
		slog.Int("port", *port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stub.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping server", slog.String("error", err.Error()))
	}
}
