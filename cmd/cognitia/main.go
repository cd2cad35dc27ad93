package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabbricca/cognitia/internal/call"
	"github.com/fabbricca/cognitia/internal/config"
	"github.com/fabbricca/cognitia/internal/httpserver"
	"github.com/fabbricca/cognitia/internal/playback"
	"github.com/fabbricca/cognitia/internal/transport"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	sess := transport.NewSession(cfg.ServerURL, cfg.AuthToken).
		WithReconnect(cfg.MaxReconnects, cfg.ReconnectDelay)

	sink := playback.NewFFPlaySink(cfg.FFPlayPath)
	queue := playback.NewQueue(sink)

	src := call.NewExecSource(cfg.MicCommand, cfg.Tuning.FrameSamples())

	meter := &httpserver.MeterStore{}
	ctrl := call.NewController(src, sess, queue, cfg.Tuning, call.Options{
		ChatID:      cfg.ChatID,
		CharacterID: cfg.CharacterID,
		OwnsSource:  true,
		Status:      meter.Update,
	})

	srv := httpserver.New(func() httpserver.Stats {
		return httpserver.Stats{
			TransportState: sess.State().String(),
			UtterancesSent: ctrl.UtterancesSent(),
			ItemsPlayed:    queue.Played(),
		}
	}, meter)

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("status server listening on %s", cfg.HTTPAddress)
		serverErrors <- srv.Start(cfg.HTTPAddress)
	}()

	if err := sess.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	callErrors := make(chan error, 1)
	go func() { callErrors <- ctrl.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	callDone := false
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("status server error: %v", err)
		}
	case err := <-callErrors:
		callDone = true
		if err != nil {
			log.Printf("call ended with error: %v", err)
		} else {
			log.Printf("call ended")
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	cancel()
	if !callDone {
		select {
		case <-callErrors:
		case <-time.After(5 * time.Second):
			log.Printf("call teardown timed out")
		}
	}
	sess.Disconnect()
	_ = sink.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Echo.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = srv.Echo.Close()
	}
}
