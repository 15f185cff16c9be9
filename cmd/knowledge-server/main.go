// Package main JOKARI Knowledge Hub API Server
//
//	@title			JOKARI Knowledge Hub API
//	@version		1.0
//	@description	Internal knowledge base: document ingestion, structured extraction, moderated review and search
//
//	@host		localhost:8080
//	@BasePath	/
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathmn/jokari-knowledge-hub/internal/config"
	"github.com/fathmn/jokari-knowledge-hub/internal/server"
)

func main() {
	logger := log.New(os.Stdout, "[MAIN] ", log.LstdFlags)

	cfg := config.Load(logger)

	srv, err := server.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Printf("Received %s, shutting down", sig)
	case err := <-errChan:
		if err != nil {
			logger.Printf("Server stopped: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Shutdown error: %v", err)
	}
}
