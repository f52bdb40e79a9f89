// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command depscope starts the dependency graph viewer server.
//
// Depscope ingests code dependency graphs and serves them
// interactively:
//   - Chunked SSE transport for progressive graph loading
//   - Codebase health analysis (dead code, cycles, orphans)
//   - Change impact estimation (blast radius with risk scoring)
//   - Force-directed layout with a websocket view session
//
// Usage:
//
//	go run ./cmd/depscope
//	go run ./cmd/depscope -port 9090 -log-level debug
//
// Example requests:
//
//	# Create a session
//	curl -X POST http://localhost:8080/v1/sessions
//
//	# Ingest a graph payload
//	curl -X POST http://localhost:8080/v1/sessions/$SID/ingest \
//	  -H "Content-Type: application/json" \
//	  -d '{"nodes": [...], "edges": [...], "complete": true}'
//
//	# Stream it back chunked
//	curl -N http://localhost:8080/v1/sessions/$SID/stream
//
//	# Health report
//	curl http://localhost:8080/v1/sessions/$SID/health | jq
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/depscope/depscope/pkg/logging"
	"github.com/depscope/depscope/services/graphview"
	"github.com/depscope/depscope/services/graphview/telemetry"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "auto", "Log format (auto, text, json)")
	sessionTTL := flag.Duration("session-ttl", 30*time.Minute, "Idle session lifetime")
	maxSessions := flag.Int("max-sessions", 64, "Maximum concurrent sessions")
	chunkSize := flag.Int("chunk-size", 200, "Default nodes per stream chunk")
	flag.Parse()

	logger := logging.Setup(logging.Config{
		Level:   *logLevel,
		Format:  logging.Format(*logFormat),
		Service: "depscope",
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.DefaultConfig())
	if err != nil {
		logger.Error("telemetry init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := graphview.DefaultServiceConfig()
	cfg.SessionTTL = *sessionTTL
	cfg.MaxSessions = *maxSessions
	cfg.ChunkSize = *chunkSize

	svc := graphview.NewService(cfg, logger)
	handlers := graphview.NewHandlers(svc, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	if *debug {
		router.Use(gin.Logger())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// MetricsHandler is nil unless the prometheus exporter is active.
	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}

	v1 := router.Group("/v1")
	graphview.RegisterRoutes(v1, handlers)

	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
		}
		svc.Close()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("starting depscope server", slog.String("address", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
