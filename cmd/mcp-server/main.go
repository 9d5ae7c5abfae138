// Package main implements the MCP server for tabtime.
//
// This server exposes the stopwatch, the tracking toggle, usage reports and
// log maintenance as tools over the same store the event host uses.
// Communicates via stdio JSON-RPC (Model Context Protocol).
package main

import (
	"context"
	"log"
	"os"

	"github.com/JamesPrial/tabtime/internal/app"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/logging"
	"github.com/JamesPrial/tabtime/internal/mcpserver"
	"github.com/mark3labs/mcp-go/server"
)

func run() int {
	errLogger := log.New(os.Stderr, "[mcp-server] ", log.LstdFlags)

	cfg, err := config.Resolve()
	if err != nil {
		errLogger.Printf("Failed to load config: %v", err)
		return 1
	}

	a, err := app.Open(cfg, logging.New(cfg.Logging, os.Stderr))
	if err != nil {
		errLogger.Printf("Failed to open store: %v", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			errLogger.Printf("Failed to close: %v", err)
		}
	}()

	ctx := context.Background()
	if err := a.Migrate(ctx); err != nil {
		errLogger.Printf("Failed to migrate store: %v", err)
		return 1
	}
	a.Timer().Attach(ctx)

	srv, err := mcpserver.NewServer(a)
	if err != nil {
		errLogger.Printf("Failed to create MCP server: %v", err)
		return 1
	}

	if err := server.ServeStdio(srv, server.WithErrorLogger(errLogger)); err != nil {
		errLogger.Printf("Server error: %v", err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(run())
}
