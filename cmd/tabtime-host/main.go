// Package main implements tabtime-host, the long-running event host.
//
// The browser-side bridge writes one JSON message per line to stdin: tab
// and window events, lifecycle hooks and commands. The host applies each
// one and writes exactly one JSON response line to stdout. Diagnostics go
// to stderr.
//
// Exit codes:
//   - 0: stdin reached EOF or the process was interrupted
//   - 1: startup failure or unreadable input stream
//
// Environment variables:
//   - TABTIME_CONFIG: Optional. Path of the YAML config file.
//   - TABTIME_STORAGE_BACKEND: Optional. "json" (default), "sqlite", "postgres" or "memory".
//   - TABTIME_DATA_DIR: Optional. Directory holding the JSON and SQLite stores.
//   - TABTIME_JSON_PATH / TABTIME_SQLITE_PATH: Optional. Store file names inside the data dir.
//   - TABTIME_POSTGRES_URL: Required for the postgres backend.
//   - TABTIME_LOG_LEVEL: Optional. debug, info, warn or error.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/JamesPrial/tabtime/internal/app"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/hook"
	"github.com/JamesPrial/tabtime/internal/logging"
)

// maxMessageBytes bounds a single input line; window snapshots can be large.
const maxMessageBytes = 4 * 1024 * 1024

// run contains the main logic, returning an exit code.
//
// Process flow:
//  1. Resolve config and open the store
//  2. Apply pending migrations and recover timer and tab state
//  3. Answer every stdin line with one stdout line
//  4. On EOF or cancellation, close the current session and exit
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) int {
	errLogger := log.New(stderr, "[tabtime-host] ", log.LstdFlags)

	cfg, err := config.Resolve()
	if err != nil {
		errLogger.Printf("Failed to load config: %v", err)
		return 1
	}
	logger := logging.New(cfg.Logging, stderr)

	a, err := app.Open(cfg, logger)
	if err != nil {
		errLogger.Printf("Failed to start: %v", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			errLogger.Printf("Failed to close: %v", err)
		}
	}()

	if err := a.Migrate(ctx); err != nil {
		logger.Error("migration failed", "err", err)
	}
	a.Startup(ctx)
	defer a.Shutdown(context.Background())

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 64*1024), maxMessageBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	enc := json.NewEncoder(stdout)
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, shutting down")
			return 0
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					errLogger.Printf("Failed to read input: %v", err)
					return 1
				}
				logger.Debug("input closed")
				return 0
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := enc.Encode(respond(ctx, a, line)); err != nil {
				errLogger.Printf("Failed to write response: %v", err)
				return 1
			}
		}
	}
}

func respond(ctx context.Context, a *app.App, line []byte) hook.Response {
	msg, err := hook.ReadMessage(line)
	if err != nil {
		return hook.Fail(msg, err)
	}
	return a.Handle(ctx, msg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
