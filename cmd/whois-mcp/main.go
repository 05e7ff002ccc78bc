package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rirtools/whois-mcp/internal/config"
	"github.com/rirtools/whois-mcp/internal/engine"
	"github.com/rirtools/whois-mcp/internal/mcp"
)

func main() {
	cfg := config.FromEnv()

	listenAddr := flag.String("listen", cfg.ListenAddr, "HTTP listen address")
	stdio := flag.Bool("stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	// On stdio, stdout belongs to the protocol; logs go to stderr either way.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := engine.New(cfg, logger)
	srv := mcp.NewServer(eng, logger)

	if *stdio {
		logger.Info("serving MCP over stdio")
		if err := srv.RunStdio(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("stdio transport: %v", err)
		}
		return
	}

	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving MCP over HTTP", "addr", *listenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server: %v", err)
	}
}
