package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/claude/healthmerge/internal/config"
	"github.com/claude/healthmerge/internal/importer"
	"github.com/claude/healthmerge/internal/mcp"
	"github.com/claude/healthmerge/internal/server"
	"github.com/claude/healthmerge/internal/storage"
	"github.com/claude/healthmerge/internal/watch"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve MCP over stdio against a remote server instead of starting the HTTP server")
	remote := flag.String("remote", "", "healthmerge server URL used by -mcp-stdio")
	flag.Parse()

	if *mcpStdio {
		runStdio(*remote)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := slog.New(slog.NewTextHandler(os.Stderr, nil))
		bootLog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()}))
	log.Info("healthmerge starting", "version", Version, "storage", cfg.Storage.Driver)

	if cfg.Storage.Driver == storage.DriverPostgres {
		if err := storage.RunMigrations(cfg.Storage.Target(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}
	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Target(), cfg.Storage.Namespace)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	log.Info("storage opened")

	repo := storage.NewRepository(backend, log)
	imp := importer.New(repo, log, false)

	srv := server.New(repo, imp, server.StatsDefaults{
		Mode:     cfg.Stats.Mode(),
		Weekend:  cfg.Stats.Weekend(),
		Window:   cfg.Stats.RollingWindowDays,
		SourceID: cfg.Import.SourceID,
	}, cfg.Auth.APIKey, log)

	mcpSrv := mcp.New(repo, mcp.Defaults{
		Mode:    cfg.Stats.Mode(),
		Weekend: cfg.Stats.Weekend(),
		Window:  cfg.Stats.RollingWindowDays,
	}, Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	if cfg.Import.WatchDir != "" {
		w, err := watch.New(cfg.Import.WatchDir, 2*time.Second, func(ctx context.Context, path string) error {
			_, err := imp.Import(ctx, path, cfg.Import.SourceID)
			return err
		}, log)
		if err != nil {
			log.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warn("watcher stopped", "error", err)
			}
		}()
	}

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}
	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// runStdio serves the MCP tools over stdin/stdout, reading data from a
// running healthmerge server. Logs go to stderr; stdout carries the protocol.
func runStdio(remote string) {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if remote == "" {
		remote = os.Getenv("HEALTHMERGE_REMOTE")
	}
	if remote == "" {
		fmt.Fprintf(os.Stderr, "Usage: healthmerge -mcp-stdio -remote <URL>\n")
		os.Exit(1)
	}

	// Defaults and env only; the remote server owns the real config.
	cfg, err := config.Load("")
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	ds := mcp.NewHTTPClient(remote, cfg.Auth.APIKey)
	mcpSrv := mcp.New(ds, mcp.Defaults{
		Mode:    cfg.Stats.Mode(),
		Weekend: cfg.Stats.Weekend(),
		Window:  cfg.Stats.RollingWindowDays,
	}, Version, log)

	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		log.Error("stdio server failed", "error", err)
		os.Exit(1)
	}
}
