// Command server runs the HTTP template engine: it loads the process
// configuration and template document, publishes a Registry, and serves the
// resolve/list/get/reload/metrics/healthz routes until signalled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/luiscnext/secure-terminal-execution-server/internal/logging"
	"github.com/luiscnext/secure-terminal-execution-server/internal/metrics"
	"github.com/luiscnext/secure-terminal-execution-server/internal/procconfig"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/audit"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/config"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/registry"
	"github.com/luiscnext/secure-terminal-execution-server/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to process configuration file (TOML)")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("config file path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := procconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	reg, err := config.Load(cfg.Templates.Path, cfg.Templates.DefaultSandboxImage)
	if err != nil {
		logger.Error("failed to load template document", slog.Any("error", err))
		os.Exit(1)
	}
	store := registry.NewStore(reg)
	logger.Info("templates loaded", slog.Int("count", reg.Len()))

	auditLogger := newAuditLogger(cfg.Audit.LogPath, logger)
	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)
	recorder.ObserveReload(true, reg.Len())

	svc := server.NewService(store, cfg.Templates.Path, cfg.Templates.DefaultSandboxImage, auditLogger, recorder, logger)

	watcher, err := watchTemplates(ctx, svc, cfg.Templates.Path, logger)
	if err != nil {
		logger.Warn("template hot-reload disabled", slog.Any("error", err))
	} else {
		defer watcher.Close()
	}

	router := server.NewRouter(svc, recorder.Handler())
	srv, err := server.New(cfg.Server.ListenAddr, logger, router)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// buildLogger constructs the process logger: JSON to stderr, wrapped in the
// credential-redacting handler so a misconfigured template's command string
// never leaks a secret-looking value into the logs verbatim.
func buildLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	redacting := logging.NewRedactingHandler(base, nil)
	return slog.New(redacting), nil
}

// newAuditLogger builds the audit logger. When a dedicated audit log path is
// configured, records fan out to both stderr and that file via MultiHandler;
// otherwise audit records ride on the process logger alone.
func newAuditLogger(auditPath string, processLogger *slog.Logger) *audit.Logger {
	if auditPath == "" {
		return audit.NewLoggerWithCustom(processLogger)
	}

	opener := logging.NewSafeFileOpener()
	file, err := opener.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		processLogger.Warn("audit log file unavailable, falling back to process logger", slog.Any("error", err))
		return audit.NewLoggerWithCustom(processLogger)
	}

	fileHandler := slog.NewJSONHandler(file, nil)
	combined := logging.NewMultiHandler(processLogger.Handler(), fileHandler)
	return audit.NewLoggerWithCustom(slog.New(combined))
}

// watchTemplates watches the template document's directory and triggers a
// Reload whenever it changes, so an operator editing the YAML document on
// disk doesn't have to know about the admin reload endpoint.
func watchTemplates(ctx context.Context, svc *server.Service, templatePath string, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(templatePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(templatePath) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := svc.Reload(ctx); err != nil {
					logger.Error("template hot-reload failed", slog.Any("error", err))
					continue
				}
				logger.Info("templates reloaded from file change")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("template watcher error", slog.Any("error", err))
			}
		}
	}()

	return watcher, nil
}
