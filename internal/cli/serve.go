package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mahendra/kerani/internal/config"
	"github.com/mahendra/kerani/internal/logger"
	"github.com/mahendra/kerani/internal/metrics"
	"github.com/mahendra/kerani/pkg/gateway"
	"github.com/mahendra/kerani/pkg/launcher"
	"github.com/mahendra/kerani/pkg/session"
	"github.com/mahendra/kerani/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session manager daemon",
	Long: `Starts the session registry, the HTTP gateway and the archive janitor,
and runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()

	m := metrics.NewMetrics()

	registry := session.New(
		launcher.NewShellLauncher(cfg.Sessions.Shell),
		session.Config{
			ArchiveCapacity: cfg.Sessions.ArchiveCapacity,
			TerminateGrace:  cfg.Sessions.TerminateGrace(),
		},
		m,
	)

	handler, err := tools.NewHandler(registry, tools.Options{
		DefaultStartTimeout: cfg.Sessions.StartTimeout(),
		DefaultReadTimeout:  cfg.Sessions.ReadTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create tools handler: %w", err)
	}

	janitor, err := session.NewJanitor(registry, cfg.Sessions.JanitorSchedule, cfg.Sessions.ArchiveRetention())
	if err != nil {
		return fmt.Errorf("failed to create janitor: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		gw, err = gateway.NewServer(gateway.Config{
			Addr:     cfg.Gateway.Addr,
			Tools:    handler,
			Registry: registry,
			Metrics:  m.Handler(),
		})
		if err != nil {
			return fmt.Errorf("failed to create gateway: %w", err)
		}
		if err := gw.Start(); err != nil {
			return fmt.Errorf("failed to start gateway: %w", err)
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: m.Handler()}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	// Hot-reload the log level on config changes.
	watcher, err := config.NewWatcher(loader, func(next *config.Config) {
		if err := appLogger.SetLevel(next.Logging.Level); err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid log level from reloaded config")
		}
	})
	if err == nil {
		if err := watcher.Start(); err != nil {
			log.Debug().Err(err).Msg("Config watcher not started")
		} else {
			defer watcher.Stop()
		}
	}

	log.Info().Str("version", version).Msg("Kerani daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if gw != nil {
		if err := gw.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Gateway shutdown error")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics shutdown error")
		}
	}

	return nil
}
