package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"tailcast/internal/api"
	"tailcast/internal/logging"
	"tailcast/internal/tail"
	"tailcast/internal/version"
	"tailcast/internal/watcher"
)

func runServer(args []string) int {
	cfg, err := loadConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "tailcast: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'tailcast --help' for usage.")
		return 1
	}
	if cfg.ShowVersion {
		fmt.Fprintln(os.Stdout, version.String())
		return 0
	}

	logBuffer := logging.NewBuffer(logging.DefaultBufferSize)
	logger := logging.New(logBuffer, cfg.LogLevel)
	logStartupConfig(logger, cfg)

	root, err := os.Getwd()
	if err != nil {
		logger.Error("resolve working directory failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logger.Error("listen failed", map[string]string{
			"port":  strconv.Itoa(cfg.Port),
			"error": err.Error(),
		})
		return 1
	}

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	ctx, stop := signalContext(context.Background(), logger, signalCh)
	defer stop()

	if err := serve(ctx, cfg, root, logger, listener); err != nil {
		logger.Error("tailcast stopped", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	return 0
}

// serve runs the tail engine, the directory watcher and the HTTP server on
// listener until ctx is cancelled or the server fails.
func serve(ctx context.Context, cfg Config, root string, logger *logging.Logger, listener net.Listener) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("resolve root: %w", err)
	}

	engine := tail.NewEngine(tail.Options{
		Root:    absRoot,
		Logger:  logger,
		CatchUp: cfg.CatchUp,
	})
	engineCtx, stopEngine := context.WithCancel(context.Background())
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(engineCtx)
	}()

	dirWatcher, err := watcher.New(absRoot, func(event watcher.Event) {
		engine.NotifyChanged(event.Path)
	}, watcher.Options{
		Logger:   logger,
		Debounce: cfg.Debounce,
		ErrorHandler: func(err error) {
			logger.Error("directory watch lost", map[string]string{
				"path":  absRoot,
				"error": err.Error(),
			})
		},
	})
	if err != nil {
		stopEngine()
		<-engineDone
		_ = listener.Close()
		return fmt.Errorf("watch %s: %w", absRoot, err)
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.RouteOptions{
		Engine:         engine,
		Root:           absRoot,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		WatcherMetrics: dirWatcher.Metrics,
	})
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("tailcast listening", map[string]string{
		"addr":     listener.Addr().String(),
		"root":     absRoot,
		"catch_up": strconv.FormatBool(cfg.CatchUp),
		"version":  version.String(),
	})

	lifecycle := &runner{logger: logger, stopTimeout: defaultStopTimeout}
	runErr := lifecycle.run(ctx, component{
		name: "http",
		serve: func() error {
			return server.Serve(listener)
		},
		stop: server.Shutdown,
	}, component{
		name: "watcher",
		stop: func(context.Context) error {
			return dirWatcher.Close()
		},
	}, component{
		name: "tail engine",
		stop: func(stopCtx context.Context) error {
			stopEngine()
			select {
			case err := <-engineDone:
				return err
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})

	logger.Info("tailcast stopped", nil)
	return runErr
}
