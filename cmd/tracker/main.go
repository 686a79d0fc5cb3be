// cmd/tracker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"application-tracker/internal/common/config"
	"application-tracker/internal/common/database"
	"application-tracker/internal/common/logger"
	"application-tracker/internal/common/observability"
	"application-tracker/internal/remote"
	"application-tracker/internal/session"
	"application-tracker/internal/storage"
	"application-tracker/internal/tracker"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("tracker", flag.ContinueOnError)
	configPath := global.String("config", "", "path to a config file (default: search configs/, ., user config dir)")
	ephemeral := global.Bool("ephemeral", false, "keep applications in memory only")
	offline := global.Bool("offline", false, "do not talk to the remote API")
	global.Usage = func() { usage(global) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(global)
		return 2
	}

	// Flags feed viper through the environment so validation sees them.
	if *ephemeral {
		os.Setenv("STORAGE_DRIVER", "memory")
	}
	if *offline {
		os.Setenv("SYNC_ENABLED", "false")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		return 1
	}

	zapLog, err := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.App.Version, cfg.Telemetry.JaegerEndpoint)
	if err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			zapLog.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	obs := observability.New(cfg.Telemetry.ServiceName, nil)
	defer obs.Shutdown()

	// --- Durable storage with retry ---
	var st storage.Storage
	err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		st, err = storage.Open(ctx, cfg.Storage)
		return err
	}, 3, time.Second, log, "Storage connection")
	if err != nil {
		zapLog.Error("storage unavailable", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
		return 1
	}
	defer st.Close()

	opts := []tracker.Option{
		tracker.WithStorageKey(cfg.Storage.Key),
		tracker.WithObservability(obs),
		tracker.WithPersistFailureHandler(func(err error) {
			zapLog.Fatal("durable storage write failed, local state would diverge from disk", zap.Error(err))
		}),
	}
	if cfg.Sync.StrictTransitions {
		opts = append(opts, tracker.WithTransitionPolicy(tracker.StrictTransitions()))
	}

	var queue *tracker.SyncQueue
	if cfg.Sync.Enabled {
		client := remote.NewClient(cfg.API, log.With(map[string]interface{}{"component": "remote"}),
			remote.WithTracer(observability.GetTracer(cfg.Telemetry.ServiceName)))
		queue = tracker.NewSyncQueue(client, log.With(map[string]interface{}{"component": "sync"}),
			tracker.WithRequestTimeout(config.GetDuration(cfg.Sync.RequestTimeout)),
			tracker.WithQueueObservability(obs),
		)
		opts = append(opts, tracker.WithSyncQueue(queue))
	}

	store := tracker.New(st, log.With(map[string]interface{}{"component": "store"}), opts...)
	if err := store.Load(ctx); err != nil {
		// Carrying on would overwrite the unreadable snapshot on the next mutation.
		zapLog.Error("cannot load applications", zap.Error(err))
		return 1
	}

	if queue != nil {
		queue.Start(ctx)
		defer queue.Stop()
	}

	if cfg.Telemetry.MetricsAddr != "" {
		srv := startHealthServer(cfg.Telemetry.MetricsAddr, store, zapLog)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	interp := session.NewInterpreter(store, log)
	cmdArgs := global.Args()

	code := 0
	if cmdArgs[0] == "session" {
		if queue != nil && cfg.Sync.FetchOnStart {
			if err := store.FetchAll(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "warning: using local data, fetch failed: %v\n", err)
				store.ClearError()
			}
		}
		if err := interp.Run(ctx, os.Stdin, os.Stdout, "tracker> "); err != nil && !errors.Is(err, context.Canceled) {
			zapLog.Error("session ended with error", zap.Error(err))
			code = 1
		}
	} else if err := interp.Execute(ctx, cmdArgs, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		code = 1
		if errors.Is(err, session.ErrUsage) {
			code = 2
		}
	}

	if queue != nil {
		drainQueue(queue, config.GetDuration(cfg.Sync.DrainTimeout), zapLog)
	}
	interp.Notices(os.Stderr)
	return code
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// drainQueue gives queued sync tasks a bounded chance to finish before exit.
func drainQueue(q *tracker.SyncQueue, timeout time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := q.Drain(ctx); err != nil {
		log.Warn("exiting with unsynced changes",
			zap.Int("pending", q.Len()),
			zap.Error(err),
		)
	}
	if failed := q.Failed(); len(failed) > 0 {
		log.Warn("some changes were not synced to the remote API",
			zap.Int("failed", len(failed)),
		)
	}
}

func startHealthServer(addr string, store *tracker.Store, log *zap.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newHealthMux(store), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func newHealthMux(store *tracker.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ready", http.StatusOK
		if store.Loading() {
			status, code = "loading", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   status,
			"revision": store.Revision(),
			"time":     time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "Usage: tracker [global flags] <command> [command flags] [args]")
	fmt.Fprintln(out, "\nGlobal flags:")
	fs.PrintDefaults()
	fmt.Fprintln(out, "\nCommands:")
	fmt.Fprintln(out, "  session   read commands from stdin, one per line")
	session.PrintCommands(out)
}
