package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairhome/fairhome/internal/geo"
	"github.com/fairhome/fairhome/internal/listingsync"
	"github.com/fairhome/fairhome/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the listings API server",
	Long: `Starts the HTTP API and the scheduled sync job.

The server exposes listings, neighborhood and ward boundaries, the sync run
log, and a manual sync trigger. The sync job also runs on the configured
cron schedule (daily at midnight by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runner := listingsync.NewRunner(st, newFetcher(), cfg.Sync.SourceURL)
		cache := geo.NewCache(st)

		sched := cron.New()
		_, err = sched.AddFunc(cfg.Sync.Schedule, func() {
			zap.L().Info("scheduled sync starting", zap.String("schedule", cfg.Sync.Schedule))
			runner.Run(ctx)
		})
		if err != nil {
			return eris.Wrapf(err, "parse sync schedule %q", cfg.Sync.Schedule)
		}
		sched.Start()
		defer sched.Stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, runner, cache, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("schedule", cfg.Sync.Schedule),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(st store.Store, runner *listingsync.Runner, cache *geo.Cache, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/listings", func(w http.ResponseWriter, req *http.Request) {
		listings, err := st.ListListings(req.Context())
		if err != nil {
			zap.L().Error("list listings", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch listings"})
			return
		}
		writeJSON(w, http.StatusOK, listings)
	})

	r.Post("/api/sync", func(w http.ResponseWriter, req *http.Request) {
		res := runner.Run(req.Context())
		if res.Err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Sync failed"})
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/api/sync/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context())
		if err != nil {
			zap.L().Error("list sync runs", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch sync runs"})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/geo/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		data, err := cache.Raw(req.Context(), name)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown geo dataset"})
				return
			}
			zap.L().Error("get geo data", zap.String("name", name), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch geo data"})
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		w.Write(data) //nolint:errcheck
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
