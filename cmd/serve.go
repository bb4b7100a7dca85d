package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/monitoring"
	"github.com/sells-group/rolescout/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		// Health checker posts alerts to the configured webhook.
		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIRouter(st, cfg.Monitoring.LookbackWindowHours),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newAPIRouter builds the read-only HTTP API over the store.
func newAPIRouter(st store.Store, lookbackHours int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	collector := monitoring.NewCollector(st)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			Status: model.RunStatus(req.URL.Query().Get("status")),
			Limit:  queryInt(req, "limit", 50),
			Offset: queryInt(req, "offset", 0),
		}
		runs, err := st.ListRuns(req.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if run == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/roles", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RoleFilter{
			Tier:      model.Tier(req.URL.Query().Get("tier")),
			Lifecycle: model.LifecycleStatus(req.URL.Query().Get("status")),
			Limit:     queryInt(req, "limit", 100),
			Offset:    queryInt(req, "offset", 0),
		}
		if filter.Tier != "" && !filter.Tier.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown tier"})
			return
		}
		if filter.Lifecycle != "" && !filter.Lifecycle.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown lifecycle status"})
			return
		}
		roles, err := st.ListRoles(req.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	})

	r.Get("/api/roles/{externalID}", func(w http.ResponseWriter, req *http.Request) {
		role, err := st.GetRoleByExternalID(req.Context(), chi.URLParam(req, "externalID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if role == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "role not found"})
			return
		}
		writeJSON(w, http.StatusOK, role)
	})

	r.Get("/api/roles/{externalID}/changes", func(w http.ResponseWriter, req *http.Request) {
		role, err := st.GetRoleByExternalID(req.Context(), chi.URLParam(req, "externalID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if role == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "role not found"})
			return
		}
		events, err := st.ListChangeEvents(req.Context(), store.ChangeFilter{
			RoleID: role.ID,
			Limit:  queryInt(req, "limit", 100),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"changes": events})
	})

	r.Get("/api/metrics", func(w http.ResponseWriter, req *http.Request) {
		snap, err := collector.Collect(req.Context(), lookbackHours)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func queryInt(req *http.Request, key string, def int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
