package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qamarero/placesync/internal/customersync"
	"github.com/qamarero/placesync/internal/model"
	"github.com/qamarero/placesync/internal/pipeline"
	"github.com/qamarero/placesync/pkg/metabase"
)

var servePort int

// processRequest is the body of POST /process and /process/stream.
type processRequest struct {
	MaxRecords  int      `json:"maxRecords"`
	DelayMs     int      `json:"delayMs"`
	StopOnError bool     `json:"stopOnError"`
	IDs         []string `json:"ids"`
}

// lastRun remembers the most recent run's stats for GET /stats.
type lastRun struct {
	mu    sync.Mutex
	stats *model.RunStats
}

func (l *lastRun) set(s *model.RunStats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats = s
}

func (l *lastRun) get() *model.RunStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	Long:  "Exposes the enrichment pipeline and the customer sync over HTTP, with batch and NDJSON streaming variants.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		last := &lastRun{}
		log := zap.L().With(zap.String("component", "server"))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/process", func(w http.ResponseWriter, req *http.Request) {
			opts, ok := decodeProcessRequest(w, req)
			if !ok {
				return
			}
			stats, err := rt.pipe.Run(req.Context(), opts, nil)
			last.set(stats)
			if err != nil {
				log.Error("process run failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error": err.Error(),
					"stats": stats,
				})
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})

		r.Post("/process/stream", func(w http.ResponseWriter, req *http.Request) {
			opts, ok := decodeProcessRequest(w, req)
			if !ok {
				return
			}
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)

			sink := pipeline.NewNDJSONSink(w)
			stats, err := rt.pipe.Run(req.Context(), opts, sink)
			last.set(stats)
			if err != nil {
				// The sink already carried an error event; nothing more
				// can be sent on a started stream.
				log.Error("streaming run failed", zap.Error(err))
			}
		})

		r.Post("/sync/customers", func(w http.ResponseWriter, req *http.Request) {
			if err := cfg.Validate("metabase"); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			mb := metabase.NewClient(cfg.Metabase.URL, cfg.Metabase.APIKey,
				metabase.WithTimeout(time.Duration(cfg.Metabase.TimeoutSecs)*time.Second))
			summary, err := customersync.New(mb, rt.store.Pool(), cfg.Metabase.CardID, cfg.Metabase.RowLimit).
				Sync(req.Context())
			if err != nil {
				log.Error("customer sync failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			info, err := collectStatus(req.Context(), rt.store.Pool(), false)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			info.LastRunStats = last.get()
			writeJSON(w, http.StatusOK, info)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		log.Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func decodeProcessRequest(w http.ResponseWriter, req *http.Request) (pipeline.Options, bool) {
	var body processRequest
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return pipeline.Options{}, false
		}
	}
	delay := body.DelayMs
	if delay == 0 {
		delay = -1 // fall back to config
	}
	return pipelineOptions(cfg.Pipeline, body.MaxRecords, delay, body.StopOnError, body.IDs), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
