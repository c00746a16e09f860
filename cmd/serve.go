package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dividalabs/litigio-cli/internal/flags"
	"github.com/dividalabs/litigio-cli/internal/roster"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status and trigger HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initCollector(ctx, cfg, "")
		if err != nil {
			return err
		}
		defer e.Close()

		// Only one collection run at a time.
		var running atomic.Bool

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Use(middleware.RequestID)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"running": running.Load(),
				"run":     e.Collector.Stats(),
				"client":  e.Client.Stats(),
				"caches":  e.Caches.Sizes(),
			})
		})

		r.Get("/flags", func(w http.ResponseWriter, req *http.Request) {
			type row struct {
				Key         string `json:"key"`
				Label       string `json:"label"`
				Description string `json:"description"`
				Color       string `json:"color"`
			}
			table := flags.Table()
			rows := make([]row, len(table))
			for i, f := range table {
				rows[i] = row{f.Key, f.Label, f.Description, f.Color}
			}
			writeJSON(w, http.StatusOK, rows)
		})

		r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"events":  e.Bus.Drain(),
				"dropped": e.Bus.Dropped(),
			})
		})

		r.Post("/collect", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Input string `json:"input"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			input := body.Input
			if input == "" {
				input = cfg.Collect.InputFile
			}
			if input == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
				return
			}
			if !running.CompareAndSwap(false, true) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
				return
			}

			entities, err := roster.Load(input, roster.Options{})
			if err != nil {
				running.Store(false)
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}

			go func() {
				defer running.Store(false)
				sum, err := e.Collector.Run(ctx, entities)
				if err != nil {
					zap.L().Error("triggered run failed", zap.Error(err))
					return
				}
				zap.L().Info("triggered run complete",
					zap.String("run_id", sum.RunID),
					zap.Int("discovered", sum.Run.Discovered),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]any{
				"status":   "accepted",
				"entities": len(entities),
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
