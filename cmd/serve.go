package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/research"
	"github.com/sells-group/vendor-research/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vendor research API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{env: env}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(ctx),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	env *env
}

// router wires the HTTP API. queueCtx outlives individual requests; queued
// job processing runs under it so in-flight jobs survive request teardown.
func (s *apiServer) router(queueCtx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/vendors", func(r chi.Router) {
		r.Post("/", s.createVendor)
		r.Get("/", s.listVendors)
		r.Route("/{vendorID}", func(r chi.Router) {
			r.Post("/research", s.requestResearch(queueCtx))
			r.Get("/research", s.listResearch)
			r.Get("/research/{researchID}", s.getResearch)
		})
	})

	return r
}

func (s *apiServer) createVendor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyName string `json:"company_name"`
		Website     string `json:"website"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		writeError(w, http.StatusBadRequest, "company_name is required")
		return
	}

	vendor, err := s.env.Store.CreateVendor(r.Context(), &model.Vendor{
		CompanyName: strings.TrimSpace(req.CompanyName),
		Website:     strings.TrimSpace(req.Website),
		IsActive:    true,
	})
	if err != nil {
		zap.L().Error("api: create vendor failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create vendor failed")
		return
	}
	writeJSON(w, http.StatusCreated, vendor)
}

func (s *apiServer) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.env.Store.ListVendors(r.Context())
	if err != nil {
		zap.L().Error("api: list vendors failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list vendors failed")
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}

// requestResearch records a pending job and hands it to the queue. The 202
// body carries the job so callers can poll it by ID.
func (s *apiServer) requestResearch(queueCtx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID := chi.URLParam(r, "vendorID")

		job, err := s.env.Orchestrator.CreateResearchRequest(r.Context(), vendorID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "vendor not found")
				return
			}
			zap.L().Error("api: create research failed", zap.String("vendor_id", vendorID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create research failed")
			return
		}

		s.env.Queue.Enqueue(queueCtx, job.ID)
		writeJSON(w, http.StatusAccepted, job)
	}
}

func (s *apiServer) listResearch(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")

	jobs, err := s.env.Orchestrator.ListResearchForVendor(r.Context(), vendorID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vendor not found")
			return
		}
		zap.L().Error("api: list research failed", zap.String("vendor_id", vendorID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list research failed")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *apiServer) getResearch(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")
	researchID := chi.URLParam(r, "researchID")

	job, err := s.env.Orchestrator.GetResearchByID(r.Context(), vendorID, researchID)
	if err != nil {
		switch {
		case eris.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "research not found")
		case eris.Is(err, research.ErrVendorMismatch):
			writeError(w, http.StatusBadRequest, "research does not belong to vendor")
		default:
			zap.L().Error("api: get research failed", zap.String("research_id", researchID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get research failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
