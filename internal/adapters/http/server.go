// Package httpadapter exposes the fine, sector and fleet services over a
// JSON HTTP API.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Fines    ports.Fines
	Syncer   ports.Syncer
	Jobs     ports.JobRepository
	History  ports.SectorHistory
	Reports  ports.SectorReports
	Fleet    ports.FleetImporter
	DB       Pinger
	Location *time.Location
	Log      logrus.FieldLogger
	// SyncTimeout bounds a blocking sync request when the caller sets none.
	SyncTimeout time.Duration
}

type Server struct {
	fines       ports.Fines
	syncer      ports.Syncer
	jobs        ports.JobRepository
	history     ports.SectorHistory
	reports     ports.SectorReports
	fleet       ports.FleetImporter
	db          Pinger
	loc         *time.Location
	log         logrus.FieldLogger
	syncTimeout time.Duration
}

func New(o Options) *Server {
	loc := o.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := o.SyncTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		fines:       o.Fines,
		syncer:      o.Syncer,
		jobs:        o.Jobs,
		history:     o.History,
		reports:     o.Reports,
		fleet:       o.Fleet,
		db:          o.DB,
		loc:         loc,
		log:         o.Log.WithField("component", "http"),
		syncTimeout: timeout,
	}
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", s.healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/multas", func(r chi.Router) {
			r.Get("/", s.searchFines)
			r.Post("/search", s.searchFinesBody)
			r.Post("/sync", s.forceSync)
			r.Get("/sync/jobs/{id}", s.syncJob)
			r.Get("/sync/runs", s.syncRuns)
			r.Get("/cache/stats", s.cacheStats)
			r.Delete("/cache", s.purgeCache)
			r.Get("/alertas-defesa", s.defenseAlerts)
			r.Get("/dashboard", s.dashboard)
			r.Post("/comparar", s.comparePeriods)
			r.Get("/{numero}", s.getFine)
			r.Get("/{numero}/validacao", s.validateFine)
		})
		r.Route("/setores", func(r chi.Router) {
			r.Post("/mudancas", s.registerChange)
			r.Post("/inicializar", s.initializeSectors)
			r.Post("/sincronizar", s.detectDrift)
			r.Delete("/historico", s.purgeSectorHistory)
			r.Get("/estatisticas", s.sectorStats)
			r.Get("/impacto", s.changeImpact)
			r.Get("/multas-historico", s.historicalFines)
			r.Get("/multas-atual", s.currentSectorFines)
			r.Get("/comparacao", s.compareSectors)
			r.Get("/veiculos", s.vehiclesInSector)
			r.Get("/{veiculo}/as-of", s.sectorAsOf)
			r.Get("/{veiculo}/atual", s.currentSector)
			r.Get("/{veiculo}/historico", s.vehicleHistory)
		})
		r.Post("/frota/sync", s.syncFleet)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"elapsed":    time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps service errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIntervalOverlap):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("%w: missing body", domain.ErrInvalidInput)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
