package httpadapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"juridico/internal/domain"
	"juridico/internal/workers/syncrunner"
)

func (s *Server) searchFines(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.fines.Search(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) searchFinesBody(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.filterFromBody(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.fines.Search(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type syncResponse struct {
	JobID     string             `json:"jobId"`
	Resultado *domain.SyncResult `json:"resultado,omitempty"`
}

// forceSync queues a refresh of the given period. With wait=true the request
// waits for the refresh up to the configured sync timeout, then falls back to
// answering with the job id like the queued form.
func (s *Server) forceSync(w http.ResponseWriter, r *http.Request) {
	var body dateRangeBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	rng, err := s.rangeOf(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var wait bool
	if err := bindQuery(r.URL.Query(), optional("wait", &wait)); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !wait {
		id, err := s.jobs.EnqueueSync(r.Context(), rng)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, syncResponse{JobID: id})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.syncTimeout)
	defer cancel()
	id, res, err := syncrunner.ProcessInline(ctx, s.jobs, s.syncer, rng, s.log)
	if err != nil && id != "" && ctx.Err() != nil {
		// the job keeps running; its status is at /sync/jobs/{id}
		writeJSON(w, http.StatusAccepted, syncResponse{JobID: id})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{JobID: id, Resultado: &res})
}

func (s *Server) syncJob(w http.ResponseWriter, r *http.Request) {
	st, err := s.jobs.JobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) syncRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if err := bindQuery(r.URL.Query(), optional("limit", &limit)); err != nil {
		s.writeError(w, r, err)
		return
	}
	runs, err := s.fines.SyncRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.fines.CacheStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) purgeCache(w http.ResponseWriter, r *http.Request) {
	var days int
	if err := bindQuery(r.URL.Query(), optional("dias", &days)); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.fines.Purge(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removidos": n})
}

func (s *Server) defenseAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.fines.DefenseAlerts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.fines.Dashboard(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type compareBody struct {
	Periodo1 dateRangeBody `json:"periodo1"`
	Periodo2 dateRangeBody `json:"periodo2"`
}

func (s *Server) comparePeriods(w http.ResponseWriter, r *http.Request) {
	var body compareBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.rangeOf(body.Periodo1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.rangeOf(body.Periodo2)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cmp, err := s.fines.ComparePeriods(r.Context(), a, b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) getFine(w http.ResponseWriter, r *http.Request) {
	numero := strings.TrimSpace(chi.URLParam(r, "numero"))
	f, err := s.fines.FindByNumber(r.Context(), numero)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if f == nil {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) validateFine(w http.ResponseWriter, r *http.Request) {
	v, err := s.fines.Validate(r.Context(), strings.TrimSpace(chi.URLParam(r, "numero")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

