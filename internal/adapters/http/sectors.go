package httpadapter

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime/types"

	"juridico/internal/domain"
)

type changeBody struct {
	PrefixoVeiculo string        `json:"prefixoVeiculo"`
	CodigoEmpresa  int           `json:"codigoEmpresa"`
	SetorNovo      domain.Sector `json:"setorNovo"`
	DataMudanca    types.Date    `json:"dataMudanca"`
	Motivo         string        `json:"motivo"`
	Observacoes    string        `json:"observacoes"`
	Usuario        string        `json:"usuarioAlteracao"`
}

func (s *Server) registerChange(w http.ResponseWriter, r *http.Request) {
	var body changeBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch := domain.SectorChange{
		VehicleID:     body.PrefixoVeiculo,
		CodigoEmpresa: body.CodigoEmpresa,
		Para:          body.SetorNovo,
		Motivo:        body.Motivo,
		Observacoes:   body.Observacoes,
		Usuario:       body.Usuario,
	}
	if !body.DataMudanca.IsZero() {
		ch.DataMudanca = dayIn(body.DataMudanca, s.loc)
	}
	iv, err := s.history.RegisterChange(r.Context(), ch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

func (s *Server) initializeSectors(w http.ResponseWriter, r *http.Request) {
	res, err := s.history.InitializeFromFleet(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) detectDrift(w http.ResponseWriter, r *http.Request) {
	res, err := s.history.DetectDrift(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) purgeSectorHistory(w http.ResponseWriter, r *http.Request) {
	var days int
	if err := bindQuery(r.URL.Query(), optional("dias", &days)); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.history.Purge(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removidos": n})
}

func (s *Server) sectorStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.history.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) changeImpact(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.reports.ChangeImpactReport(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) historicalFines(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.reports.SearchWithHistoricalSector(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) currentSectorFines(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.reports.SearchWithCurrentSector(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) compareSectors(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cmp, err := s.reports.CompareSectors(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// vehiclesInSector lists vehicles that held setor at any point of the period.
func (s *Server) vehiclesInSector(w http.ResponseWriter, r *http.Request) {
	var (
		setor       int
		inicio, fim types.Date
	)
	err := bindQuery(r.URL.Query(),
		required("setor", &setor),
		required("dataInicio", &inicio),
		required("dataFim", &fim),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// the whole final day counts
	until := dayIn(fim, s.loc).Add(24*time.Hour - time.Nanosecond)
	ids, err := s.history.VehiclesInSectorDuring(r.Context(), setor, dayIn(inicio, s.loc), until)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"setor": setor, "veiculos": ids})
}

func (s *Server) sectorAsOf(w http.ResponseWriter, r *http.Request) {
	var at types.Date
	if err := bindQuery(r.URL.Query(), required("data", &at)); err != nil {
		s.writeError(w, r, err)
		return
	}
	iv, err := s.history.SectorAsOf(r.Context(), chi.URLParam(r, "veiculo"), dayIn(at, s.loc))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if iv == nil {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (s *Server) currentSector(w http.ResponseWriter, r *http.Request) {
	iv, err := s.history.Current(r.Context(), chi.URLParam(r, "veiculo"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if iv == nil {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (s *Server) vehicleHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.history.History(r.Context(), chi.URLParam(r, "veiculo"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) syncFleet(w http.ResponseWriter, r *http.Request) {
	var inactive bool
	if err := bindQuery(r.URL.Query(), optional("incluirInativos", &inactive)); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.fleet.ImportFleet(r.Context(), inactive)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
