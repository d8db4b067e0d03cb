package httpadapter

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"juridico/internal/domain"
)

type queryParam struct {
	name     string
	required bool
	dest     any
}

func optional(name string, dest any) queryParam {
	return queryParam{name: name, dest: dest}
}

func required(name string, dest any) queryParam {
	return queryParam{name: name, required: true, dest: dest}
}

// bindQuery binds form-style query parameters into their destinations.
func bindQuery(q url.Values, params ...queryParam) error {
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, p.required, p.name, q, p.dest); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	return nil
}

// dayIn places a calendar date at midnight in loc.
func dayIn(d types.Date, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func dayPtr(d *types.Date, loc *time.Location) *time.Time {
	if d == nil {
		return nil
	}
	t := dayIn(*d, loc)
	return &t
}

func parseDecimal(name string, s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", domain.ErrInvalidInput, name, *s)
	}
	return &d, nil
}

// filterFromQuery reads a FineFilter from the query string.
func (s *Server) filterFromQuery(r *http.Request) (domain.FineFilter, error) {
	var (
		f                       domain.FineFilter
		inicio, fim             *types.Date
		tipo, gravidade, status string
		groupBy                 string
		valorMin, valorMax      *string
		texto, operador         string
		campos                  []string
	)
	err := bindQuery(r.URL.Query(),
		optional("dataInicio", &inicio),
		optional("dataFim", &fim),
		optional("busca", &f.Busca),
		optional("numeroAiMulta", &f.NumeroAiMulta),
		optional("prefixoVeic", &f.PrefixoVeic),
		optional("codigoVeic", &f.CodigoVeic),
		optional("codigoInfra", &f.CodigoInfra),
		optional("agenteCodigo", &f.AgenteCodigo),
		optional("agenteDescricao", &f.AgenteDescricao),
		optional("localMulta", &f.LocalMulta),
		optional("observacaoRealMotivo", &f.ObservacaoRealMotivo),
		optional("codAreaCompetencia", &f.CodAreaCompetencia),
		optional("codResponsavelNotificacao", &f.CodResponsavelNotificacao),
		optional("responsavelMulta", &f.ResponsavelMulta),
		optional("tipoMulta", &tipo),
		optional("gravidade", &gravidade),
		optional("statusMulta", &status),
		optional("valorMinimo", &valorMin),
		optional("valorMaximo", &valorMax),
		optional("alertaDefesa", &f.AlertaDefesa),
		optional("gruposInfracao", &f.GruposInfracao),
		optional("buscaAvancada", &texto),
		optional("camposBusca", &campos),
		optional("operadorBusca", &operador),
		optional("page", &f.Page),
		optional("limit", &f.Limit),
		optional("orderBy", &f.OrderBy),
		optional("orderDirection", &f.OrderDirection),
		optional("includeAnalytics", &f.IncludeAnalytics),
		optional("groupBy", &groupBy),
	)
	if err != nil {
		return f, err
	}
	f.DataInicio = dayPtr(inicio, s.loc)
	f.DataFim = dayPtr(fim, s.loc)
	if texto != "" {
		f.BuscaAvancada = &domain.AdvancedSearch{Texto: texto, Campos: campos, Operador: operador}
	}
	if f.ValorMinimo, err = parseDecimal("valorMinimo", valorMin); err != nil {
		return f, err
	}
	if f.ValorMaximo, err = parseDecimal("valorMaximo", valorMax); err != nil {
		return f, err
	}
	return f, parseEnums(&f, tipo, gravidade, status, groupBy)
}

func parseEnums(f *domain.FineFilter, tipo, gravidade, status, groupBy string) error {
	var err error
	if tipo != "" {
		if f.TipoMulta, err = domain.ParseTipoMulta(tipo); err != nil {
			return err
		}
	}
	if gravidade != "" {
		if f.Gravidade, err = domain.ParseGravidade(gravidade); err != nil {
			return err
		}
	}
	if status != "" {
		if f.Status, err = domain.ParseStatusMulta(status); err != nil {
			return err
		}
	}
	if groupBy != "" {
		if f.GroupBy, err = domain.ParseGroupDimension(groupBy); err != nil {
			return err
		}
	}
	return nil
}

// dateRangeBody is a calendar-day period in request bodies.
type dateRangeBody struct {
	DataInicio types.Date `json:"dataInicio"`
	DataFim    types.Date `json:"dataFim"`
}

func (s *Server) rangeOf(b dateRangeBody) (domain.DateRange, error) {
	if b.DataInicio.IsZero() || b.DataFim.IsZero() {
		return domain.DateRange{}, fmt.Errorf("%w: dataInicio and dataFim are required", domain.ErrInvalidInput)
	}
	return domain.NewDateRange(dayIn(b.DataInicio, s.loc), dayIn(b.DataFim, s.loc))
}

// searchBody is the JSON form of a search. Dates are calendar days.
type searchBody struct {
	domain.FineFilter
	DataInicio *types.Date `json:"dataInicio,omitempty"`
	DataFim    *types.Date `json:"dataFim,omitempty"`
}

func (s *Server) filterFromBody(b searchBody) (domain.FineFilter, error) {
	f := b.FineFilter
	f.DataInicio = dayPtr(b.DataInicio, s.loc)
	f.DataFim = dayPtr(b.DataFim, s.loc)
	err := parseEnums(&f, string(f.TipoMulta), string(f.Gravidade), string(f.Status), string(f.GroupBy))
	return f, err
}
