package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateRange is a calendar-day window. Both ends are inclusive days; stores
// translate it into the half-open instant range [Inicio, Fim+1d).
type DateRange struct {
	Inicio time.Time `json:"inicio"`
	Fim    time.Time `json:"fim"`
}

// NewDateRange truncates both bounds to midnight in their own location and
// rejects an end before the start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Inicio: startOfDay(start), Fim: startOfDay(end)}
	if r.Fim.Before(r.Inicio) {
		return DateRange{}, fmt.Errorf("%w: %s after %s", ErrInvalidRange, r.Inicio.Format(time.DateOnly), r.Fim.Format(time.DateOnly))
	}
	return r, nil
}

// CalendarYear returns Jan 1 to Dec 31 of now's year.
func CalendarYear(now time.Time) DateRange {
	loc := now.Location()
	return DateRange{
		Inicio: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc),
		Fim:    time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, loc),
	}
}

// Until is the exclusive upper instant of the range.
func (r DateRange) Until() time.Time { return r.Fim.AddDate(0, 0, 1) }

// Contains reports whether t falls on one of the range's days.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Inicio) && t.Before(r.Until())
}

func (r DateRange) String() string {
	return r.Inicio.Format(time.DateOnly) + ".." + r.Fim.Format(time.DateOnly)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DefaultSearchFields are searched when an advanced search names no fields.
var DefaultSearchFields = []string{
	"numeroAiMulta", "prefixoVeic", "descricaoInfra", "localMulta",
	"agenteDescricao", "observacao", "observacaoRealMotivo",
}

// AdvancedSearch matches Texto against each of Campos, combined with Operador.
type AdvancedSearch struct {
	Texto    string   `json:"texto"`
	Campos   []string `json:"campos"`
	Operador string   `json:"operador"`
}

// FineFilter is the caller-facing search request.
type FineFilter struct {
	DataInicio *time.Time `json:"dataInicio,omitempty"`
	DataFim    *time.Time `json:"dataFim,omitempty"`

	Busca                     string `json:"busca,omitempty"`
	NumeroAiMulta             string `json:"numeroAiMulta,omitempty"`
	PrefixoVeic               string `json:"prefixoVeic,omitempty"`
	CodigoVeic                string `json:"codigoVeic,omitempty"`
	CodigoInfra               string `json:"codigoInfra,omitempty"`
	AgenteCodigo              string `json:"agenteCodigo,omitempty"`
	AgenteDescricao           string `json:"agenteDescricao,omitempty"`
	LocalMulta                string `json:"localMulta,omitempty"`
	ObservacaoRealMotivo      string `json:"observacaoRealMotivo,omitempty"`
	CodAreaCompetencia        string `json:"codAreaCompetencia,omitempty"`
	CodResponsavelNotificacao string `json:"codResponsavelNotificacao,omitempty"`
	ResponsavelMulta          string `json:"responsavelMulta,omitempty"`

	TipoMulta    TipoMulta        `json:"tipoMulta,omitempty"`
	Gravidade    Gravidade        `json:"gravidade,omitempty"`
	Status       StatusMulta      `json:"statusMulta,omitempty"`
	ValorMinimo  *decimal.Decimal `json:"valorMinimo,omitempty"`
	ValorMaximo  *decimal.Decimal `json:"valorMaximo,omitempty"`
	AlertaDefesa bool             `json:"alertaDefesa,omitempty"`

	GruposInfracao []string        `json:"gruposInfracao,omitempty"`
	BuscaAvancada  *AdvancedSearch `json:"buscaAvancada,omitempty"`

	Page           int    `json:"page,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	OrderBy        string `json:"orderBy,omitempty"`
	OrderDirection string `json:"orderDirection,omitempty"`

	IncludeAnalytics bool           `json:"includeAnalytics,omitempty"`
	GroupBy          GroupDimension `json:"groupBy,omitempty"`
}

// FineQuery is a normalized filter bound to a concrete range and instant.
type FineQuery struct {
	FineFilter
	Range DateRange
	Now   time.Time
}

// Offset is the zero-based row offset of the requested page.
func (q FineQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Normalize applies defaults (current calendar year, page 1, 50 rows, issuance
// date descending) and clamps the page size.
func (f FineFilter) Normalize(now time.Time) (FineQuery, error) {
	r := CalendarYear(now)
	if f.DataInicio != nil {
		r.Inicio = startOfDay(*f.DataInicio)
	}
	if f.DataFim != nil {
		r.Fim = startOfDay(*f.DataFim)
	}
	r, err := NewDateRange(r.Inicio, r.Fim)
	if err != nil {
		return FineQuery{}, err
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.OrderBy == "" {
		f.OrderBy = "dataEmissaoMulta"
	}
	if strings.EqualFold(f.OrderDirection, "ASC") {
		f.OrderDirection = "ASC"
	} else {
		f.OrderDirection = "DESC"
	}
	if f.ResponsavelMulta != "" {
		f.ResponsavelMulta = strings.ToUpper(f.ResponsavelMulta)
	}
	if f.ValorMinimo != nil && f.ValorMaximo != nil && f.ValorMinimo.GreaterThan(*f.ValorMaximo) {
		return FineQuery{}, fmt.Errorf("%w: valorMinimo greater than valorMaximo", ErrInvalidInput)
	}
	if f.BuscaAvancada != nil {
		a := *f.BuscaAvancada
		f.BuscaAvancada = nil
		if len(a.Campos) == 0 {
			a.Campos = DefaultSearchFields
		}
		if strings.TrimSpace(a.Texto) != "" {
			if strings.EqualFold(a.Operador, "AND") {
				a.Operador = "AND"
			} else {
				a.Operador = "OR"
			}
			f.BuscaAvancada = &a
		}
	}
	return FineQuery{FineFilter: f, Range: r, Now: now}, nil
}

// EnrichedFine is a cached fine plus its read-time classification.
type EnrichedFine struct {
	Fine
	TipoMulta                  TipoMulta       `json:"tipoMulta"`
	TipoResponsavel            TipoResponsavel `json:"tipoResponsavel"`
	Gravidade                  Gravidade       `json:"gravidade"`
	GravidadeValor             string          `json:"gravidadeValor"`
	AreaCompetenciaDesc        string          `json:"areaCompetenciaDesc"`
	ResponsavelNotificacaoDesc string          `json:"responsavelNotificacaoDesc"`
	AlertaDefesa               bool            `json:"alertaDefesa"`
	HorarioInfracao            *int            `json:"horarioInfracao"`
	TemProcessoNotificacao     bool            `json:"temProcessoNotificacao"`
	TemObservacaoRealMotivo    bool            `json:"temObservacaoRealMotivo"`
	TemCodigoLinha             bool            `json:"temCodigoLinha"`
	StatusMulta                StatusMulta     `json:"statusMulta"`
	DiasParaDefesa             *int            `json:"diasParaDefesa"`
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination derives page counts from a total row count.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// Summary aggregates the whole filtered set, not just the returned page.
type Summary struct {
	TotalMultas    int             `json:"totalMultas"`
	ValorTotal     decimal.Decimal `json:"valorTotal"`
	ValorMedio     decimal.Decimal `json:"valorMedio"`
	ValorMinimo    decimal.Decimal `json:"valorMinimo"`
	ValorMaximo    decimal.Decimal `json:"valorMaximo"`
	ValorPagoTotal decimal.Decimal `json:"valorPagoTotal"`

	MultasTransito int             `json:"multasTransito"`
	MultasSemob    int             `json:"multasSemob"`
	ValorTransito  decimal.Decimal `json:"valorTransito"`
	ValorSemob     decimal.Decimal `json:"valorSemob"`

	MultasFuncionario int `json:"multasFuncionario"`
	MultasEmpresa     int `json:"multasEmpresa"`

	GravidadeA          int `json:"gravidadeA"`
	GravidadeB          int `json:"gravidadeB"`
	GravidadeC          int `json:"gravidadeC"`
	GravidadeIndefinida int `json:"gravidadeIndefinida"`

	Pagas     int `json:"pagas"`
	EmRecurso int `json:"emRecurso"`
	Vencidas  int `json:"vencidas"`
	Pendentes int `json:"pendentes"`

	AlertasDefesa int `json:"alertasDefesa"`

	ComObservacaoRealMotivo int `json:"comObservacaoRealMotivo"`
	ComProcessoNotificacao  int `json:"comProcessoNotificacao"`
	ComCodigoLinha          int `json:"comCodigoLinha"`
	ComAgente               int `json:"comAgente"`

	VeiculosUnicos int `json:"veiculosUnicos"`
	AgentesUnicos  int `json:"agentesUnicos"`
	LocaisUnicos   int `json:"locaisUnicos"`
}

// Bucket is one entry of a distribution or ranking.
type Bucket struct {
	Chave      string          `json:"chave"`
	Rotulo     string          `json:"rotulo"`
	Quantidade int             `json:"quantidade"`
	Valor      decimal.Decimal `json:"valor"`
}

type MonthlyPoint struct {
	Mes      string          `json:"mes"`
	Total    int             `json:"total"`
	Transito int             `json:"transito"`
	Semob    int             `json:"semob"`
	Valor    decimal.Decimal `json:"valor"`
}

type HourStats struct {
	HorarioPico  *int    `json:"horarioPico"`
	HorarioMenor *int    `json:"horarioMenor"`
	MediaPorHora float64 `json:"mediaPorHora"`
	Manha        int     `json:"manha"`
	Tarde        int     `json:"tarde"`
	Noite        int     `json:"noite"`
	Madrugada    int     `json:"madrugada"`
}

type Analytics struct {
	PorTipo             []Bucket       `json:"porTipo"`
	PorGravidade        []Bucket       `json:"porGravidade"`
	PorArea             []Bucket       `json:"porArea"`
	PorResponsavel      []Bucket       `json:"porResponsavel"`
	PorHorario          []Bucket       `json:"porHorario"`
	TopAgentes          []Bucket       `json:"topAgentes"`
	TopLocais           []Bucket       `json:"topLocais"`
	TopCausasReais      []Bucket       `json:"topCausasReais"`
	AlertasDefesa       int            `json:"alertasDefesa"`
	EvolucaoMensal      []MonthlyPoint `json:"evolucaoMensal"`
	EstatisticasHorario HourStats      `json:"estatisticasHorario"`
}

// Group is one row of a grouped search.
type Group struct {
	Chave      string          `json:"chave"`
	Rotulo     string          `json:"rotulo"`
	Quantidade int             `json:"quantidade"`
	ValorTotal decimal.Decimal `json:"valorTotal"`
	ValorMedio decimal.Decimal `json:"valorMedio"`
}

// SearchResult carries either Data or Groups, never both.
type SearchResult struct {
	Data       []EnrichedFine `json:"data"`
	Pagination Pagination     `json:"pagination"`
	Summary    Summary        `json:"summary"`
	Analytics  *Analytics     `json:"analytics,omitempty"`
	Groups     []Group        `json:"groups,omitempty"`
	Sync       *SyncResult    `json:"sincronizacao,omitempty"`
}

// RowError identifies a source row the sync could not store.
type RowError struct {
	Numero string `json:"numero"`
	Reason string `json:"motivo"`
}

const (
	FonteCache  = "cache"
	FonteOracle = "oracle"
)

type SyncResult struct {
	Total           int        `json:"total"`
	Novos           int        `json:"novos"`
	Atualizados     int        `json:"atualizados"`
	Erros           []RowError `json:"erros"`
	Periodo         DateRange  `json:"periodo"`
	Fonte           string     `json:"fonte"`
	TempoExecucaoMs int64      `json:"tempoExecucaoMs"`
}

// Writes is the number of rows the run stored.
func (r SyncResult) Writes() int { return r.Novos + r.Atualizados }

const (
	SyncRunRunning = "running"
	SyncRunSuccess = "success"
	SyncRunError   = "error"
)

// SyncRun is the persisted log entry of one sync attempt.
type SyncRun struct {
	ID           int64      `json:"id"`
	Tipo         string     `json:"tipo"`
	Periodo      DateRange  `json:"periodo"`
	Status       string     `json:"status"`
	Total        int        `json:"total"`
	Novos        int        `json:"novos"`
	Atualizados  int        `json:"atualizados"`
	Erros        int        `json:"erros"`
	Mensagem     string     `json:"mensagem,omitempty"`
	IniciadoEm   time.Time  `json:"iniciadoEm"`
	FinalizadoEm *time.Time `json:"finalizadoEm,omitempty"`
}

type CacheStats struct {
	TotalRegistros      int             `json:"totalRegistros"`
	UltimaSincronizacao *time.Time      `json:"ultimaSincronizacao"`
	MultaMaisAntiga     *time.Time      `json:"multaMaisAntiga"`
	MultaMaisRecente    *time.Time      `json:"multaMaisRecente"`
	ValorTotal          decimal.Decimal `json:"valorTotal"`
	VeiculosDistintos   int             `json:"veiculosDistintos"`
}
