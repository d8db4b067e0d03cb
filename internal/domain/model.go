package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Core domain models. HTTP payloads reuse these directly; the JSON names follow
// the legacy column names the Jurídico dashboards already consume.

// Appeal is one of the three appeal rounds a fine can go through.
type Appeal struct {
	Numero   *string    `json:"numero"`
	Data     *time.Time `json:"data"`
	Condicao *string    `json:"condicao"`
}

// Notice is an infraction notice or one of its notification rounds.
type Notice struct {
	Numero           *string         `json:"numero"`
	Emissao          *time.Time      `json:"emissao"`
	Recebimento      *time.Time      `json:"recebimento"`
	Considerado      *time.Time      `json:"considerado"`
	ValorDoDoc       decimal.Decimal `json:"valorDoDoc"`
	ValorConsiderado decimal.Decimal `json:"valorConsiderado"`
	Prazo            *string         `json:"prazo"`
}

// Fine is the cached copy of one traffic fine. NumeroAiMulta is the external
// identity and is never regenerated.
type Fine struct {
	NumeroAiMulta string `json:"numeroAiMulta"`
	CodigoEmpresa int    `json:"codigoEmpresa"`

	CodigoInfra       *string `json:"codigoInfra"`
	DescricaoInfra    *string `json:"descricaoInfra"`
	GrupoInfracao     *string `json:"grupoInfracao"`
	PontuacaoInfracao int     `json:"pontuacaoInfracao"`

	CodigoVeic  *string `json:"codigoVeic"`
	PrefixoVeic *string `json:"prefixoVeic"`
	CodIntFunc  *string `json:"codIntFunc"`
	CodIntLinha *string `json:"codIntLinha"`

	CodigoUf          *string `json:"codigoUf"`
	CodMunic          *string `json:"codMunic"`
	LocalMulta        *string `json:"localMulta"`
	NumeroLocalMulta  *string `json:"numeroLocalMulta"`
	KmLocalMulta      *string `json:"kmLocalMulta"`
	MetrosLocalMulta  *string `json:"metrosLocalMulta"`
	SentidoLocalMulta *string `json:"sentidoLocalMulta"`
	BairroLocalMulta  *string `json:"bairroLocalMulta"`

	CodigoOrg                 *string `json:"codigoOrg"`
	ResponsavelMulta          *string `json:"responsavelMulta"`
	CodMotivoNotificacao      *string `json:"codMotivoNotificacao"`
	CodAreaCompetencia        *string `json:"codAreaCompetencia"`
	CodResponsavelNotificacao *string `json:"codResponsavelNotificacao"`
	AgenteCodigo              *string `json:"agenteCodigo"`
	AgenteDescricao           *string `json:"agenteDescricao"`
	AgenteMatriculaFiscal     *string `json:"agenteMatriculaFiscal"`

	DataEmissaoMulta   time.Time  `json:"dataEmissaoMulta"`
	DataHoraMulta      *time.Time `json:"dataHoraMulta"`
	DataVectoMulta     *time.Time `json:"dataVectoMulta"`
	DataPagtoMulta     *time.Time `json:"dataPagtoMulta"`
	DataLimiteCondutor *time.Time `json:"dataLimiteCondutor"`
	UltAlteracao       *time.Time `json:"ultAlteracao"`

	ValorMulta         decimal.Decimal `json:"valorMulta"`
	ValorTotalMulta    decimal.Decimal `json:"valorTotalMulta"`
	ValorPago          decimal.Decimal `json:"valorPago"`
	ValorPagamento     decimal.Decimal `json:"valorPagamento"`
	ValorAtualizado    decimal.Decimal `json:"valorAtualizado"`
	TotalParcelasMulta int             `json:"totalParcelasMulta"`

	Recursos       [3]Appeal `json:"recursos"`
	AutoDeInfracao Notice    `json:"autoDeInfracao"`
	Notificacoes   [3]Notice `json:"notificacoes"`

	Observacao           *string `json:"observacao"`
	ObservacaoRealMotivo *string `json:"observacaoRealMotivo"`
	NProcessoNotificacao *string `json:"nProcessoNotificacao"`
	NumeroProcesso       *string `json:"numeroProcesso"`

	SyncedAt time.Time `json:"sincronizadoEm"`
}

// Sector is an organizational depot (garagem).
type Sector struct {
	Codigo int    `json:"codigoGaragem"`
	Nome   string `json:"nomeGaragem"`
}

// SectorInterval records that a vehicle belonged to a sector during
// [DataInicio, DataFim). A nil DataFim marks the current interval.
type SectorInterval struct {
	ID            uuid.UUID  `json:"id"`
	VehicleID     string     `json:"prefixoVeiculo"`
	CodigoEmpresa int        `json:"codigoEmpresa"`
	Sector        Sector     `json:"setor"`
	DataInicio    time.Time  `json:"dataInicio"`
	DataFim       *time.Time `json:"dataFim"`
	Motivo        string     `json:"motivoMudanca"`
	Observacoes   string     `json:"observacoes"`
	Usuario       string     `json:"usuarioAlteracao"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Open reports whether the interval is the vehicle's current one.
func (i SectorInterval) Open() bool { return i.DataFim == nil }

// Covers reports whether at falls inside the interval. The end bound is
// inclusive here; callers resolve the boundary by preferring the latest start.
func (i SectorInterval) Covers(at time.Time) bool {
	if at.Before(i.DataInicio) {
		return false
	}
	return i.DataFim == nil || !i.DataFim.Before(at)
}

// SectorChange moves a vehicle from one sector to another at DataMudanca.
type SectorChange struct {
	VehicleID     string    `json:"prefixoVeiculo"`
	CodigoEmpresa int       `json:"codigoEmpresa"`
	De            Sector    `json:"setorAnterior"`
	Para          Sector    `json:"setorNovo"`
	DataMudanca   time.Time `json:"dataMudanca"`
	Motivo        string    `json:"motivo"`
	Observacoes   string    `json:"observacoes"`
	Usuario       string    `json:"usuarioAlteracao"`
}

const (
	MotivoInicializacao     = "INICIALIZACAO_SISTEMA"
	MotivoSyncAutomatica    = "SINCRONIZACAO_AUTOMATICA"
	MotivoTransferencia     = "TRANSFERENCIA"
	UsuarioSistema          = "SISTEMA"
	SituacaoAtivo           = "ATIVO"
	SituacaoInativo         = "INATIVO"
	DefaultCodigoEmpresa    = 4
	SemobOrgCode            = "16"
	DefenseAlertWindowDays  = 7
	DefaultPageSize         = 50
	MaxPageSize             = 1000
	DefaultFreshness        = 24 * time.Hour
	DefaultSyncTimeout      = 10 * time.Minute
	DefaultFleetRefresh     = time.Hour
	DefaultHistoryRetention = 365
	DefaultCacheRetention   = 90
)

// Garagens are the depots the fleet is split across.
var Garagens = []Sector{
	{Codigo: 31, Nome: "PARANOÁ"},
	{Codigo: 124, Nome: "SANTA MARIA"},
	{Codigo: 239, Nome: "SÃO SEBASTIÃO"},
	{Codigo: 240, Nome: "GAMA"},
}

// LookupGaragem returns the depot with the given code.
func LookupGaragem(code int) (Sector, bool) {
	for _, g := range Garagens {
		if g.Codigo == code {
			return g, true
		}
	}
	return Sector{}, false
}

// FleetVehicle is one row of the current fleet snapshot.
type FleetVehicle struct {
	Prefixo              string     `json:"prefixoVeiculo"`
	CodigoEmpresa        int        `json:"codigoEmpresa"`
	Placa                string     `json:"placaVeiculo"`
	Sector               Sector     `json:"setor"`
	TipoFrota            *string    `json:"tipoFrotaDescricao"`
	DataInicioUtilizacao *time.Time `json:"dataInicioUtilizacao"`
	Situacao             string     `json:"situacao"`
	SyncedAt             time.Time  `json:"sincronizadoEm"`
}

// Active reports whether the vehicle is in service.
func (v FleetVehicle) Active() bool { return v.Situacao == SituacaoAtivo }

// FleetSnapshot is an immutable view of the fleet keyed by prefix.
type FleetSnapshot struct {
	Vehicles map[string]FleetVehicle
	LoadedAt time.Time
}

// Lookup returns the vehicle with the given prefix.
func (s *FleetSnapshot) Lookup(prefix string) (FleetVehicle, bool) {
	if s == nil {
		return FleetVehicle{}, false
	}
	v, ok := s.Vehicles[prefix]
	return v, ok
}

// Len returns the number of vehicles in the snapshot.
func (s *FleetSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Vehicles)
}
