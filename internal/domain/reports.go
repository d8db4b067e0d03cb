package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard is the executive view over a filtered period.
type Dashboard struct {
	KPIs              Summary        `json:"kpis"`
	Analytics         *Analytics     `json:"analytics"`
	Alertas           DashboardAlert `json:"alertas"`
	AlertasDetalhados []EnrichedFine `json:"alertasDetalhados"`
}

type DashboardAlert struct {
	DefesaVencendo         int `json:"defesaVencendo"`
	SemProcessoNotificacao int `json:"semProcessoNotificacao"`
	SemObservacaoMotivo    int `json:"semObservacaoMotivo"`
}

type PeriodReport struct {
	Periodo   DateRange  `json:"periodo"`
	Resumo    Summary    `json:"resumo"`
	Analytics *Analytics `json:"analytics"`
}

type PeriodComparison struct {
	Periodo1           PeriodReport    `json:"periodo1"`
	Periodo2           PeriodReport    `json:"periodo2"`
	VariacaoTotal      int             `json:"variacaoTotal"`
	VariacaoValor      decimal.Decimal `json:"variacaoValor"`
	VariacaoPercentual float64         `json:"variacaoPercentual"`
}

// Validation lists data-quality findings for one cached fine.
type Validation struct {
	Valido    bool     `json:"valido"`
	Erros     []string `json:"erros"`
	Warnings  []string `json:"warnings"`
	Sugestoes []string `json:"sugestoes"`
}

type InitResult struct {
	Processados    int        `json:"processados"`
	NovosRegistros int        `json:"novosRegistros"`
	Erros          []RowError `json:"erros"`
}

type DriftResult struct {
	Verificados         int        `json:"verificados"`
	MudancasDetectadas  int        `json:"mudancasDetectadas"`
	MudancasRegistradas int        `json:"mudancasRegistradas"`
	Erros               []RowError `json:"erros"`
}

type HistoryStats struct {
	TotalVeiculos        int            `json:"totalVeiculos"`
	VeiculosAtivos       int            `json:"veiculosAtivos"`
	VeiculosComHistorico int            `json:"veiculosComHistorico"`
	TotalRegistros       int            `json:"totalRegistros"`
	TotalMudancas        int            `json:"totalMudancas"`
	PorMotivo            map[string]int `json:"porMotivo"`
}

// SectorAtDate is the sector a vehicle held when a fine was issued.
type SectorAtDate struct {
	Sector
	DataInicio   time.Time  `json:"dataInicio"`
	DataFim      *time.Time `json:"dataFim"`
	PeriodoAtivo bool       `json:"periodoAtivo"`
}

// HistoricalFine is a fine attributed to the sector of its issuance date.
type HistoricalFine struct {
	EnrichedFine
	SetorNaDataInfracao *SectorAtDate `json:"setorNaDataInfracao"`
	SetorAtual          *Sector       `json:"setorAtual"`
	SetorMudou          bool          `json:"setorMudou"`
	SetorEncontrado     bool          `json:"setorEncontrado"`
}

type MappingSummary struct {
	TotalMultas           int     `json:"totalMultas"`
	MultasComSetor        int     `json:"multasComSetor"`
	MultasSemSetor        int     `json:"multasSemSetor"`
	MultasComMudancaSetor int     `json:"multasComMudancaSetor"`
	PercentualMapeamento  float64 `json:"percentualMapeamento"`
	PercentualMudancas    float64 `json:"percentualMudancas"`
}

type SectorFineStats struct {
	Setor            Sector          `json:"setor"`
	TotalMultas      int             `json:"totalMultas"`
	ValorTotal       decimal.Decimal `json:"valorTotal"`
	MultasComMudanca int             `json:"multasComMudanca"`
}

type HistoricalSearchResult struct {
	Data                 []HistoricalFine  `json:"data"`
	Pagination           Pagination        `json:"pagination"`
	Resumo               MappingSummary    `json:"resumo"`
	EstatisticasPorSetor []SectorFineStats `json:"estatisticasPorSetor"`
}

type SectorCount struct {
	Sector
	Quantidade int `json:"quantidade"`
}

type VehicleChangeSummary struct {
	PrefixoVeiculo    string        `json:"prefixoVeiculo"`
	TotalMultas       int           `json:"totalMultas"`
	MultasComMudanca  int           `json:"multasComMudanca"`
	SetoresEnvolvidos []SectorCount `json:"setoresEnvolvidos"`
}

type SectorAmount struct {
	Sector
	Valor decimal.Decimal `json:"valor"`
}

type FinancialImpact struct {
	ValorTotalMultasComMudanca decimal.Decimal `json:"valorTotalMultasComMudanca"`
	ValorMedioPorMudanca       decimal.Decimal `json:"valorMedioPorMudanca"`
	SetorMaisAfetado           SectorAmount    `json:"setorMaisAfetado"`
}

type ImpactReport struct {
	MultasComMudanca     []HistoricalFine       `json:"multasComMudanca"`
	ResumoPorVeiculo     []VehicleChangeSummary `json:"resumoPorVeiculo"`
	ImpactoFinanceiro    FinancialImpact        `json:"impactoFinanceiro"`
	EstatisticasPorSetor []SectorFineStats      `json:"estatisticasPorSetor"`
}

// CurrentSectorFine is a fine attributed to its vehicle's current depot.
type CurrentSectorFine struct {
	EnrichedFine
	Setor           Sector  `json:"setor"`
	SituacaoVeiculo string  `json:"situacaoVeiculo,omitempty"`
	TipoFrota       *string `json:"tipoFrotaDescricao"`
	SetorEncontrado bool    `json:"setorEncontrado"`
}

type CurrentSearchResult struct {
	Data       []CurrentSectorFine `json:"data"`
	Pagination Pagination          `json:"pagination"`
}

type RankedItem struct {
	Chave       string          `json:"chave"`
	TotalMultas int             `json:"totalMultas"`
	ValorTotal  decimal.Decimal `json:"valorTotal"`
}

// SectorProfile describes the fines attributed to one sector by the current
// fleet snapshot.
type SectorProfile struct {
	Setor        Sector          `json:"setor"`
	TotalMultas  int             `json:"totalMultas"`
	ValorTotal   decimal.Decimal `json:"valorTotal"`
	ValorMedio   decimal.Decimal `json:"valorMedio"`
	Ranking      int             `json:"ranking"`
	PorGravidade map[string]int  `json:"porGravidade"`
	TopVeiculos  []RankedItem    `json:"topVeiculos"`
	TopInfracoes []RankedItem    `json:"topInfracoes"`
}

type SectorLeader struct {
	Sector
	Total int             `json:"total"`
	Valor decimal.Decimal `json:"valor"`
	Media decimal.Decimal `json:"media"`
}

type SectorComparison struct {
	Comparacao         []SectorProfile `json:"comparacao"`
	SetorComMaisMultas SectorLeader    `json:"setorComMaisMultas"`
	SetorComMaiorValor SectorLeader    `json:"setorComMaiorValor"`
	SetorComMaiorMedia SectorLeader    `json:"setorComMaiorMedia"`
	MultasMapeadas     int             `json:"multasMapeadas"`
	MultasSemSetor     int             `json:"multasSemSetor"`
}
