package domain

import "fmt"

// TipoMulta splits fines by issuing body.
type TipoMulta string

const (
	TipoTransito TipoMulta = "TRANSITO"
	TipoSemob    TipoMulta = "SEMOB"
)

// Gravidade is the severity tier derived from the exact fine amount.
type Gravidade string

const (
	GravidadeA          Gravidade = "A"
	GravidadeB          Gravidade = "B"
	GravidadeC          Gravidade = "C"
	GravidadeIndefinida Gravidade = "INDEFINIDO"
)

// Exact fine amounts of each severity tier.
const (
	ValorGravidadeA = 495
	ValorGravidadeB = 990
	ValorGravidadeC = 1980
)

// Label returns the dashboard label for the tier.
func (g Gravidade) Label() string {
	switch g {
	case GravidadeA:
		return "A - LEVE"
	case GravidadeB:
		return "B - MÉDIA"
	case GravidadeC:
		return "C - GRAVE/REINCIDÊNCIA"
	case GravidadeIndefinida:
		return "INDEFINIDO"
	}
	return "INDEFINIDO"
}

// TipoResponsavel is who answers for the fine: the driver or the company.
type TipoResponsavel string

const (
	ResponsavelFuncionario TipoResponsavel = "FUNCIONARIO"
	ResponsavelEmpresa     TipoResponsavel = "EMPRESA"
	ResponsavelIndefinido  TipoResponsavel = "INDEFINIDO"
)

// StatusMulta is the read-time lifecycle bucket. Values are listed in
// evaluation priority order.
type StatusMulta string

const (
	StatusPaga     StatusMulta = "PAGA"
	StatusRecurso  StatusMulta = "RECURSO"
	StatusVencida  StatusMulta = "VENCIDA"
	StatusPendente StatusMulta = "PENDENTE"
)

// GroupDimension selects the grouping key for aggregated searches.
type GroupDimension string

const (
	GroupByAgente      GroupDimension = "agente"
	GroupByArea        GroupDimension = "area"
	GroupByResponsavel GroupDimension = "responsavel"
	GroupByGravidade   GroupDimension = "gravidade"
	GroupByTipo        GroupDimension = "tipo"
	GroupByMes         GroupDimension = "mes"
	GroupByHorario     GroupDimension = "horario"
	GroupByVeiculo     GroupDimension = "veiculo"
	GroupByInfracao    GroupDimension = "infracao"
)

func ParseTipoMulta(s string) (TipoMulta, error) {
	switch TipoMulta(s) {
	case TipoTransito, TipoSemob:
		return TipoMulta(s), nil
	}
	return "", fmt.Errorf("%w: tipoMulta %q", ErrInvalidInput, s)
}

func ParseGravidade(s string) (Gravidade, error) {
	switch Gravidade(s) {
	case GravidadeA, GravidadeB, GravidadeC, GravidadeIndefinida:
		return Gravidade(s), nil
	}
	return "", fmt.Errorf("%w: gravidade %q", ErrInvalidInput, s)
}

func ParseStatusMulta(s string) (StatusMulta, error) {
	switch StatusMulta(s) {
	case StatusPaga, StatusRecurso, StatusVencida, StatusPendente:
		return StatusMulta(s), nil
	}
	return "", fmt.Errorf("%w: statusMulta %q", ErrInvalidInput, s)
}

func ParseGroupDimension(s string) (GroupDimension, error) {
	switch GroupDimension(s) {
	case GroupByAgente, GroupByArea, GroupByResponsavel, GroupByGravidade, GroupByTipo,
		GroupByMes, GroupByHorario, GroupByVeiculo, GroupByInfracao:
		return GroupDimension(s), nil
	}
	return "", fmt.Errorf("%w: groupBy %q", ErrInvalidInput, s)
}
