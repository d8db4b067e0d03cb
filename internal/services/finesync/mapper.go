package finesync

import (
	"fmt"
	"strconv"
	"strings"

	"juridico/internal/domain"
	"juridico/internal/legacy"
)

// Mapper turns Oracle rows into cache records.
type Mapper struct {
	Parser  legacy.Parser
	Company int
}

// MapRow maps one DVS_MULTA row. Rows without a fine number or a usable
// issuance date cannot be keyed into a sync window and are rejected; every
// other field goes through the legacy normalizer.
func (m Mapper) MapRow(row map[string]any) (domain.Fine, error) {
	p := m.Parser
	str := func(col string) *string { return p.ParseString(row[col]) }

	var f domain.Fine
	numero := str("NUMEROAIMULTA")
	if numero == nil {
		return f, fmt.Errorf("%w: missing NUMEROAIMULTA", domain.ErrInvalidInput)
	}
	f.NumeroAiMulta = *numero
	emissao := p.ParseDate(row["DATAEMISSAOMULTA"])
	if emissao == nil {
		return f, fmt.Errorf("%w: unusable DATAEMISSAOMULTA %v", domain.ErrInvalidInput, row["DATAEMISSAOMULTA"])
	}
	f.DataEmissaoMulta = *emissao

	f.CodigoEmpresa = p.ParseInt(row["CODIGOEMPRESA"])
	if f.CodigoEmpresa == 0 {
		f.CodigoEmpresa = m.Company
	}

	f.CodigoInfra = str("CODIGOINFRA")
	f.DescricaoInfra = str("DESCRICAOINFRA")
	f.GrupoInfracao = str("GRUPOINFRACAO")
	f.PontuacaoInfracao = p.ParseInt(row["PONTUACAOINFRACAO"])

	f.CodigoVeic = str("CODIGOVEIC")
	f.PrefixoVeic = str("PREFIXOVEIC")
	f.CodIntFunc = str("CODINTFUNC")
	f.CodIntLinha = str("CODINTLINHA")

	f.CodigoUf = str("CODIGOUF")
	f.CodMunic = str("CODMUNIC")
	f.LocalMulta = str("LOCALMULTA")
	f.NumeroLocalMulta = str("NUMEROLOCALMULTA")
	f.KmLocalMulta = str("KMLOCALMULTA")
	f.MetrosLocalMulta = str("METROSLOCALMULTA")
	f.SentidoLocalMulta = str("SENTIDOLOCALMULTA")
	f.BairroLocalMulta = str("BAIRROLOCALMULTA")

	f.CodigoOrg = str("CODIGOORG")
	if r := str("RESPONSAVELMULTA"); r != nil {
		up := strings.ToUpper(*r)
		f.ResponsavelMulta = &up
	}
	f.CodMotivoNotificacao = str("COD_MOTIVO_NOTIFICACAO")
	f.CodAreaCompetencia = str("COD_AREA_COMPETENCIA")
	f.CodResponsavelNotificacao = str("COD_RESPONSAVEL_NOTIFICACAO")
	f.AgenteCodigo = str("AGENTE_CODIGO")
	if f.AgenteCodigo == nil {
		f.AgenteCodigo = str("COD_AGENTE_AUTUADOR")
	}
	f.AgenteDescricao = str("AGENTE_DESCRICAO")
	f.AgenteMatriculaFiscal = str("AGENTE_MATRICULA_FISCAL")

	f.DataHoraMulta = p.ParseDate(row["DATAHORAMULTA"])
	f.DataVectoMulta = p.ParseDate(row["DATAVECTOMULTA"])
	f.DataPagtoMulta = p.ParseDate(row["DATAPAGTOMULTA"])
	f.DataLimiteCondutor = p.ParseDate(row["DATALIMITECONDUTOR"])
	f.UltAlteracao = p.ParseDate(row["ULTALTERACAO"])

	f.ValorMulta = p.ParseMoney(row["VALORMULTA"])
	f.ValorTotalMulta = p.ParseMoney(row["VALORTOTALMULTA"])
	f.ValorPago = p.ParseMoney(row["VALORPAGO"])
	f.ValorPagamento = p.ParseMoney(row["VALORPAGAMENTO"])
	f.ValorAtualizado = p.ParseMoney(row["VALORATUALIZADO"])
	f.TotalParcelasMulta = p.ParseInt(row["TOTALPARCELASMULTA"])

	for i := range f.Recursos {
		suffix := ""
		if i > 0 {
			suffix = strconv.Itoa(i + 1)
		}
		f.Recursos[i] = domain.Appeal{
			Numero:   str("NUMERORECURSOMULTA" + suffix),
			Data:     p.ParseDate(row["DATARECURSOMULTA"+suffix]),
			Condicao: str("CONDICAORECURSOMULTA" + suffix),
		}
	}

	f.AutoDeInfracao = m.notice(row, "AUTODEINFRACAO")
	for i := range f.Notificacoes {
		f.Notificacoes[i] = m.notice(row, "NOTIFICACAO"+strconv.Itoa(i+1))
	}

	f.Observacao = str("OBSERVACAO")
	f.ObservacaoRealMotivo = str("OBSERVACAOREALMOTIVO")
	f.NProcessoNotificacao = str("NPROCESSONOTIFICACAO")
	f.NumeroProcesso = str("NUMEROPROCESSO")
	return f, nil
}

func (m Mapper) notice(row map[string]any, prefix string) domain.Notice {
	p := m.Parser
	return domain.Notice{
		Numero:           p.ParseString(row[prefix]),
		Emissao:          p.ParseDate(row[prefix+"EMISSAO"]),
		Recebimento:      p.ParseDate(row[prefix+"RECEBIMENTO"]),
		Considerado:      p.ParseDate(row[prefix+"CONSIDERADO"]),
		ValorDoDoc:       p.ParseMoney(row[prefix+"VALORDODOC"]),
		ValorConsiderado: p.ParseMoney(row[prefix+"VALORCONSIDERADO"]),
		Prazo:            p.ParseString(row[prefix+"PRAZO"]),
	}
}

// MapVehicle maps one fleet snapshot row.
func (m Mapper) MapVehicle(row map[string]any) (domain.FleetVehicle, error) {
	p := m.Parser
	var v domain.FleetVehicle
	prefixo := p.ParseString(row["PREFIXOVEICULO"])
	if prefixo == nil {
		return v, fmt.Errorf("%w: missing PREFIXOVEICULO", domain.ErrInvalidInput)
	}
	v.Prefixo = *prefixo
	v.Sector.Codigo = p.ParseInt(row["CODIGOGARAGEM"])
	if v.Sector.Codigo == 0 {
		return v, fmt.Errorf("%w: vehicle %s without CODIGOGARAGEM", domain.ErrInvalidInput, v.Prefixo)
	}
	if nome := p.ParseString(row["NOMEGARAGEM"]); nome != nil {
		v.Sector.Nome = *nome
	}
	v.CodigoEmpresa = p.ParseInt(row["CODIGOEMPRESA"])
	if v.CodigoEmpresa == 0 {
		v.CodigoEmpresa = m.Company
	}
	if placa := p.ParseString(row["PLACAVEICULO"]); placa != nil {
		v.Placa = *placa
	}
	v.TipoFrota = p.ParseString(row["TIPOFROTADESCRICAO"])
	v.DataInicioUtilizacao = p.ParseDate(row["DATAINICIOUTILIZACAO"])
	v.Situacao = domain.SituacaoInativo
	if s := p.ParseString(row["SITUACAO"]); s != nil && strings.EqualFold(*s, domain.SituacaoAtivo) {
		v.Situacao = domain.SituacaoAtivo
	}
	return v, nil
}
