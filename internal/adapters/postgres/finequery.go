package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"juridico/internal/domain"
)

// fineSQL accumulates positional arguments while a fine query is assembled.
type fineSQL struct {
	args []any
}

func (b *fineSQL) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// from returns multas_cache with the read-time classification columns
// tipo_multa, gravidade, status_multa and alerta_defesa, aliased as f.
func (b *fineSQL) from(now time.Time) string {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	nowArg := b.arg(now)
	alertFrom := b.arg(today)
	alertUntil := b.arg(today.AddDate(0, 0, domain.DefenseAlertWindowDays+1))
	return fmt.Sprintf(`(
		SELECT m.*,
			CASE WHEN m.codigo_org = '%s' THEN '%s' ELSE '%s' END AS tipo_multa,
			CASE m.valor_multa
				WHEN %d THEN '%s'
				WHEN %d THEN '%s'
				WHEN %d THEN '%s'
				ELSE '%s'
			END AS gravidade,
			CASE
				WHEN m.data_pagto_multa IS NOT NULL OR m.valor_pago > 0 THEN '%s'
				WHEN COALESCE(m.recurso1_numero, m.recurso2_numero, m.recurso3_numero) IS NOT NULL THEN '%s'
				WHEN m.data_vecto_multa < %s THEN '%s'
				ELSE '%s'
			END AS status_multa,
			COALESCE(m.data_limite_condutor >= %s AND m.data_limite_condutor < %s, false) AS alerta_defesa
		FROM multas_cache m
	) f`,
		domain.SemobOrgCode, domain.TipoSemob, domain.TipoTransito,
		domain.ValorGravidadeA, domain.GravidadeA,
		domain.ValorGravidadeB, domain.GravidadeB,
		domain.ValorGravidadeC, domain.GravidadeC,
		domain.GravidadeIndefinida,
		domain.StatusPaga, domain.StatusRecurso, nowArg, domain.StatusVencida, domain.StatusPendente,
		alertFrom, alertUntil,
	)
}

// textColumns are the filter fields reachable from busca and buscaAvancada.
var textColumns = map[string]string{
	"numeroAiMulta":        "f.numero_ai_multa",
	"prefixoVeic":          "f.prefixo_veic",
	"descricaoInfra":       "f.descricao_infra",
	"localMulta":           "f.local_multa",
	"bairroLocalMulta":     "f.bairro_local_multa",
	"agenteCodigo":         "f.agente_codigo",
	"agenteDescricao":      "f.agente_descricao",
	"codigoInfra":          "f.codigo_infra",
	"observacao":           "f.observacao",
	"observacaoRealMotivo": "f.observacao_real_motivo",
}

var buscaColumns = []string{
	"numeroAiMulta", "prefixoVeic", "descricaoInfra", "localMulta", "agenteDescricao", "observacao",
}

// sortColumns whitelists orderBy values.
var sortColumns = map[string]string{
	"numeroAiMulta":      "f.numero_ai_multa",
	"dataEmissaoMulta":   "f.data_emissao_multa",
	"dataHoraMulta":      "f.data_hora_multa",
	"dataVectoMulta":     "f.data_vecto_multa",
	"dataPagtoMulta":     "f.data_pagto_multa",
	"dataLimiteCondutor": "f.data_limite_condutor",
	"valorMulta":         "f.valor_multa",
	"valorTotalMulta":    "f.valor_total_multa",
	"prefixoVeic":        "f.prefixo_veic",
	"descricaoInfra":     "f.descricao_infra",
	"localMulta":         "f.local_multa",
	"agenteDescricao":    "f.agente_descricao",
	"pontuacaoInfracao":  "f.pontuacao_infracao",
	"statusMulta":        "f.status_multa",
	"sincronizadoEm":     "f.synced_at",
}

func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// where renders the WHERE clause for q; from must have been called first.
func (b *fineSQL) where(q domain.FineQuery) string {
	conds := []string{
		"f.data_emissao_multa >= " + b.arg(q.Range.Inicio),
		"f.data_emissao_multa < " + b.arg(q.Range.Until()),
	}
	eq := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			conds = append(conds, col+" = "+b.arg(v))
		}
	}
	like := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			conds = append(conds, col+" ILIKE "+b.arg("%"+likeEscape(v)+"%"))
		}
	}

	if s := strings.TrimSpace(q.Busca); s != "" {
		p := b.arg("%" + likeEscape(s) + "%")
		ors := make([]string, 0, len(buscaColumns))
		for _, field := range buscaColumns {
			ors = append(ors, textColumns[field]+" ILIKE "+p)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	eq("f.numero_ai_multa", q.NumeroAiMulta)
	eq("f.codigo_veic", q.CodigoVeic)
	eq("f.codigo_infra", q.CodigoInfra)
	eq("f.agente_codigo", q.AgenteCodigo)
	eq("f.cod_area_competencia", q.CodAreaCompetencia)
	eq("f.cod_responsavel_notificacao", q.CodResponsavelNotificacao)
	eq("f.responsavel_multa", q.ResponsavelMulta)
	like("f.prefixo_veic", q.PrefixoVeic)
	like("f.agente_descricao", q.AgenteDescricao)
	like("f.local_multa", q.LocalMulta)
	like("f.observacao_real_motivo", q.ObservacaoRealMotivo)

	if q.TipoMulta != "" {
		conds = append(conds, "f.tipo_multa = "+b.arg(string(q.TipoMulta)))
	}
	if q.Gravidade != "" {
		conds = append(conds, "f.gravidade = "+b.arg(string(q.Gravidade)))
	}
	if q.Status != "" {
		conds = append(conds, "f.status_multa = "+b.arg(string(q.Status)))
	}
	if q.ValorMinimo != nil {
		conds = append(conds, "f.valor_multa >= "+b.arg(*q.ValorMinimo))
	}
	if q.ValorMaximo != nil {
		conds = append(conds, "f.valor_multa <= "+b.arg(*q.ValorMaximo))
	}
	if q.AlertaDefesa {
		conds = append(conds, "f.alerta_defesa")
	}
	if len(q.GruposInfracao) > 0 {
		conds = append(conds, "f.grupo_infracao = ANY("+b.arg(q.GruposInfracao)+")")
	}
	if a := q.BuscaAvancada; a != nil {
		p := b.arg("%" + likeEscape(strings.TrimSpace(a.Texto)) + "%")
		var parts []string
		for _, field := range a.Campos {
			if col, ok := textColumns[field]; ok {
				parts = append(parts, col+" ILIKE "+p)
			}
		}
		op := " OR "
		if a.Operador == "AND" {
			op = " AND "
		}
		if len(parts) > 0 {
			conds = append(conds, "("+strings.Join(parts, op)+")")
		}
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func orderBy(q domain.FineQuery) string {
	col, ok := sortColumns[q.OrderBy]
	if !ok {
		col = sortColumns["dataEmissaoMulta"]
	}
	dir := "DESC"
	if q.OrderDirection == "ASC" {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST, f.numero_ai_multa", col, dir)
}

// groupExprs maps a dimension to its key and label expressions.
var groupExprs = map[domain.GroupDimension][2]string{
	domain.GroupByAgente:      {"COALESCE(f.agente_codigo, '')", "MAX(f.agente_descricao)"},
	domain.GroupByArea:        {"COALESCE(f.cod_area_competencia, '')", "NULL::text"},
	domain.GroupByResponsavel: {"COALESCE(f.cod_responsavel_notificacao, '')", "NULL::text"},
	domain.GroupByGravidade:   {"f.gravidade", "NULL::text"},
	domain.GroupByTipo:        {"f.tipo_multa", "NULL::text"},
	domain.GroupByMes:         {"to_char(f.data_emissao_multa, 'YYYY-MM')", "NULL::text"},
	domain.GroupByHorario:     {"COALESCE(EXTRACT(HOUR FROM f.data_hora_multa)::int::text, '')", "NULL::text"},
	domain.GroupByVeiculo:     {"COALESCE(f.prefixo_veic, '')", "NULL::text"},
	domain.GroupByInfracao:    {"COALESCE(f.codigo_infra, '')", "MAX(f.descricao_infra)"},
}
