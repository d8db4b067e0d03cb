package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"juridico/internal/domain"
)

// fineField binds a multas_cache column to its domain.Fine field.
type fineField struct {
	col string
	ref func(f *domain.Fine) any
}

var fineFields = []fineField{
	{"numero_ai_multa", func(f *domain.Fine) any { return &f.NumeroAiMulta }},
	{"codigo_empresa", func(f *domain.Fine) any { return &f.CodigoEmpresa }},
	{"codigo_infra", func(f *domain.Fine) any { return &f.CodigoInfra }},
	{"descricao_infra", func(f *domain.Fine) any { return &f.DescricaoInfra }},
	{"grupo_infracao", func(f *domain.Fine) any { return &f.GrupoInfracao }},
	{"pontuacao_infracao", func(f *domain.Fine) any { return &f.PontuacaoInfracao }},
	{"codigo_veic", func(f *domain.Fine) any { return &f.CodigoVeic }},
	{"prefixo_veic", func(f *domain.Fine) any { return &f.PrefixoVeic }},
	{"cod_int_func", func(f *domain.Fine) any { return &f.CodIntFunc }},
	{"cod_int_linha", func(f *domain.Fine) any { return &f.CodIntLinha }},
	{"codigo_uf", func(f *domain.Fine) any { return &f.CodigoUf }},
	{"cod_munic", func(f *domain.Fine) any { return &f.CodMunic }},
	{"local_multa", func(f *domain.Fine) any { return &f.LocalMulta }},
	{"numero_local_multa", func(f *domain.Fine) any { return &f.NumeroLocalMulta }},
	{"km_local_multa", func(f *domain.Fine) any { return &f.KmLocalMulta }},
	{"metros_local_multa", func(f *domain.Fine) any { return &f.MetrosLocalMulta }},
	{"sentido_local_multa", func(f *domain.Fine) any { return &f.SentidoLocalMulta }},
	{"bairro_local_multa", func(f *domain.Fine) any { return &f.BairroLocalMulta }},
	{"codigo_org", func(f *domain.Fine) any { return &f.CodigoOrg }},
	{"responsavel_multa", func(f *domain.Fine) any { return &f.ResponsavelMulta }},
	{"cod_motivo_notificacao", func(f *domain.Fine) any { return &f.CodMotivoNotificacao }},
	{"cod_area_competencia", func(f *domain.Fine) any { return &f.CodAreaCompetencia }},
	{"cod_responsavel_notificacao", func(f *domain.Fine) any { return &f.CodResponsavelNotificacao }},
	{"agente_codigo", func(f *domain.Fine) any { return &f.AgenteCodigo }},
	{"agente_descricao", func(f *domain.Fine) any { return &f.AgenteDescricao }},
	{"agente_matricula_fiscal", func(f *domain.Fine) any { return &f.AgenteMatriculaFiscal }},
	{"data_emissao_multa", func(f *domain.Fine) any { return &f.DataEmissaoMulta }},
	{"data_hora_multa", func(f *domain.Fine) any { return &f.DataHoraMulta }},
	{"data_vecto_multa", func(f *domain.Fine) any { return &f.DataVectoMulta }},
	{"data_pagto_multa", func(f *domain.Fine) any { return &f.DataPagtoMulta }},
	{"data_limite_condutor", func(f *domain.Fine) any { return &f.DataLimiteCondutor }},
	{"ult_alteracao", func(f *domain.Fine) any { return &f.UltAlteracao }},
	{"valor_multa", func(f *domain.Fine) any { return &f.ValorMulta }},
	{"valor_total_multa", func(f *domain.Fine) any { return &f.ValorTotalMulta }},
	{"valor_pago", func(f *domain.Fine) any { return &f.ValorPago }},
	{"valor_pagamento", func(f *domain.Fine) any { return &f.ValorPagamento }},
	{"valor_atualizado", func(f *domain.Fine) any { return &f.ValorAtualizado }},
	{"total_parcelas_multa", func(f *domain.Fine) any { return &f.TotalParcelasMulta }},
	{"recurso1_numero", func(f *domain.Fine) any { return &f.Recursos[0].Numero }},
	{"recurso1_data", func(f *domain.Fine) any { return &f.Recursos[0].Data }},
	{"recurso1_condicao", func(f *domain.Fine) any { return &f.Recursos[0].Condicao }},
	{"recurso2_numero", func(f *domain.Fine) any { return &f.Recursos[1].Numero }},
	{"recurso2_data", func(f *domain.Fine) any { return &f.Recursos[1].Data }},
	{"recurso2_condicao", func(f *domain.Fine) any { return &f.Recursos[1].Condicao }},
	{"recurso3_numero", func(f *domain.Fine) any { return &f.Recursos[2].Numero }},
	{"recurso3_data", func(f *domain.Fine) any { return &f.Recursos[2].Data }},
	{"recurso3_condicao", func(f *domain.Fine) any { return &f.Recursos[2].Condicao }},
	{"auto_infracao_numero", func(f *domain.Fine) any { return &f.AutoDeInfracao.Numero }},
	{"auto_infracao_emissao", func(f *domain.Fine) any { return &f.AutoDeInfracao.Emissao }},
	{"auto_infracao_recebimento", func(f *domain.Fine) any { return &f.AutoDeInfracao.Recebimento }},
	{"auto_infracao_considerado", func(f *domain.Fine) any { return &f.AutoDeInfracao.Considerado }},
	{"auto_infracao_valor_doc", func(f *domain.Fine) any { return &f.AutoDeInfracao.ValorDoDoc }},
	{"auto_infracao_valor_considerado", func(f *domain.Fine) any { return &f.AutoDeInfracao.ValorConsiderado }},
	{"auto_infracao_prazo", func(f *domain.Fine) any { return &f.AutoDeInfracao.Prazo }},
	{"notificacao1_numero", func(f *domain.Fine) any { return &f.Notificacoes[0].Numero }},
	{"notificacao1_emissao", func(f *domain.Fine) any { return &f.Notificacoes[0].Emissao }},
	{"notificacao1_recebimento", func(f *domain.Fine) any { return &f.Notificacoes[0].Recebimento }},
	{"notificacao1_considerado", func(f *domain.Fine) any { return &f.Notificacoes[0].Considerado }},
	{"notificacao1_valor_doc", func(f *domain.Fine) any { return &f.Notificacoes[0].ValorDoDoc }},
	{"notificacao1_valor_considerado", func(f *domain.Fine) any { return &f.Notificacoes[0].ValorConsiderado }},
	{"notificacao1_prazo", func(f *domain.Fine) any { return &f.Notificacoes[0].Prazo }},
	{"notificacao2_numero", func(f *domain.Fine) any { return &f.Notificacoes[1].Numero }},
	{"notificacao2_emissao", func(f *domain.Fine) any { return &f.Notificacoes[1].Emissao }},
	{"notificacao2_recebimento", func(f *domain.Fine) any { return &f.Notificacoes[1].Recebimento }},
	{"notificacao2_considerado", func(f *domain.Fine) any { return &f.Notificacoes[1].Considerado }},
	{"notificacao2_valor_doc", func(f *domain.Fine) any { return &f.Notificacoes[1].ValorDoDoc }},
	{"notificacao2_valor_considerado", func(f *domain.Fine) any { return &f.Notificacoes[1].ValorConsiderado }},
	{"notificacao2_prazo", func(f *domain.Fine) any { return &f.Notificacoes[1].Prazo }},
	{"notificacao3_numero", func(f *domain.Fine) any { return &f.Notificacoes[2].Numero }},
	{"notificacao3_emissao", func(f *domain.Fine) any { return &f.Notificacoes[2].Emissao }},
	{"notificacao3_recebimento", func(f *domain.Fine) any { return &f.Notificacoes[2].Recebimento }},
	{"notificacao3_considerado", func(f *domain.Fine) any { return &f.Notificacoes[2].Considerado }},
	{"notificacao3_valor_doc", func(f *domain.Fine) any { return &f.Notificacoes[2].ValorDoDoc }},
	{"notificacao3_valor_considerado", func(f *domain.Fine) any { return &f.Notificacoes[2].ValorConsiderado }},
	{"notificacao3_prazo", func(f *domain.Fine) any { return &f.Notificacoes[2].Prazo }},
	{"observacao", func(f *domain.Fine) any { return &f.Observacao }},
	{"observacao_real_motivo", func(f *domain.Fine) any { return &f.ObservacaoRealMotivo }},
	{"n_processo_notificacao", func(f *domain.Fine) any { return &f.NProcessoNotificacao }},
	{"numero_processo", func(f *domain.Fine) any { return &f.NumeroProcesso }},
	{"synced_at", func(f *domain.Fine) any { return &f.SyncedAt }},
}

var (
	fineColumns   = fineColumnList("")
	fineColumnsF  = fineColumnList("f.")
	upsertFineSQL = buildUpsertFine()
)

func fineColumnList(prefix string) string {
	cols := make([]string, len(fineFields))
	for i, fld := range fineFields {
		cols[i] = prefix + fld.col
	}
	return strings.Join(cols, ", ")
}

func buildUpsertFine() string {
	placeholders := make([]string, len(fineFields))
	updates := make([]string, 0, len(fineFields)-1)
	for i, fld := range fineFields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if fld.col != "numero_ai_multa" {
			updates = append(updates, fld.col+" = EXCLUDED."+fld.col)
		}
	}
	return "INSERT INTO multas_cache (" + fineColumns + ") VALUES (" + strings.Join(placeholders, ", ") + ")" +
		" ON CONFLICT (numero_ai_multa) DO UPDATE SET " + strings.Join(updates, ", ") +
		" RETURNING (xmax = 0)"
}

func fineTargets(f *domain.Fine) []any {
	out := make([]any, len(fineFields))
	for i, fld := range fineFields {
		out[i] = fld.ref(f)
	}
	return out
}

func scanFines(rows pgx.Rows) ([]domain.Fine, error) {
	defer rows.Close()
	var out []domain.Fine
	for rows.Next() {
		var f domain.Fine
		if err := rows.Scan(fineTargets(&f)...); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFine returns a cached fine by number.
func (db *DB) GetFine(ctx context.Context, numero string) (domain.Fine, error) {
	var f domain.Fine
	err := db.q.QueryRow(ctx, `SELECT `+fineColumns+` FROM multas_cache WHERE numero_ai_multa = $1`, numero).
		Scan(fineTargets(&f)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return f, domain.ErrNotFound
	}
	return f, err
}

// UpsertFine overwrites every mapped column of the fine and reports whether
// the row was new.
func (db *DB) UpsertFine(ctx context.Context, f domain.Fine) (bool, error) {
	if f.NumeroAiMulta == "" {
		return false, fmt.Errorf("%w: empty fine number", domain.ErrInvalidInput)
	}
	if f.SyncedAt.IsZero() {
		f.SyncedAt = time.Now()
	}
	var inserted bool
	err := db.q.QueryRow(ctx, upsertFineSQL, fineTargets(&f)...).Scan(&inserted)
	return inserted, err
}

// Freshness counts cached fines issued in r and returns their latest sync time.
func (db *DB) Freshness(ctx context.Context, r domain.DateRange) (int, *time.Time, error) {
	var count int
	var last *time.Time
	err := db.q.QueryRow(ctx, `
		SELECT COUNT(*), MAX(synced_at) FROM multas_cache
		WHERE data_emissao_multa >= $1 AND data_emissao_multa < $2
	`, r.Inicio, r.Until()).Scan(&count, &last)
	return count, last, err
}

// SearchFines returns one page of the filtered set plus the full match count.
func (db *DB) SearchFines(ctx context.Context, q domain.FineQuery) ([]domain.Fine, int, error) {
	var b fineSQL
	from := b.from(q.Now)
	where := b.where(q)

	var total int
	if err := db.q.QueryRow(ctx, `SELECT COUNT(*) FROM `+from+where, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fines: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	limit := b.arg(q.Limit)
	offset := b.arg(q.Offset())
	rows, err := db.q.Query(ctx, `SELECT `+fineColumnsF+` FROM `+from+where+orderBy(q)+` LIMIT `+limit+` OFFSET `+offset, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search fines: %w", err)
	}
	page, err := scanFines(rows)
	return page, total, err
}

// ListFines returns every fine of the filtered set in the requested order.
func (db *DB) ListFines(ctx context.Context, q domain.FineQuery) ([]domain.Fine, error) {
	var b fineSQL
	from := b.from(q.Now)
	where := b.where(q)
	rows, err := db.q.Query(ctx, `SELECT `+fineColumnsF+` FROM `+from+where+orderBy(q), b.args...)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	return scanFines(rows)
}

// SummarizeFines aggregates the whole filtered set in one pass.
func (db *DB) SummarizeFines(ctx context.Context, q domain.FineQuery) (domain.Summary, error) {
	var b fineSQL
	from := b.from(q.Now)
	where := b.where(q)
	var s domain.Summary
	err := db.q.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(f.valor_multa), 0),
			COALESCE(ROUND(AVG(f.valor_multa), 2), 0),
			COALESCE(MIN(f.valor_multa), 0),
			COALESCE(MAX(f.valor_multa), 0),
			COALESCE(SUM(f.valor_pago), 0),
			COUNT(*) FILTER (WHERE f.tipo_multa = 'TRANSITO'),
			COUNT(*) FILTER (WHERE f.tipo_multa = 'SEMOB'),
			COALESCE(SUM(f.valor_multa) FILTER (WHERE f.tipo_multa = 'TRANSITO'), 0),
			COALESCE(SUM(f.valor_multa) FILTER (WHERE f.tipo_multa = 'SEMOB'), 0),
			COUNT(*) FILTER (WHERE f.responsavel_multa = 'F'),
			COUNT(*) FILTER (WHERE f.responsavel_multa = 'E'),
			COUNT(*) FILTER (WHERE f.gravidade = 'A'),
			COUNT(*) FILTER (WHERE f.gravidade = 'B'),
			COUNT(*) FILTER (WHERE f.gravidade = 'C'),
			COUNT(*) FILTER (WHERE f.gravidade = 'INDEFINIDO'),
			COUNT(*) FILTER (WHERE f.status_multa = 'PAGA'),
			COUNT(*) FILTER (WHERE f.status_multa = 'RECURSO'),
			COUNT(*) FILTER (WHERE f.status_multa = 'VENCIDA'),
			COUNT(*) FILTER (WHERE f.status_multa = 'PENDENTE'),
			COUNT(*) FILTER (WHERE f.alerta_defesa),
			COUNT(f.observacao_real_motivo),
			COUNT(f.n_processo_notificacao),
			COUNT(f.cod_int_linha),
			COUNT(f.agente_codigo),
			COUNT(DISTINCT f.prefixo_veic),
			COUNT(DISTINCT f.agente_codigo),
			COUNT(DISTINCT f.local_multa)
		FROM `+from+where, b.args...).Scan(
		&s.TotalMultas, &s.ValorTotal, &s.ValorMedio, &s.ValorMinimo, &s.ValorMaximo, &s.ValorPagoTotal,
		&s.MultasTransito, &s.MultasSemob, &s.ValorTransito, &s.ValorSemob,
		&s.MultasFuncionario, &s.MultasEmpresa,
		&s.GravidadeA, &s.GravidadeB, &s.GravidadeC, &s.GravidadeIndefinida,
		&s.Pagas, &s.EmRecurso, &s.Vencidas, &s.Pendentes,
		&s.AlertasDefesa,
		&s.ComObservacaoRealMotivo, &s.ComProcessoNotificacao, &s.ComCodigoLinha, &s.ComAgente,
		&s.VeiculosUnicos, &s.AgentesUnicos, &s.LocaisUnicos,
	)
	if err != nil {
		return s, fmt.Errorf("summarize fines: %w", err)
	}
	return s, nil
}

// GroupFines aggregates the filtered set by one dimension, largest groups first.
func (db *DB) GroupFines(ctx context.Context, q domain.FineQuery, by domain.GroupDimension) ([]domain.Group, error) {
	exprs, ok := groupExprs[by]
	if !ok {
		return nil, fmt.Errorf("%w: groupBy %q", domain.ErrInvalidInput, by)
	}
	var b fineSQL
	from := b.from(q.Now)
	where := b.where(q)
	rows, err := db.q.Query(ctx, `
		SELECT `+exprs[0]+` AS chave, `+exprs[1]+` AS rotulo,
			COUNT(*), COALESCE(SUM(f.valor_multa), 0), COALESCE(ROUND(AVG(f.valor_multa), 2), 0)
		FROM `+from+where+`
		GROUP BY 1
		ORDER BY 3 DESC, 1`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("group fines: %w", err)
	}
	defer rows.Close()
	var out []domain.Group
	for rows.Next() {
		var g domain.Group
		var label *string
		if err := rows.Scan(&g.Chave, &label, &g.Quantidade, &g.ValorTotal, &g.ValorMedio); err != nil {
			return nil, err
		}
		if label != nil {
			g.Rotulo = *label
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// FineStats describes the whole cache.
func (db *DB) FineStats(ctx context.Context) (domain.CacheStats, error) {
	var s domain.CacheStats
	err := db.q.QueryRow(ctx, `
		SELECT COUNT(*), MAX(synced_at), MIN(data_emissao_multa), MAX(data_emissao_multa),
			COALESCE(SUM(valor_multa), 0), COUNT(DISTINCT prefixo_veic)
		FROM multas_cache
	`).Scan(&s.TotalRegistros, &s.UltimaSincronizacao, &s.MultaMaisAntiga, &s.MultaMaisRecente, &s.ValorTotal, &s.VeiculosDistintos)
	return s, err
}

// PurgeFinesIssuedBefore deletes fines issued before cutoff.
func (db *DB) PurgeFinesIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.q.Exec(ctx, `DELETE FROM multas_cache WHERE data_emissao_multa < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FinesWithDefenseDeadline lists fines whose defense deadline is in [from, to),
// most urgent first.
func (db *DB) FinesWithDefenseDeadline(ctx context.Context, from, to time.Time) ([]domain.Fine, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+fineColumns+` FROM multas_cache
		WHERE data_limite_condutor >= $1 AND data_limite_condutor < $2
		ORDER BY data_limite_condutor ASC, numero_ai_multa
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanFines(rows)
}
