package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"juridico/internal/domain"
)

const vehicleColumns = `prefixo_veiculo, codigo_empresa, placa_veiculo, codigo_garagem, nome_garagem,
	tipo_frota_descricao, data_inicio_utilizacao, situacao, synced_at`

func collectVehicles(rows pgx.Rows) ([]domain.FleetVehicle, error) {
	defer rows.Close()
	var out []domain.FleetVehicle
	for rows.Next() {
		var v domain.FleetVehicle
		if err := rows.Scan(&v.Prefixo, &v.CodigoEmpresa, &v.Placa, &v.Sector.Codigo, &v.Sector.Nome,
			&v.TipoFrota, &v.DataInicioUtilizacao, &v.Situacao, &v.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// AllVehicles returns the whole local fleet table.
func (db *DB) AllVehicles(ctx context.Context) ([]domain.FleetVehicle, error) {
	rows, err := db.q.Query(ctx, `SELECT `+vehicleColumns+` FROM veiculos_frota ORDER BY prefixo_veiculo`)
	if err != nil {
		return nil, err
	}
	return collectVehicles(rows)
}

// ActiveVehicles returns vehicles currently in service.
func (db *DB) ActiveVehicles(ctx context.Context) ([]domain.FleetVehicle, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+vehicleColumns+` FROM veiculos_frota WHERE situacao = $1 ORDER BY prefixo_veiculo
	`, domain.SituacaoAtivo)
	if err != nil {
		return nil, err
	}
	return collectVehicles(rows)
}

// UpsertVehicle stores v and reports whether the prefix was new.
func (db *DB) UpsertVehicle(ctx context.Context, v domain.FleetVehicle) (bool, error) {
	if v.SyncedAt.IsZero() {
		v.SyncedAt = time.Now()
	}
	var inserted bool
	err := db.q.QueryRow(ctx, `
		INSERT INTO veiculos_frota (`+vehicleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (prefixo_veiculo) DO UPDATE SET
			codigo_empresa = EXCLUDED.codigo_empresa,
			placa_veiculo = EXCLUDED.placa_veiculo,
			codigo_garagem = EXCLUDED.codigo_garagem,
			nome_garagem = EXCLUDED.nome_garagem,
			tipo_frota_descricao = EXCLUDED.tipo_frota_descricao,
			data_inicio_utilizacao = EXCLUDED.data_inicio_utilizacao,
			situacao = EXCLUDED.situacao,
			synced_at = EXCLUDED.synced_at
		RETURNING (xmax = 0)
	`, v.Prefixo, v.CodigoEmpresa, v.Placa, v.Sector.Codigo, v.Sector.Nome,
		v.TipoFrota, v.DataInicioUtilizacao, v.Situacao, v.SyncedAt).Scan(&inserted)
	return inserted, err
}

// CountVehicles returns the fleet size and how many vehicles are active.
func (db *DB) CountVehicles(ctx context.Context) (total, active int, err error) {
	err = db.q.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE situacao = $1) FROM veiculos_frota
	`, domain.SituacaoAtivo).Scan(&total, &active)
	return total, active, err
}
