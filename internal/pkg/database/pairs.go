package database

import (
	"context"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/jackc/pgx/v5"
)

func (db *Database) SaveManualPair(ctx context.Context, pair model.Pair) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO manual_pairs (doorbell_entity, camera_entity)
		VALUES ($1, $2)
		ON CONFLICT (doorbell_entity) DO UPDATE SET camera_entity = EXCLUDED.camera_entity, created_at = now()
	`, pair.DoorbellID, pair.CameraID)
	return err
}

func (db *Database) DeleteManualPairs(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM manual_pairs`)
	return err
}

func (db *Database) ManualPairs(ctx context.Context) ([]model.Pair, error) {
	rows, err := db.pool.Query(ctx, `SELECT doorbell_entity, camera_entity FROM manual_pairs ORDER BY doorbell_entity`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Pair, error) {
		p := model.Pair{Manual: true}
		err := row.Scan(&p.DoorbellID, &p.CameraID)
		return p, err
	})
}
