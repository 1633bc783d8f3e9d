package database

import (
	"context"
	"encoding/json"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Publish records the automation event of a saga. It satisfies the publisher fan-out.
func (db *Database) Publish(ctx context.Context, state model.LocalState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ev := state.LastEvent
	if _, err := db.pool.Exec(ctx, `
		INSERT INTO doorbell_events (doorbell_entity, camera_entity, triggered_at, snapshot_url, backend_submitted, source, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.DoorbellEntity, ev.CameraEntity, ev.Timestamp, ev.SnapshotURL, ev.BackendSubmitted, ev.Source, payload); err != nil {
		return err
	}
	db.logger.Debug("stored doorbell event", zap.String("doorbell_entity", ev.DoorbellEntity))
	return nil
}

// Recent returns the latest automation events, newest first.
func (db *Database) Recent(ctx context.Context, limit int) ([]model.AutomationEvent, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT doorbell_entity, camera_entity, triggered_at, snapshot_url, backend_submitted, source
		FROM doorbell_events
		ORDER BY triggered_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AutomationEvent, error) {
		var ev model.AutomationEvent
		err := row.Scan(&ev.DoorbellEntity, &ev.CameraEntity, &ev.Timestamp, &ev.SnapshotURL, &ev.BackendSubmitted, &ev.Source)
		return ev, err
	})
}
