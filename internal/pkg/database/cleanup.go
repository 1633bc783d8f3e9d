package database

import (
	"context"
	"time"
)

// Cleanup removes doorbell events recorded before now minus retention.
func (db *Database) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx, "DELETE FROM doorbell_events WHERE triggered_at < $1", time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
