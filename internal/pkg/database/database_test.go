package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/database/migration"
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("doorbell"),
		postgres.WithUsername("doorbell"),
		postgres.WithPassword("doorbell"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	folder, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(dsn, folder))
	// second run is a no-op
	require.NoError(t, migration.Migrate(dsn, folder))

	db, err := New(ctx, dsn)
	require.NoError(t, err)
	db.logger = zaptest.NewLogger(t)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDatabase(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	t.Run("events", func(t *testing.T) {
		url := "http://ha.local/local/whorang_snapshots/a.jpg"
		now := time.Now().UTC().Truncate(time.Millisecond)
		old := model.LocalState{LastEvent: model.AutomationEvent{
			DoorbellEntity: "binary_sensor.front_doorbell",
			Timestamp:      now.Add(-48 * time.Hour),
			Source:         model.AutomationSource,
		}}
		recent := model.LocalState{LastEvent: model.AutomationEvent{
			DoorbellEntity:   "binary_sensor.front_doorbell",
			CameraEntity:     "camera.front_doorbell",
			Timestamp:        now,
			SnapshotURL:      &url,
			BackendSubmitted: true,
			Source:           model.AutomationSource,
		}}
		require.NoError(t, db.Publish(ctx, old))
		require.NoError(t, db.Publish(ctx, recent))

		events, err := db.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "camera.front_doorbell", events[0].CameraEntity)
		assert.True(t, events[0].BackendSubmitted)
		require.NotNil(t, events[0].SnapshotURL)
		assert.Equal(t, url, *events[0].SnapshotURL)
		assert.Nil(t, events[1].SnapshotURL)

		removed, err := db.Cleanup(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		events, err = db.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("manual pairs", func(t *testing.T) {
		require.NoError(t, db.SaveManualPair(ctx, model.Pair{DoorbellID: "binary_sensor.b", CameraID: "camera.one"}))
		require.NoError(t, db.SaveManualPair(ctx, model.Pair{DoorbellID: "binary_sensor.a", CameraID: "camera.two"}))
		require.NoError(t, db.SaveManualPair(ctx, model.Pair{DoorbellID: "binary_sensor.b", CameraID: "camera.three"}))

		pairs, err := db.ManualPairs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Pair{
			{DoorbellID: "binary_sensor.a", CameraID: "camera.two", Manual: true},
			{DoorbellID: "binary_sensor.b", CameraID: "camera.three", Manual: true},
		}, pairs)

		require.NoError(t, db.DeleteManualPairs(ctx))
		pairs, err = db.ManualPairs(ctx)
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})
}
