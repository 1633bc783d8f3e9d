package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	snapshotFolder = "whorang_snapshots"
	filePrefix     = "doorbell_snapshot_"
	timeLayout     = "20060102_150405"
)

var ErrCapture = errors.New("snapshot capture failed")

type imageSource interface {
	CameraImage(ctx context.Context, entityID string) ([]byte, error)
}

type Manager struct {
	cfg     config.SnapshotConfig
	source  imageSource
	dir     string
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
	cron    *cron.Cron

	mu        sync.Mutex
	taken     int
	failed    int
	lastTaken *time.Time
}

func New(cfg config.SnapshotConfig, source imageSource, baseURL string) (*Manager, error) {
	dir := filepath.Join(cfg.Dir, snapshotFolder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Manager{
		cfg:     cfg,
		source:  source,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  zap.L(),
		now:     time.Now,
	}, nil
}

// Capture waits delay, then stores the camera's current image.
func (m *Manager) Capture(ctx context.Context, cameraID string, delay time.Duration) (*model.SnapshotRecord, error) {
	rec, err := m.capture(ctx, cameraID, delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed++
		m.logger.Warn("snapshot capture failed", zap.String("camera_entity", cameraID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrCapture, cameraID, err)
	}
	m.taken++
	t := rec.CapturedAt
	m.lastTaken = &t
	m.logger.Info("snapshot captured", zap.String("camera_entity", cameraID), zap.String("filename", rec.Filename), zap.Int64("size", rec.Size))
	return rec, nil
}

// TestSnapshot captures without the pre-capture delay.
func (m *Manager) TestSnapshot(ctx context.Context, cameraID string) (*model.SnapshotRecord, error) {
	return m.Capture(ctx, cameraID, 0)
}

func (m *Manager) capture(ctx context.Context, cameraID string, delay time.Duration) (*model.SnapshotRecord, error) {
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	image, err := m.source.CameraImage(fetchCtx, cameraID)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.New("camera returned an empty image")
	}
	if m.cfg.MaxSize > 0 && int64(len(image)) > m.cfg.MaxSize {
		m.logger.Warn("snapshot larger than configured maximum", zap.String("camera_entity", cameraID), zap.Int("size", len(image)), zap.Int64("max_size", m.cfg.MaxSize))
	}

	now := m.now()
	filename := Filename(cameraID, now, uuid.New().String()[:8])
	path := filepath.Join(m.dir, filename)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	return &model.SnapshotRecord{
		CameraID:   cameraID,
		Filename:   filename,
		Path:       path,
		URL:        fmt.Sprintf("%s/local/%s/%s", m.baseURL, snapshotFolder, filename),
		CapturedAt: now,
		Size:       int64(len(image)),
	}, nil
}

// Filename builds doorbell_snapshot_<camera>_<timestamp>_<id>.jpg.
func Filename(cameraID string, at time.Time, id string) string {
	camera := strings.ReplaceAll(slug.Make(model.ObjectID(cameraID)), "-", "_")
	return fmt.Sprintf("%s%s_%s_%s.jpg", filePrefix, camera, at.Format(timeLayout), id)
}

func (m *Manager) Statistics() model.SnapshotStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := model.SnapshotStatistics{
		Taken:     m.taken,
		Failed:    m.failed,
		LastTaken: m.lastTaken,
		Directory: m.dir,
		Quality:   m.cfg.Quality,
	}
	if total := m.taken + m.failed; total > 0 {
		stats.SuccessRate = float64(m.taken) / float64(total) * 100
	}
	return stats
}
