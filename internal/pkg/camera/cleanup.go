package camera

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cleanup removes snapshots older than the configured age and returns how many went.
func (m *Manager) Cleanup() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-m.cfg.CleanupAfter)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil {
			m.logger.Warn("failed to remove snapshot", zap.String("filename", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("cleaned up old snapshots", zap.Int("removed", removed))
	}
	return removed, nil
}

// Start schedules the cleanup job. It runs in the background until Stop.
func (m *Manager) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(m.cfg.CleanupSchedule, func() {
		if _, err := m.Cleanup(); err != nil {
			m.logger.Error("error cleaning up snapshots", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running cleanup to finish.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
