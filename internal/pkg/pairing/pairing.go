package pairing

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var ErrEntityNotFound = errors.New("entity not found")

// MinScore is the score a camera has to beat to be paired automatically.
const MinScore = 30

const manualScore = 100

type Engine struct {
	mu     sync.RWMutex
	pairs  map[string]model.Pair
	logger *zap.Logger
}

func NewEngine() *Engine {
	return &Engine{
		pairs:  make(map[string]model.Pair),
		logger: zap.L(),
	}
}

// Rebuild re-pairs every doorbell. Manual pairs are carried over while both of their
// entities still exist, everything else is recomputed.
func (e *Engine) Rebuild(doorbells []model.DoorbellCandidate, cameras []model.CameraCandidate, exists func(string) bool) []model.Pair {
	ordered := slices.Clone(cameras)
	slices.SortFunc(ordered, func(a, b model.CameraCandidate) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]model.Pair, len(doorbells))
	for id, p := range e.pairs {
		if !p.Manual {
			continue
		}
		if !exists(p.DoorbellID) || !exists(p.CameraID) {
			e.logger.Info("dropping manual pair, entity removed", zap.String("doorbell_entity", p.DoorbellID), zap.String("camera_entity", p.CameraID))
			continue
		}
		next[id] = p
	}

	for _, d := range doorbells {
		if _, manual := next[d.EntityID]; manual {
			continue
		}
		best, bestScore := "", 0
		for _, c := range ordered {
			if s := Score(d.EntityID, c.EntityID); s > bestScore {
				best, bestScore = c.EntityID, s
			}
		}
		if bestScore <= MinScore {
			e.logger.Debug("no camera paired", zap.String("doorbell_entity", d.EntityID), zap.Int("best_score", bestScore))
			continue
		}
		next[d.EntityID] = model.Pair{DoorbellID: d.EntityID, CameraID: best, Score: bestScore}
		e.logger.Info("paired doorbell with camera", zap.String("doorbell_entity", d.EntityID), zap.String("camera_entity", best), zap.Int("score", bestScore))
	}

	e.pairs = next
	return e.sorted()
}

// NewManualPair validates both entities and builds a manual pair without installing it.
func NewManualPair(doorbellID, cameraID string, exists func(string) bool) (model.Pair, error) {
	for _, id := range []string{doorbellID, cameraID} {
		if !exists(id) {
			return model.Pair{}, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
		}
	}
	return model.Pair{DoorbellID: doorbellID, CameraID: cameraID, Score: manualScore, Manual: true}, nil
}

// ManualPair replaces whatever pair the doorbell had.
func (e *Engine) ManualPair(doorbellID, cameraID string, exists func(string) bool) (model.Pair, error) {
	p, err := NewManualPair(doorbellID, cameraID, exists)
	if err != nil {
		return model.Pair{}, err
	}

	e.mu.Lock()
	e.pairs[doorbellID] = p
	e.mu.Unlock()

	e.logger.Info("manual pair created", zap.String("doorbell_entity", doorbellID), zap.String("camera_entity", cameraID))
	return p, nil
}

// Restore loads previously persisted manual pairs. Existence is checked on the next Rebuild.
func (e *Engine) Restore(pairs []model.Pair) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range pairs {
		p.Manual = true
		p.Score = manualScore
		e.pairs[p.DoorbellID] = p
	}
}

func (e *Engine) ClearManual() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, p := range e.pairs {
		if p.Manual {
			delete(e.pairs, id)
		}
	}
}

func (e *Engine) Lookup(doorbellID string) (model.Pair, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pairs[doorbellID]
	return p, ok
}

// CameraFor returns the paired camera id, or "" for an unpaired doorbell.
func (e *Engine) CameraFor(doorbellID string) string {
	p, _ := e.Lookup(doorbellID)
	return p.CameraID
}

// Pairs returns a copy ordered by doorbell id.
func (e *Engine) Pairs() []model.Pair {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sorted()
}

func (e *Engine) sorted() []model.Pair {
	out := lo.Values(e.pairs)
	slices.SortFunc(out, func(a, b model.Pair) int {
		return cmp.Compare(a.DoorbellID, b.DoorbellID)
	})
	return out
}
