package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"go.uber.org/zap"
)

var errAlreadyRegistered = errors.New("publisher already registered")

type publisher interface {
	// Publish pushes the latest local state to one downstream observer.
	Publish(ctx context.Context, state model.LocalState) error
}

// Fanout publishes local state to every registered publisher and remembers the
// last state it was given.
type Fanout struct {
	mu         sync.RWMutex
	publishers map[string]publisher
	order      []string
	latest     *model.LocalState
	logger     *zap.Logger
}

func New() *Fanout {
	return &Fanout{
		publishers: make(map[string]publisher),
		logger:     zap.L(),
	}
}

func (f *Fanout) RegisterPublisher(name string, p publisher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.publishers[name]; ok {
		return fmt.Errorf("%w: %s", errAlreadyRegistered, name)
	}
	f.publishers[name] = p
	f.order = append(f.order, name)
	return nil
}

// Publish stores the state, then tries every publisher. Failures are joined.
func (f *Fanout) Publish(ctx context.Context, state model.LocalState) error {
	f.mu.Lock()
	f.latest = &state
	names := append([]string(nil), f.order...)
	pubs := make([]publisher, 0, len(names))
	for _, name := range names {
		pubs = append(pubs, f.publishers[name])
	}
	f.mu.Unlock()

	var errs []error
	for i, p := range pubs {
		if err := p.Publish(ctx, state); err != nil {
			f.logger.Error("failed to publish state", zap.Error(err), zap.String("publisher", names[i]))
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
			continue
		}
		f.logger.Debug("published state", zap.String("publisher", names[i]))
	}
	return errors.Join(errs...)
}

// Latest returns the most recently published state.
func (f *Fanout) Latest() (model.LocalState, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return model.LocalState{}, false
	}
	return *f.latest, true
}
