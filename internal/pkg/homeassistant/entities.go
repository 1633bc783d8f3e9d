package homeassistant

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
)

// States returns the current state of every entity.
func (s *service) States(ctx context.Context) ([]model.Entity, error) {
	raw, err := s.command(ctx, cmdGetStates, nil)
	if err != nil {
		return nil, err
	}
	var states []model.Entity
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, fmt.Errorf("decode states: %w", err)
	}
	return states, nil
}

// Entities merges the entity registry with the state machine. Entities without a
// registry entry are reported as enabled.
func (s *service) Entities(ctx context.Context) ([]model.Entity, error) {
	states, err := s.States(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.command(ctx, cmdEntityRegistry, nil)
	if err != nil {
		return nil, err
	}
	var registry []registryEntry
	if err := json.Unmarshal(raw, &registry); err != nil {
		return nil, fmt.Errorf("decode entity registry: %w", err)
	}

	byID := make(map[string]model.Entity, len(states)+len(registry))
	for _, st := range states {
		byID[st.EntityID] = st
	}
	for _, entry := range registry {
		e, ok := byID[entry.EntityID]
		if !ok {
			e = model.Entity{EntityID: entry.EntityID}
		}
		switch {
		case entry.Name != nil:
			e.Name = *entry.Name
		case entry.OriginalName != nil:
			e.Name = *entry.OriginalName
		}
		e.Disabled = entry.DisabledBy != nil
		byID[entry.EntityID] = e
	}

	out := make([]model.Entity, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.Entity) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	return out, nil
}
