package detector

import (
	"cmp"
	"slices"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/samber/lo"
)

type Classification struct {
	Doorbells []model.DoorbellCandidate
	Cameras   []model.CameraCandidate
}

type Classifier struct {
	minPriority int
}

func NewClassifier(minPriority int) *Classifier {
	return &Classifier{minPriority: minPriority}
}

// Classify rebuilds both candidate sets from scratch. Results are sorted by entity id.
func (c *Classifier) Classify(entities []model.Entity) Classification {
	enabled := lo.Filter(entities, func(e model.Entity, _ int) bool {
		return !e.Disabled
	})

	out := Classification{
		Doorbells: []model.DoorbellCandidate{},
		Cameras:   []model.CameraCandidate{},
	}
	for _, e := range enabled {
		switch e.Domain() {
		case model.DomainBinarySensor:
			r, ok := Match(DoorbellRules, e.EntityID, e.Attributes.DeviceClass, c.minPriority)
			if !ok {
				continue
			}
			out.Doorbells = append(out.Doorbells, model.DoorbellCandidate{
				EntityID:      e.EntityID,
				MatchedRule:   r.Name,
				Priority:      r.Priority,
				TriggerStates: slices.Clone(r.TriggerStates),
				DeviceClass:   e.Attributes.DeviceClass,
				DisplayName:   e.DisplayName(),
			})
		case model.DomainCamera:
			r, ok := Match(CameraRules, e.EntityID, "", c.minPriority)
			if !ok {
				continue
			}
			out.Cameras = append(out.Cameras, model.CameraCandidate{
				EntityID:    e.EntityID,
				MatchedRule: r.Name,
				Priority:    r.Priority,
				DisplayName: e.DisplayName(),
			})
		}
	}

	slices.SortFunc(out.Doorbells, func(a, b model.DoorbellCandidate) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	slices.SortFunc(out.Cameras, func(a, b model.CameraCandidate) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	return out
}
