package pairing

import (
	"testing"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T) *Engine {
	e := NewEngine()
	e.logger = zaptest.NewLogger(t)
	return e
}

func existsIn(ids ...string) func(string) bool {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

func doorbells(ids ...string) []model.DoorbellCandidate {
	out := make([]model.DoorbellCandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.DoorbellCandidate{EntityID: id, Priority: 100, TriggerStates: []string{"on"}})
	}
	return out
}

func cameras(ids ...string) []model.CameraCandidate {
	out := make([]model.CameraCandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.CameraCandidate{EntityID: id, Priority: 80})
	}
	return out
}

func TestScore(t *testing.T) {
	tests := map[string]struct {
		doorbell string
		camera   string
		want     int
	}{
		"exact name after device words removed": {
			doorbell: "binary_sensor.front_doorbell",
			camera:   "camera.front_doorbell_camera",
			// 100 exact + 2*20 tokens + front, door, doorbell locations
			want: 185,
		},
		"brand shared": {
			doorbell: "binary_sensor.reolink_visitor",
			camera:   "camera.reolink_driveway",
			want:     20 + 30,
		},
		"substring brand only": {
			doorbell: "binary_sensor.ring_chime",
			camera:   "camera.ringcam",
			want:     30,
		},
		"nothing in common": {
			doorbell: "binary_sensor.kitchen_window",
			camera:   "camera.garage",
			want:     0,
		},
		"case insensitive": {
			doorbell: "binary_sensor.Porch_Bell",
			camera:   "camera.PORCH",
			want:     20 + 15,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.doorbell, tt.camera))
		})
	}
}

func TestRebuild_FrontDoorbellScenario(t *testing.T) {
	e := newTestEngine(t)
	all := existsIn("binary_sensor.front_doorbell", "camera.front_doorbell_camera")

	pairs := e.Rebuild(doorbells("binary_sensor.front_doorbell"), cameras("camera.front_doorbell_camera"), all)

	require.Len(t, pairs, 1)
	assert.Equal(t, "binary_sensor.front_doorbell", pairs[0].DoorbellID)
	assert.Equal(t, "camera.front_doorbell_camera", pairs[0].CameraID)
	assert.GreaterOrEqual(t, pairs[0].Score, 100)
	assert.False(t, pairs[0].Manual)
}

func TestRebuild_Deterministic(t *testing.T) {
	db := doorbells("binary_sensor.front_doorbell", "binary_sensor.porch_bell", "binary_sensor.garden_doorbell")
	cams := cameras("camera.porch_b", "camera.front_doorbell", "camera.porch_a", "camera.garden")
	all := func(string) bool { return true }

	first := newTestEngine(t).Rebuild(db, cams, all)
	for range 10 {
		assert.Equal(t, first, newTestEngine(t).Rebuild(db, cams, all))
	}
}

func TestRebuild_TieBreaksOnCameraID(t *testing.T) {
	all := func(string) bool { return true }
	db := doorbells("binary_sensor.porch_bell")

	forward := newTestEngine(t).Rebuild(db, cameras("camera.porch_a", "camera.porch_b"), all)
	reverse := newTestEngine(t).Rebuild(db, cameras("camera.porch_b", "camera.porch_a"), all)

	require.Len(t, forward, 1)
	assert.Equal(t, "camera.porch_a", forward[0].CameraID)
	assert.Equal(t, forward, reverse)
}

func TestRebuild_Threshold(t *testing.T) {
	all := func(string) bool { return true }
	e := newTestEngine(t)

	pairs := e.Rebuild(doorbells("binary_sensor.ring_chime", "binary_sensor.garden_doorbell"), cameras("camera.ringcam", "camera.garden"), all)

	assert.Empty(t, pairs)
	_, ok := e.Lookup("binary_sensor.ring_chime")
	assert.False(t, ok)
}

func TestManualPair_SurvivesRebuild(t *testing.T) {
	e := newTestEngine(t)
	all := existsIn("binary_sensor.front_doorbell", "camera.front_doorbell_camera", "camera.garage")

	e.Rebuild(doorbells("binary_sensor.front_doorbell"), cameras("camera.front_doorbell_camera", "camera.garage"), all)
	assert.Equal(t, "camera.front_doorbell_camera", e.CameraFor("binary_sensor.front_doorbell"))

	p, err := e.ManualPair("binary_sensor.front_doorbell", "camera.garage", all)
	require.NoError(t, err)
	assert.Equal(t, model.Pair{DoorbellID: "binary_sensor.front_doorbell", CameraID: "camera.garage", Score: 100, Manual: true}, p)

	pairs := e.Rebuild(doorbells("binary_sensor.front_doorbell"), cameras("camera.front_doorbell_camera", "camera.garage"), all)
	require.Len(t, pairs, 1)
	assert.Equal(t, p, pairs[0])
}

func TestManualPair_DroppedWhenEntityRemoved(t *testing.T) {
	e := newTestEngine(t)
	before := existsIn("binary_sensor.front_doorbell", "camera.front_doorbell_camera", "camera.garage")
	_, err := e.ManualPair("binary_sensor.front_doorbell", "camera.garage", before)
	require.NoError(t, err)

	after := existsIn("binary_sensor.front_doorbell", "camera.front_doorbell_camera")
	pairs := e.Rebuild(doorbells("binary_sensor.front_doorbell"), cameras("camera.front_doorbell_camera"), after)

	require.Len(t, pairs, 1)
	assert.Equal(t, "camera.front_doorbell_camera", pairs[0].CameraID)
	assert.False(t, pairs[0].Manual)
}

func TestManualPair_ClearManual(t *testing.T) {
	e := newTestEngine(t)
	all := func(string) bool { return true }
	_, err := e.ManualPair("binary_sensor.front_doorbell", "camera.garage", all)
	require.NoError(t, err)

	e.ClearManual()
	pairs := e.Rebuild(doorbells("binary_sensor.front_doorbell"), cameras("camera.front_doorbell_camera", "camera.garage"), all)

	require.Len(t, pairs, 1)
	assert.Equal(t, "camera.front_doorbell_camera", pairs[0].CameraID)
}

func TestManualPair_EntityNotFound(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ManualPair("binary_sensor.front_doorbell", "camera.missing", existsIn("binary_sensor.front_doorbell"))
	require.ErrorIs(t, err, ErrEntityNotFound)
	assert.Contains(t, err.Error(), "camera.missing")
	assert.Empty(t, e.Pairs())
}

func TestRestore(t *testing.T) {
	e := newTestEngine(t)
	e.Restore([]model.Pair{{DoorbellID: "binary_sensor.a_doorbell", CameraID: "camera.b"}})

	p, ok := e.Lookup("binary_sensor.a_doorbell")
	require.True(t, ok)
	assert.True(t, p.Manual)
	assert.Equal(t, 100, p.Score)
}
