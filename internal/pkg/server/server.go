package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/anicoll/doorbell-integration/internal/pkg/backend"
	"github.com/anicoll/doorbell-integration/internal/pkg/camera"
	"github.com/anicoll/doorbell-integration/internal/pkg/detector"
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/anicoll/doorbell-integration/internal/pkg/pairing"
	"go.uber.org/zap"
)

const (
	maxBodySize        = 1 << 20
	defaultEventsLimit = 20
)

var errNoState = errors.New("no doorbell event published yet")

type detectorService interface {
	DetectedEntities() model.DetectedEntities
	Statistics() model.DetectorStatistics
	Rediscover(ctx context.Context, resetManual bool) error
	ManualPair(ctx context.Context, doorbellID, cameraID string) (model.Pair, error)
	TestDoorbell(ctx context.Context, doorbellID string) error
}

type automationService interface {
	Statistics() model.Statistics
}

type snapshotService interface {
	TestSnapshot(ctx context.Context, cameraID string) (*model.SnapshotRecord, error)
	Statistics() model.SnapshotStatistics
}

type backendService interface {
	TestConnection(ctx context.Context) backend.ConnectionReport
}

type stateStore interface {
	Latest() (model.LocalState, bool)
}

type eventStore interface {
	Recent(ctx context.Context, limit int) ([]model.AutomationEvent, error)
}

type server struct {
	detector   detectorService
	automation automationService
	snapshots  snapshotService
	backend    backendService
	state      stateStore
	events     eventStore
	logger     *zap.Logger
}

// New builds the control API. events may be nil when no event store is configured.
func New(d detectorService, a automationService, s snapshotService, b backendService, state stateStore, events eventStore) *server {
	return &server{
		detector:   d,
		automation: a,
		snapshots:  s,
		backend:    b,
		state:      state,
		events:     events,
		logger:     zap.L(),
	}
}

// Handler routes the control API. metrics is served on /metrics, middlewares wrap everything.
func (s *server) Handler(metrics http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.getHealth)
	mux.HandleFunc("GET /api/statistics", s.getStatistics)
	mux.HandleFunc("GET /api/entities", s.getEntities)
	mux.HandleFunc("POST /api/pairs", s.postPair)
	mux.HandleFunc("POST /api/discover", s.postDiscover)
	mux.HandleFunc("POST /api/doorbells/{entity_id}/test", s.postTestDoorbell)
	mux.HandleFunc("POST /api/cameras/{entity_id}/snapshot", s.postSnapshot)
	mux.HandleFunc("GET /api/backend", s.getBackend)
	mux.HandleFunc("GET /api/state", s.getState)
	mux.HandleFunc("GET /api/events", s.getEvents)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	var h http.Handler = mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

type statisticsResponse struct {
	Automation model.Statistics         `json:"automation"`
	Detector   model.DetectorStatistics `json:"detector"`
	Snapshots  model.SnapshotStatistics `json:"snapshots"`
}

type pairRequest struct {
	DoorbellEntity string `json:"doorbell_entity"`
	CameraEntity   string `json:"camera_entity"`
}

type discoverRequest struct {
	ResetManual bool `json:"reset_manual"`
}

func (s *server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) getStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statisticsResponse{
		Automation: s.automation.Statistics(),
		Detector:   s.detector.Statistics(),
		Snapshots:  s.snapshots.Statistics(),
	})
}

func (s *server) getEntities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.detector.DetectedEntities())
}

func (s *server) postPair(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[pairRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if req.DoorbellEntity == "" || req.CameraEntity == "" {
		s.handleError(w, errBadRequest("doorbell_entity and camera_entity are required"))
		return
	}
	pair, err := s.detector.ManualPair(r.Context(), req.DoorbellEntity, req.CameraEntity)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (s *server) postDiscover(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[discoverRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if err := s.detector.Rediscover(r.Context(), req.ResetManual); err != nil {
		s.handleError(w, err)
		return
	}
	s.logger.Info("rediscovered doorbell entities", zap.Bool("reset_manual", req.ResetManual))
	writeJSON(w, http.StatusOK, s.detector.DetectedEntities())
}

func (s *server) postTestDoorbell(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("entity_id")
	if err := s.detector.TestDoorbell(r.Context(), id); err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "doorbell_entity": id})
}

func (s *server) postSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.snapshots.TestSnapshot(r.Context(), r.PathValue("entity_id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) getBackend(w http.ResponseWriter, r *http.Request) {
	report := s.backend.TestConnection(r.Context())
	status := http.StatusOK
	if !report.Connected {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, report)
}

func (s *server) getState(w http.ResponseWriter, _ *http.Request) {
	state, ok := s.state.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errNoState.Error()})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) getEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []model.AutomationEvent{})
		return
	}
	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.handleError(w, errBadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type errorResponse struct {
	Error string `json:"error"`
}

type badRequestError string

func errBadRequest(msg string) error { return badRequestError(msg) }

func (e badRequestError) Error() string { return string(e) }

func (s *server) handleError(w http.ResponseWriter, err error) {
	var badRequest badRequestError
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &badRequest), errors.As(err, &syntax), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		status = http.StatusBadRequest
	case errors.Is(err, pairing.ErrEntityNotFound), errors.Is(err, detector.ErrNotDoorbell):
		status = http.StatusNotFound
	case errors.Is(err, detector.ErrNotRunning):
		status = http.StatusServiceUnavailable
	case errors.Is(err, camera.ErrCapture):
		status = http.StatusBadGateway
	default:
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// unmarshalPayload decodes a JSON body. An empty body yields the zero value.
func unmarshalPayload[T any](r *http.Request) (*T, error) {
	var out T
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &out, nil
}
