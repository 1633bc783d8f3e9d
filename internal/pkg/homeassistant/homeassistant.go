package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/anicoll/doorbell-integration/pkg/sockets"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("home assistant not connected")
	ErrAuth         = errors.New("home assistant authentication failed")
	ErrCommand      = errors.New("home assistant command failed")
)

const (
	authTimeout    = 15 * time.Second
	commandTimeout = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 32 << 20
)

type service struct {
	cfg        *config.HomeAssistantConfig
	httpClient *http.Client
	logger     *zap.Logger
	lastID     atomic.Int64

	mu            sync.Mutex
	conn          sockets.Connection
	pending       map[int64]chan result
	subscriptions map[int64]func(json.RawMessage)
	authDone      chan error
	disconnected  chan error
}

func New(cfg *config.HomeAssistantConfig) *service {
	return &service{
		cfg:           cfg,
		httpClient:    &http.Client{},
		logger:        zap.L(), // returns the global logger.
		pending:       make(map[int64]chan result),
		subscriptions: make(map[int64]func(json.RawMessage)),
		disconnected:  make(chan error, 1),
	}
}

func (s *service) websocketURL() string {
	u := url.URL{Scheme: "ws", Host: s.cfg.Host, Path: "/api/websocket"}
	if s.cfg.Ssl {
		u.Scheme = "wss"
	}
	return u.String()
}

func (s *service) restURL() string {
	u := url.URL{Scheme: "http", Host: s.cfg.Host}
	if s.cfg.Ssl {
		u.Scheme = "https"
	}
	return u.String()
}

// BaseURL is where locally stored files are served from.
func (s *service) BaseURL() string {
	if s.cfg.ExternalURL != "" {
		return strings.TrimRight(s.cfg.ExternalURL, "/")
	}
	return s.restURL()
}

// Connect dials the websocket API and completes the auth handshake. Any previous
// connection is closed and its subscriptions are dropped.
func (s *service) Connect(ctx context.Context) error {
	s.inspectToken()
	_ = s.Close()

	authDone := make(chan error, 1)
	s.mu.Lock()
	s.authDone = authDone
	s.disconnected = make(chan error, 1)
	s.pending = make(map[int64]chan result)
	s.subscriptions = make(map[int64]func(json.RawMessage))
	s.mu.Unlock()

	conn := sockets.New(
		sockets.OnMessage(s.onMessage),
		sockets.OnError(s.onError),
		sockets.WithPingInterval(pingInterval),
		sockets.WithMaxMessageSize(maxMessageSize),
	)
	s.logger.Debug("connecting to", zap.String("url", s.websocketURL()))
	if err := conn.Dial(ctx, s.websocketURL(), nil); err != nil {
		s.logger.Error("failed to connect to", zap.String("url", s.websocketURL()), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	timer := time.NewTimer(authTimeout)
	defer timer.Stop()
	select {
	case err := <-authDone:
		if err != nil {
			_ = s.Close()
			return err
		}
	case <-timer.C:
		_ = s.Close()
		return fmt.Errorf("%w: timed out waiting for authentication", ErrNotConnected)
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	}
	s.logger.Info("connected to home assistant", zap.String("url", s.websocketURL()))
	return nil
}

// Disconnected receives once when an established connection drops.
func (s *service) Disconnected() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

func (s *service) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.failPending(ErrNotConnected)
	return conn.Close()
}

func (s *service) onMessage(data []byte, c sockets.Connection) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("unreadable message from home assistant", zap.Error(err))
		return
	}

	switch env.Type {
	case typeAuthRequired:
		s.logger.Debug("auth requested", zap.String("ha_version", env.HAVersion))
		body, _ := json.Marshal(authMessage{Type: typeAuth, AccessToken: s.cfg.Token})
		if err := c.Send(sockets.Msg{Body: body}); err != nil {
			s.finishAuth(fmt.Errorf("%w: send auth: %w", ErrNotConnected, err))
		}
	case typeAuthOK:
		s.logger.Debug("authenticated", zap.String("ha_version", env.HAVersion))
		s.finishAuth(nil)
	case typeAuthInvalid:
		s.finishAuth(fmt.Errorf("%w: %s", ErrAuth, env.Message))
	case typeResult:
		s.mu.Lock()
		ch, ok := s.pending[env.ID]
		delete(s.pending, env.ID)
		s.mu.Unlock()
		if !ok {
			return
		}
		if !env.Success {
			msg := "unknown error"
			if env.Error != nil {
				msg = env.Error.Code + ": " + env.Error.Message
			}
			ch <- result{err: fmt.Errorf("%w: %s", ErrCommand, msg)}
			return
		}
		ch <- result{data: env.Result}
	case typeEvent:
		s.mu.Lock()
		handler := s.subscriptions[env.ID]
		s.mu.Unlock()
		if handler != nil {
			handler(env.Event)
		}
	case typePong:
	default:
		s.logger.Debug("ignoring message", zap.String("type", env.Type))
	}
}

func (s *service) finishAuth(err error) {
	s.mu.Lock()
	ch := s.authDone
	s.authDone = nil
	s.mu.Unlock()
	if ch != nil {
		ch <- err
	}
}

func (s *service) onError(err error) {
	s.logger.Warn("home assistant connection lost", zap.Error(err))
	s.mu.Lock()
	s.conn = nil
	disconnected := s.disconnected
	s.mu.Unlock()

	s.finishAuth(fmt.Errorf("%w: %w", ErrNotConnected, err))
	s.failPending(ErrNotConnected)
	select {
	case disconnected <- err:
	default:
	}
}

func (s *service) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[int64]chan result)
	s.mu.Unlock()
	for _, ch := range pending {
		ch <- result{err: err}
	}
}

func (s *service) command(ctx context.Context, msgType string, fields map[string]any) (json.RawMessage, error) {
	return s.commandWithID(ctx, s.lastID.Add(1), msgType, fields)
}

// commandWithID sends a command and waits for its result. Results are matched on id.
func (s *service) commandWithID(ctx context.Context, id int64, msgType string, fields map[string]any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, commandTimeout)
		defer cancel()
	}

	msg := map[string]any{"id": id, "type": msgType}
	maps.Copy(msg, fields)
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	ch := make(chan result, 1)
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.pending[id] = ch
	s.mu.Unlock()

	if err := conn.Send(sockets.Msg{Body: body}); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: send %s: %w", ErrNotConnected, msgType, err)
	}

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", msgType, ctx.Err())
	}
}
