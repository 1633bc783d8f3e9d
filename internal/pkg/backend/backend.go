package backend

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultURL = "http://localhost:3001"
	userAgent  = "whorang-doorbell-integration/1.0"
	healthPath = "/api/health"
)

var fallbackURLs = []string{
	"http://whorang:3001",
	"http://127.0.0.1:3001",
	"http://whorang-addon:3001",
}

// Candidates lists the endpoints probed during discovery, configured one first.
func Candidates(configured string) []string {
	primary := strings.TrimRight(strings.TrimSpace(configured), "/")
	if primary == "" {
		primary = DefaultURL
	}
	return lo.Uniq(append([]string{primary}, fallbackURLs...))
}

type Client struct {
	cfg        config.BackendConfig
	httpClient *http.Client
	candidates []string
	schema     *openapi3.Schema
	logger     *zap.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	endpoint *model.BackendEndpoint
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

func New(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	schema, err := loadEventSchema()
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		candidates: Candidates(cfg.URL),
		schema:     schema,
		logger:     zap.L(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Endpoint returns the cached endpoint, if discovery has succeeded since the last connection failure.
func (c *Client) Endpoint() (model.BackendEndpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.endpoint == nil {
		return model.BackendEndpoint{}, false
	}
	return *c.endpoint, true
}

func (c *Client) clearEndpoint() {
	c.mu.Lock()
	c.endpoint = nil
	c.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
