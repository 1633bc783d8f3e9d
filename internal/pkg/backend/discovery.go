package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"go.uber.org/zap"
)

// resolve returns the cached endpoint or probes every candidate in order.
func (c *Client) resolve(ctx context.Context) (model.BackendEndpoint, error) {
	if ep, ok := c.Endpoint(); ok {
		return ep, nil
	}
	for _, candidate := range c.candidates {
		if err := c.probe(ctx, candidate); err != nil {
			c.logger.Debug("backend candidate unreachable", zap.String("url", candidate), zap.Error(err))
			continue
		}
		ep := model.BackendEndpoint{URL: candidate, LastVerifiedAt: c.now()}
		c.mu.Lock()
		c.endpoint = &ep
		c.mu.Unlock()
		c.logger.Info("discovered backend", zap.String("url", candidate))
		return ep, nil
	}
	return model.BackendEndpoint{}, fmt.Errorf("%w: no reachable backend among %s", ErrConnection, strings.Join(c.candidates, ", "))
}

func (c *Client) probe(ctx context.Context, baseURL string) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.DiscoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	if !healthy(health.Status) {
		return fmt.Errorf("backend reports status %q", health.Status)
	}
	return nil
}

func healthy(status string) bool {
	return status == "ok" || status == "healthy"
}
