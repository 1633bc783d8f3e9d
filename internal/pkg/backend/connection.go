package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	DeploymentAddon     = "hassos_addon"
	DeploymentContainer = "docker_container"
	DeploymentCustom    = "custom"
)

type ConnectionReport struct {
	Connected      bool           `json:"connected"`
	URL            string         `json:"url,omitempty"`
	DeploymentType string         `json:"deployment_type,omitempty"`
	Candidates     []string       `json:"candidates"`
	Health         map[string]any `json:"health,omitempty"`
	Error          string         `json:"error,omitempty"`
}

func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	res, err := c.Request(ctx, http.MethodGet, healthPath, nil, nil)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ValidateConnection is true when the backend answers its health check with a healthy status.
func (c *Client) ValidateConnection(ctx context.Context) bool {
	health, err := c.Health(ctx)
	if err != nil {
		c.logger.Warn("backend connection validation failed", zap.Error(err))
		return false
	}
	status, _ := health["status"].(string)
	return healthy(status)
}

// TestConnection forces a fresh discovery and reports what was found.
func (c *Client) TestConnection(ctx context.Context) ConnectionReport {
	c.clearEndpoint()
	report := ConnectionReport{Candidates: c.candidates}

	health, err := c.Health(ctx)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	ep, ok := c.Endpoint()
	if !ok {
		report.Error = "no endpoint cached after health check"
		return report
	}
	status, _ := health["status"].(string)
	report.Connected = healthy(status)
	report.URL = ep.URL
	report.DeploymentType = DeploymentType(ep.URL)
	report.Health = health
	return report
}

// DeploymentType guesses how the backend is deployed from its URL.
func DeploymentType(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DeploymentCustom
	}
	host := u.Hostname()
	switch {
	case host == "localhost" || host == "127.0.0.1":
		return DeploymentAddon
	case strings.Contains(host, "whorang"):
		return DeploymentContainer
	default:
		return DeploymentCustom
	}
}
