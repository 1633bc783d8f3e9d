package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Result is a decoded backend answer. Data is set for JSON bodies (non-object
// values are wrapped under "data"), Raw for anything else.
type Result struct {
	StatusCode int
	Data       map[string]any
	Raw        []byte
}

// Accepted reports whether the backend signalled acceptance of a submitted event.
func (r *Result) Accepted() bool {
	if r == nil || r.Data == nil {
		return false
	}
	if success, ok := r.Data["success"].(bool); ok && success {
		return true
	}
	if status, ok := r.Data["status"].(string); ok && status == "ok" {
		return true
	}
	return r.Data["visitor_id"] != nil
}

// Request performs a call against the discovered backend. Connection failures clear
// the cached endpoint and are retried, every other failure is returned at once.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (*Result, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%w: encode request body: %w", ErrValidation, err)
		}
	}

	attempts := max(c.cfg.RetryAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := c.do(ctx, method, path, payload, query)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrConnection) {
			return nil, err
		}
		lastErr = err
		c.clearEndpoint()
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if attempt < attempts {
			if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrConnection, err)
			}
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, query url.Values) (*Result, error) {
	ep, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	target := ep.URL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrValidation, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrConnection, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrConnection, method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s %s", ErrAuthentication, method, path)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return &Result{StatusCode: resp.StatusCode, Raw: data}, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Result{StatusCode: resp.StatusCode, Data: map[string]any{}}, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed response from %s %s: %w", ErrValidation, method, path, err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		obj = map[string]any{"data": decoded}
	}
	return &Result{StatusCode: resp.StatusCode, Data: obj}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
