package homeassistant

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// CameraImage fetches the current still image of a camera entity.
func (s *service) CameraImage(ctx context.Context, entityID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.restURL()+"/api/camera_proxy/"+url.PathEscape(entityID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera proxy returned %d for %s", resp.StatusCode, entityID)
	}
	return io.ReadAll(resp.Body)
}
