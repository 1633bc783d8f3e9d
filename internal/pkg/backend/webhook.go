package backend

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/getkin/kin-openapi/openapi3"
)

const webhookPath = "/api/webhook/doorbell"

//go:embed openapi.json
var openapiSpec []byte

func loadEventSchema() (*openapi3.Schema, error) {
	doc, err := openapi3.NewLoader().LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load webhook schema: %w", err)
	}
	ref, ok := doc.Components.Schemas["DoorbellEvent"]
	if !ok || ref.Value == nil {
		return nil, errors.New("webhook schema has no DoorbellEvent")
	}
	return ref.Value, nil
}

// ValidateEvent checks a payload against the webhook schema.
func (c *Client) ValidateEvent(payload model.DoorbellEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := c.schema.VisitJSON(value); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// ProcessDoorbellEvent submits a doorbell event and reports whether the backend accepted it.
func (c *Client) ProcessDoorbellEvent(ctx context.Context, payload model.DoorbellEventPayload) (bool, error) {
	if err := c.ValidateEvent(payload); err != nil {
		return false, err
	}
	res, err := c.Request(ctx, http.MethodPost, webhookPath, payload, nil)
	if err != nil {
		return false, err
	}
	return res.Accepted(), nil
}
