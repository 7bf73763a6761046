package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getflowline/flowline/common/logger"
	"github.com/getflowline/flowline/common/models"
)

// WebhookConnector makes an outbound HTTP call. Placeholders in the URL,
// header values and body are resolved against the execution context
// before sending. Any response status is a valid output; only transport
// and encoding failures are errors.
type WebhookConnector struct {
	client   *http.Client
	resolver *Resolver
	log      *logger.Logger
}

// NewWebhookConnector creates a webhook connector with a 30s client timeout
func NewWebhookConnector(log *logger.Logger) *WebhookConnector {
	return &WebhookConnector{
		client:   &http.Client{Timeout: 30 * time.Second},
		resolver: NewResolver(log),
		log:      log,
	}
}

// Type returns the connector type tag
func (c *WebhookConnector) Type() models.ConnectorType {
	return models.ConnectorWebhook
}

// Execute sends the request and captures status, decoded body, url and method
func (c *WebhookConnector) Execute(ctx context.Context, step models.Step, execCtx Context) (*models.StepOutput, error) {
	cfg := step.Webhook
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	method := strings.ToUpper(cfg.Method)
	url := c.resolver.ResolveString(cfg.URL, execCtx)

	c.log.Info("making webhook request", "step", step.Name, "method", method, "url", url)

	var (
		req *http.Request
		err error
	)

	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	case http.MethodPost, http.MethodPut:
		// An absent body still posts an empty JSON object
		var body any = map[string]any{}
		if cfg.Body != nil {
			body = c.resolver.Resolve(cfg.Body, execCtx)
		}

		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to encode webhook body: %w", marshalErr)
		}

		req, err = http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, c.resolver.ResolveString(value, execCtx))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	var responseData any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &responseData); err != nil {
			return nil, fmt.Errorf("failed to decode webhook response: %w", err)
		}
	} else {
		responseData = string(raw)
	}

	return &models.StepOutput{
		Type: models.ConnectorWebhook,
		Webhook: &models.WebhookOutput{
			StatusCode:   resp.StatusCode,
			ResponseData: responseData,
			URL:          url,
			Method:       method,
		},
	}, nil
}
