package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/pkg/metrics"
)

// Config holds notification gateway configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client forwards notification requests to the platform's notification
// gateway. Retry policy belongs to the gateway; this client reports
// failures and nothing more.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new notification client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type notifyPayload struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
	Link        string `json:"link,omitempty"`
}

// Notify submits one notification request
func (c *Client) Notify(ctx context.Context, n port.Notification) error {
	body, err := json.Marshal(notifyPayload{
		RecipientID: n.RecipientID,
		Message:     n.Message,
		Link:        n.Link,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.NotificationDispatches.WithLabelValues("error").Inc()
		return fmt.Errorf("notification gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.NotificationDispatches.WithLabelValues("error").Inc()
		return fmt.Errorf("notification gateway returned status %d", resp.StatusCode)
	}

	metrics.NotificationDispatches.WithLabelValues("ok").Inc()
	c.logger.Debug("Notification dispatched", zap.String("recipient_id", n.RecipientID))
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Client)(nil)
