package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/flow"
)

// Config holds signing service configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the external signing backend that stamps documents. The
// engine treats any failure as non-retryable for itself; only transport
// failures are surfaced as retryable to the original caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new signing client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type signPayload struct {
	DocumentID string `json:"document_id"`
	SignerID   string `json:"signer_id"`
	Artifact   []byte `json:"artifact"`
	Extension  string `json:"extension"`
}

type signError struct {
	Detail string `json:"detail"`
}

// Sign submits the artifact for stamping. Connectivity failures map to
// flow.ErrSigningUnavailable, a backend rejection to flow.ErrSigningFailed.
func (c *Client) Sign(ctx context.Context, req port.SignRequest) error {
	body, err := json.Marshal(signPayload{
		DocumentID: req.DocumentID,
		SignerID:   req.SignerID,
		Artifact:   req.Artifact,
		Extension:  req.Extension,
	})
	if err != nil {
		return fmt.Errorf("encode sign request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sign request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Signing service unreachable", zap.Error(err))
		return fmt.Errorf("%w: %v", flow.ErrSigningUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		c.logger.Error("Signing service error", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", flow.ErrSigningUnavailable, resp.StatusCode)
	default:
		detail := readErrorDetail(resp.Body)
		c.logger.Warn("Signing service rejected artifact",
			zap.Int("status", resp.StatusCode), zap.String("detail", detail))
		if detail == "" {
			return fmt.Errorf("%w: status %d", flow.ErrSigningFailed, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", flow.ErrSigningFailed, detail)
	}
}

func readErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var se signError
	if err := json.Unmarshal(data, &se); err != nil {
		return ""
	}
	return se.Detail
}

// Verify interface compliance
var _ port.SigningDelegate = (*Client)(nil)
