package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/dto"
	"github.com/gradeflow/gradeflow-api/pkg/errors"
)

// PolicyServerClient talks to the external scoring engine's control API. The
// engine consumes the raw-grade channel and publishes to the scored channel
// named in the start message.
type PolicyServerClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewPolicyServerClient constructs the client.
func NewPolicyServerClient(baseURL string, timeout time.Duration, logger *zap.Logger) *PolicyServerClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyServerClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// AnnounceGradingStart tells the engine to begin grading a migration.
func (c *PolicyServerClient) AnnounceGradingStart(ctx context.Context, msg dto.GradingStartMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode grading start message: %w", err)
	}

	url := c.baseURL + "/grading/start"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build grading start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrExternalService.Code, errors.ErrExternalService.Status,
			"scoring engine unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.New(errors.ErrExternalService.Code, errors.ErrExternalService.Status,
			fmt.Sprintf("scoring engine rejected grading start (%d): %s", resp.StatusCode, string(detail)))
	}

	c.logger.Sugar().Infow("grading start announced",
		"migration_id", msg.MigrationID, "policy_uri", msg.PolicyURI)
	return nil
}
