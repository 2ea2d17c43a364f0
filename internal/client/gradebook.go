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

// GradebookClient publishes reviewed scores to the external gradebook over
// its HTTP API. Vendor-specific request shaping stays out of the core; this
// client only carries score, status, time and comment per student.
type GradebookClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewGradebookClient constructs the client.
func NewGradebookClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *GradebookClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type postScoresRequest struct {
	Scores []dto.GradebookScoreEntry `json:"scores"`
}

// PostScores submits the current scores for one assignment.
func (c *GradebookClient) PostScores(ctx context.Context, gradebookCourseID, gradebookAssignmentID int64, scores []dto.GradebookScoreEntry) error {
	if len(scores) == 0 {
		return nil
	}

	body, err := json.Marshal(postScoresRequest{Scores: scores})
	if err != nil {
		return fmt.Errorf("encode gradebook scores: %w", err)
	}

	url := fmt.Sprintf("%s/courses/%d/assignments/%d/scores", c.baseURL, gradebookCourseID, gradebookAssignmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gradebook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrExternalService.Code, errors.ErrExternalService.Status,
			"gradebook unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.New(errors.ErrExternalService.Code, errors.ErrExternalService.Status,
			fmt.Sprintf("gradebook rejected scores (%d): %s", resp.StatusCode, string(detail)))
	}

	c.logger.Sugar().Infow("scores posted",
		"gradebook_course_id", gradebookCourseID,
		"gradebook_assignment_id", gradebookAssignmentID,
		"students", len(scores),
	)
	return nil
}
