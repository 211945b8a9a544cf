package export

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"mediastudio/api/dto"
	"mediastudio/api/models"
)

// RenderClient talks to the render job API (or the legacy simulated job API,
// which speaks the same shapes on different paths).
type RenderClient struct {
	http       *resty.Client
	createPath string
	jobPath    string
}

func NewRenderClient(baseURL string) *RenderClient {
	return &RenderClient{
		http:       resty.New().SetBaseURL(baseURL),
		createPath: "/render",
		jobPath:    "/render/{id}/status",
	}
}

// NewLegacyJobClient points the same client at the timed-step simulator
// endpoints.
func NewLegacyJobClient(baseURL string) *RenderClient {
	return &RenderClient{
		http:       resty.New().SetBaseURL(baseURL),
		createPath: "/export/jobs",
		jobPath:    "/export/jobs/{id}",
	}
}

func (c *RenderClient) Create(ctx context.Context, projectID string, settings models.JobSettings) (string, error) {
	var out dto.CreateJobResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(dto.CreateJobRequest{ProjectID: projectID, Settings: settings}).
		SetResult(&out).
		Post(c.createPath)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("create render job: status %d", resp.StatusCode())
	}

	return out.JobID, nil
}

func (c *RenderClient) Status(ctx context.Context, jobID string) (*dto.JobStatusResponse, error) {
	var out dto.JobStatusResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get(c.jobPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("poll render job: status %d", resp.StatusCode())
	}

	return &out, nil
}

func (c *RenderClient) Cancel(ctx context.Context, jobID string) error {
	path := "/render/{id}/cancel"
	if c.createPath == "/export/jobs" {
		path = "/export/jobs/{id}/cancel"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("cancel render job: status %d", resp.StatusCode())
	}

	return nil
}

// Download writes the finished artifact to destPath.
func (c *RenderClient) Download(ctx context.Context, jobID, destPath string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetOutput(destPath).
		Get("/render/{id}/download")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("download artifact: status %d", resp.StatusCode())
	}

	return nil
}
