package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RayClient talks to the jobs REST API of a Ray dashboard.
type RayClient struct {
	restClient
}

func NewRayClient(baseURL string, timeout time.Duration) *RayClient {
	return &RayClient{restClient: newRestClient("ray", baseURL, timeout)}
}

type RuntimeEnv struct {
	Pip        string            `json:"pip,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	EnvVars    map[string]string `json:"env_vars,omitempty"`
}

type JobSubmission struct {
	Entrypoint        string            `json:"entrypoint"`
	SubmissionID      string            `json:"submission_id"`
	RuntimeEnv        RuntimeEnv        `json:"runtime_env"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	EntrypointNumGPUs float64           `json:"entrypoint_num_gpus,omitempty"`
}

// JobDetails is the remote view of a job. Raw keeps every field sent by the service.
type JobDetails struct {
	SubmissionID string            `json:"submission_id"`
	JobID        string            `json:"job_id"`
	Status       string            `json:"status"`
	Entrypoint   string            `json:"entrypoint"`
	Message      string            `json:"message"`
	StartTime    int64             `json:"start_time"`
	EndTime      int64             `json:"end_time"`
	Metadata     map[string]string `json:"metadata"`
	Raw          map[string]any    `json:"-"`
}

func (j *JobDetails) UnmarshalJSON(data []byte) error {
	type alias JobDetails
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*j = JobDetails(a)
	j.Raw = raw
	return nil
}

func (c *RayClient) SubmitJob(ctx context.Context, submission JobSubmission) (string, error) {
	var resp struct {
		JobID        string `json:"job_id"`
		SubmissionID string `json:"submission_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/", submission, &resp); err != nil {
		return "", err
	}
	return resp.SubmissionID, nil
}

func (c *RayClient) GetJob(ctx context.Context, id string) (*JobDetails, error) {
	details := &JobDetails{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%s", url.PathEscape(id)), nil, details); err != nil {
		return nil, err
	}
	return details, nil
}

func (c *RayClient) ListJobs(ctx context.Context) ([]JobDetails, error) {
	jobs := []JobDetails{}
	if err := c.do(ctx, http.MethodGet, "/api/jobs/", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *RayClient) StopJob(ctx context.Context, id string) (bool, error) {
	var resp struct {
		Stopped bool `json:"stopped"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%s/stop", url.PathEscape(id)), nil, &resp); err != nil {
		return false, err
	}
	return resp.Stopped, nil
}

func (c *RayClient) GetJobLogs(ctx context.Context, id string) (string, error) {
	var resp struct {
		Logs string `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%s/logs", url.PathEscape(id)), nil, &resp); err != nil {
		return "", err
	}
	return resp.Logs, nil
}

func (c *RayClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/version", nil, nil)
}
