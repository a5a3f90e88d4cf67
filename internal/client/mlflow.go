package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const (
	mlflowAPI = "/api/2.0/mlflow"

	ErrorCodeAlreadyExists = "RESOURCE_ALREADY_EXISTS"

	RunStatusScheduled = "SCHEDULED"
	RunStatusRunning   = "RUNNING"
	RunStatusFinished  = "FINISHED"
	RunStatusFailed    = "FAILED"
	RunStatusKilled    = "KILLED"
)

// MLflowClient is a thin client of the MLflow tracking REST API.
type MLflowClient struct {
	restClient
}

func NewMLflowClient(baseURL string, timeout time.Duration) *MLflowClient {
	return &MLflowClient{restClient: newRestClient("mlflow", baseURL, timeout)}
}

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type MLflowExperiment struct {
	ExperimentID   string `json:"experiment_id"`
	Name           string `json:"name"`
	LifecycleStage string `json:"lifecycle_stage"`
	CreationTime   int64  `json:"creation_time"`
	LastUpdateTime int64  `json:"last_update_time"`
	Tags           []Tag  `json:"tags"`
}

func (e MLflowExperiment) Tag(key string) string {
	return tagValue(e.Tags, key)
}

type RunInfo struct {
	RunID          string `json:"run_id"`
	ExperimentID   string `json:"experiment_id"`
	RunName        string `json:"run_name"`
	Status         string `json:"status"`
	StartTime      int64  `json:"start_time"`
	EndTime        int64  `json:"end_time"`
	LifecycleStage string `json:"lifecycle_stage"`
}

type RunData struct {
	Metrics []Metric `json:"metrics"`
	Params  []Param  `json:"params"`
	Tags    []Tag    `json:"tags"`
}

type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

func (r Run) Tag(key string) string {
	return tagValue(r.Data.Tags, key)
}

func (r Run) Param(key string) (string, bool) {
	for _, p := range r.Data.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

func tagValue(tags []Tag, key string) string {
	for _, t := range tags {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

func (c *MLflowClient) CreateExperiment(ctx context.Context, name string, tags []Tag) (string, error) {
	var resp struct {
		ExperimentID string `json:"experiment_id"`
	}
	req := map[string]any{"name": name, "tags": tags}
	if err := c.do(ctx, http.MethodPost, mlflowAPI+"/experiments/create", req, &resp); err != nil {
		return "", err
	}
	return resp.ExperimentID, nil
}

func (c *MLflowClient) GetExperiment(ctx context.Context, id string) (*MLflowExperiment, error) {
	var resp struct {
		Experiment MLflowExperiment `json:"experiment"`
	}
	q := url.Values{"experiment_id": []string{id}}
	if err := c.do(ctx, http.MethodGet, mlflowAPI+"/experiments/get?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Experiment, nil
}

func (c *MLflowClient) SearchExperiments(ctx context.Context, filter string, maxResults int, pageToken string) ([]MLflowExperiment, string, error) {
	var resp struct {
		Experiments   []MLflowExperiment `json:"experiments"`
		NextPageToken string             `json:"next_page_token"`
	}
	req := map[string]any{"filter": filter, "max_results": maxResults, "order_by": []string{"creation_time DESC"}}
	if pageToken != "" {
		req["page_token"] = pageToken
	}
	if err := c.do(ctx, http.MethodPost, mlflowAPI+"/experiments/search", req, &resp); err != nil {
		return nil, "", err
	}
	return resp.Experiments, resp.NextPageToken, nil
}

func (c *MLflowClient) DeleteExperiment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, mlflowAPI+"/experiments/delete", map[string]any{"experiment_id": id}, nil)
}

func (c *MLflowClient) CreateRun(ctx context.Context, experimentID, name string, tags []Tag) (*Run, error) {
	var resp struct {
		Run Run `json:"run"`
	}
	req := map[string]any{
		"experiment_id": experimentID,
		"run_name":      name,
		"start_time":    time.Now().UnixMilli(),
		"tags":          tags,
	}
	if err := c.do(ctx, http.MethodPost, mlflowAPI+"/runs/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

func (c *MLflowClient) GetRun(ctx context.Context, id string) (*Run, error) {
	var resp struct {
		Run Run `json:"run"`
	}
	q := url.Values{"run_id": []string{id}}
	if err := c.do(ctx, http.MethodGet, mlflowAPI+"/runs/get?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

// SearchRuns returns every run of the experiment matching filter, following pagination.
func (c *MLflowClient) SearchRuns(ctx context.Context, experimentID, filter string) ([]Run, error) {
	runs := []Run{}
	pageToken := ""
	for {
		var resp struct {
			Runs          []Run  `json:"runs"`
			NextPageToken string `json:"next_page_token"`
		}
		req := map[string]any{
			"experiment_ids": []string{experimentID},
			"filter":         filter,
			"max_results":    1000,
			"order_by":       []string{"attributes.start_time ASC"},
		}
		if pageToken != "" {
			req["page_token"] = pageToken
		}
		if err := c.do(ctx, http.MethodPost, mlflowAPI+"/runs/search", req, &resp); err != nil {
			return nil, err
		}
		runs = append(runs, resp.Runs...)
		if resp.NextPageToken == "" {
			return runs, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *MLflowClient) UpdateRun(ctx context.Context, id, status string) error {
	req := map[string]any{"run_id": id, "status": status}
	if status == RunStatusFinished || status == RunStatusFailed || status == RunStatusKilled {
		req["end_time"] = time.Now().UnixMilli()
	}
	return c.do(ctx, http.MethodPost, mlflowAPI+"/runs/update", req, nil)
}

func (c *MLflowClient) DeleteRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, mlflowAPI+"/runs/delete", map[string]any{"run_id": id}, nil)
}

func (c *MLflowClient) SetTag(ctx context.Context, runID, key, value string) error {
	return c.do(ctx, http.MethodPost, mlflowAPI+"/runs/set-tag", map[string]any{"run_id": runID, "key": key, "value": value}, nil)
}

func (c *MLflowClient) LogParam(ctx context.Context, runID, key, value string) error {
	return c.do(ctx, http.MethodPost, mlflowAPI+"/runs/log-parameter", map[string]any{"run_id": runID, "key": key, "value": value}, nil)
}

func (c *MLflowClient) LogMetric(ctx context.Context, runID, key string, value float64) error {
	req := Metric{Key: key, Value: value, Timestamp: time.Now().UnixMilli()}
	body := map[string]any{"run_id": runID, "key": req.Key, "value": req.Value, "timestamp": req.Timestamp, "step": req.Step}
	return c.do(ctx, http.MethodPost, mlflowAPI+"/runs/log-metric", body, nil)
}

func (c *MLflowClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
