package v1alpha1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrorResponse is the body of every non 2xx answer.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	RequestId string `json:"request_id"`
}

func (e ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// Listing is a page of items along with the total count of items.
type Listing[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

func (l Listing[T]) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type Dataset struct {
	Id          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	Format      string     `json:"format"`
	Size        int64      `json:"size"`
	GroundTruth bool       `json:"ground_truth"`
	RunId       *uuid.UUID `json:"run_id"`
	Generated   bool       `json:"generated"`
	GeneratedBy *string    `json:"generated_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (d Dataset) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type DatasetDownload struct {
	DownloadUrls []string `json:"download_urls"`
}

func (d DatasetDownload) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// JobCreate is the body of POST /jobs/{job_type}. The shape of JobConfig depends on the job type.
type JobCreate struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Dataset     uuid.UUID       `json:"dataset" validate:"uuid_set"`
	MaxSamples  *int            `json:"max_samples" validate:"omitempty,max_samples"`
	JobConfig   json.RawMessage `json:"job_config"`
}

func (j *JobCreate) Bind(r *http.Request) error {
	return nil
}

type Job struct {
	Id           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	JobType      string         `json:"job_type"`
	Status       string         `json:"status"`
	ExperimentId *string        `json:"experiment_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Submission   map[string]any `json:"submission,omitempty"`
}

func (j Job) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type JobLogs struct {
	Logs string `json:"logs"`
}

func (j JobLogs) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type JobResult struct {
	Id         uuid.UUID      `json:"id"`
	JobId      uuid.UUID      `json:"job_id"`
	Metrics    map[string]any `json:"metrics"`
	Parameters map[string]any `json:"parameters"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (j JobResult) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type JobResultDownload struct {
	Id          uuid.UUID `json:"id"`
	DownloadUrl string    `json:"download_url"`
}

func (j JobResultDownload) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type JobStopped struct {
	Stopped bool `json:"stopped"`
}

func (j JobStopped) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type GenerationConfig struct {
	MaxTokens        *int     `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0"`
	TopP             *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type WorkflowCreate struct {
	Name                 string           `json:"name" validate:"required,max=255"`
	Description          string           `json:"description"`
	ExperimentId         string           `json:"experiment_id" validate:"required"`
	Model                string           `json:"model" validate:"required"`
	Provider             string           `json:"provider" validate:"required"`
	SecretKeyName        *string          `json:"secret_key_name,omitempty" validate:"omitempty,secret_name"`
	BaseUrl              *string          `json:"base_url,omitempty" validate:"omitempty,url"`
	SystemPrompt         string           `json:"system_prompt"`
	InferenceOutputField string           `json:"inference_output_field"`
	GenerationConfig     GenerationConfig `json:"generation_config"`
	BatchSize            *int             `json:"batch_size,omitempty" validate:"omitempty,gt=0"`
	JobTimeoutSec        *int             `json:"job_timeout_sec,omitempty" validate:"omitempty,gt=0"`
	Metrics              []string         `json:"metrics,omitempty"`
}

func (wc *WorkflowCreate) Bind(r *http.Request) error {
	return nil
}

type WorkflowJob struct {
	Id         string             `json:"id"`
	Name       string             `json:"name"`
	JobId      string             `json:"job_id"`
	StartTime  time.Time          `json:"start_time"`
	Metrics    map[string]float64 `json:"metrics"`
	Parameters map[string]string  `json:"parameters"`
}

type Workflow struct {
	Id           string    `json:"id"`
	ExperimentId string    `json:"experiment_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func (wf Workflow) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type WorkflowDetails struct {
	Workflow
	Jobs                 []WorkflowJob      `json:"jobs"`
	Metrics              map[string]float64 `json:"metrics"`
	Parameters           map[string]string  `json:"parameters"`
	ArtifactsDownloadUrl *string            `json:"artifacts_download_url,omitempty"`
}

func (wf WorkflowDetails) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type WorkflowLogs struct {
	Logs string `json:"logs"`
}

func (wl WorkflowLogs) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type TaskDefinition struct {
	Task           string `json:"task" validate:"required"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type ExperimentCreate struct {
	Name           string         `json:"name" validate:"required,max=255"`
	Description    string         `json:"description"`
	TaskDefinition TaskDefinition `json:"task_definition"`
	Dataset        uuid.UUID      `json:"dataset" validate:"uuid_set"`
	MaxSamples     *int           `json:"max_samples" validate:"omitempty,max_samples"`
}

func (e *ExperimentCreate) Bind(r *http.Request) error {
	return nil
}

type Experiment struct {
	Id             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	TaskDefinition TaskDefinition    `json:"task_definition"`
	Dataset        string            `json:"dataset"`
	MaxSamples     int               `json:"max_samples"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Workflows      []WorkflowDetails `json:"workflows"`
}

func (e Experiment) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// SecretPut is the body of PUT /secrets/{name}. The value is write only.
type SecretPut struct {
	Value       string `json:"value" validate:"required"`
	Description string `json:"description"`
}

func (s *SecretPut) Bind(r *http.Request) error {
	return nil
}

type Secret struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Health struct {
	Status         string            `json:"status"`
	DeploymentType string            `json:"deploymentType"`
	Version        string            `json:"version"`
	Dependencies   map[string]string `json:"dependencies"`
}

func (h Health) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
