package tracking

import (
	"time"

	"github.com/google/uuid"
)

type WorkflowStatus string

const (
	WorkflowStatusCreated   WorkflowStatus = "created"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusSucceeded WorkflowStatus = "succeeded"
)

func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusFailed || s == WorkflowStatusSucceeded
}

// TaskDefinition describes what an experiment evaluates.
type TaskDefinition struct {
	Task           string `json:"task"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type ExperimentCreate struct {
	Name           string
	Description    string
	TaskDefinition TaskDefinition
	Dataset        uuid.UUID
	MaxSamples     int
}

type Experiment struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	TaskDefinition TaskDefinition    `json:"task_definition"`
	Dataset        string            `json:"dataset"`
	MaxSamples     int               `json:"max_samples"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Workflows      []WorkflowDetails `json:"workflows"`
}

type WorkflowCreate struct {
	ExperimentID string
	Name         string
	Description  string
	Model        string
	SystemPrompt string
}

type Workflow struct {
	ID           string         `json:"id"`
	ExperimentID string         `json:"experiment_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Model        string         `json:"model"`
	SystemPrompt string         `json:"system_prompt"`
	Status       WorkflowStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TrackedJob is a job run nested under a workflow run.
type TrackedJob struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	JobID      string             `json:"job_id"`
	StartTime  time.Time          `json:"start_time"`
	Metrics    map[string]float64 `json:"metrics"`
	Parameters map[string]string  `json:"parameters"`
}

type WorkflowDetails struct {
	Workflow
	Jobs                 []TrackedJob       `json:"jobs"`
	Metrics              map[string]float64 `json:"metrics"`
	Parameters           map[string]string  `json:"parameters"`
	ArtifactsDownloadURL string             `json:"artifacts_download_url,omitempty"`
}

// RunOutputs are the values recorded on a job run once its stage completes.
type RunOutputs struct {
	Metrics    map[string]float64
	Parameters map[string]string
}
