package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeInference  JobType = "inference"
	JobTypeEvaluation JobType = "evaluator"
	JobTypeAnnotation JobType = "annotate"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeInference, JobTypeEvaluation, JobTypeAnnotation:
		return true
	}
	return false
}

// Job status constants. Statuses are stored lowercase.
const (
	JobStatusCreated   = "created"
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusStopped   = "stopped"
)

// TerminalJobStatuses can never be left once reached.
var TerminalJobStatuses = []string{JobStatusSucceeded, JobStatusFailed, JobStatusStopped}

// activeJobStatuses in the order a job goes through them.
var activeJobStatuses = []string{JobStatusCreated, JobStatusPending, JobStatusRunning}

// JobStatusesBefore returns the statuses a job may move to status from. Statuses only move
// forward and a terminal status is never left.
func JobStatusesBefore(status string) []string {
	for i, s := range activeJobStatuses {
		if s == status {
			return activeJobStatuses[:i+1]
		}
	}
	return activeJobStatuses
}

type Job struct {
	ID           uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	Name         string    `gorm:"not null;type:VARCHAR(255)"`
	Description  string    `gorm:"not null;default:''"`
	JobType      JobType   `gorm:"not null;type:VARCHAR(50);index:jobs_job_type_idx"`
	Status       string    `gorm:"not null;type:VARCHAR(50)"`
	ExperimentID *string   `gorm:"type:VARCHAR(255)"`
	Logs         *string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type JobList []Job

func (j Job) IsTerminal() bool {
	for _, s := range TerminalJobStatuses {
		if j.Status == s {
			return true
		}
	}
	return false
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
