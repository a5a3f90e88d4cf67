package events

// WorkflowEvent is published on every workflow status change.
type WorkflowEvent struct {
	WorkflowID   string `json:"workflow_id"`
	ExperimentID string `json:"experiment_id"`
	Status       string `json:"status"`
}

// JobEvent is published when a job is submitted and when it reaches a terminal status.
type JobEvent struct {
	JobID        string  `json:"job_id"`
	JobType      string  `json:"job_type"`
	Status       string  `json:"status"`
	ExperimentID *string `json:"experiment_id,omitempty"`
}
