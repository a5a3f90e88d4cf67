// Package clienttest provides an in-memory job service for tests.
package clienttest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/mozilla-ai/lumigator/internal/client"
)

// Ray records submissions and serves job statuses from memory.
type Ray struct {
	mu          sync.Mutex
	jobs        map[string]*client.JobDetails
	submissions map[string]client.JobSubmission
	logs        map[string]string

	// SubmitErr fails every submission. With KnownOnFailure the job is still recorded.
	SubmitErr      error
	KnownOnFailure bool
	// LogsErr fails every log request.
	LogsErr error
	// IgnoreStop leaves jobs running when asked to stop.
	IgnoreStop bool
	// OnSubmit returns the initial status of a job, PENDING when unset.
	OnSubmit func(submission client.JobSubmission) string
	Unhealthy error
}

func NewRay() *Ray {
	return &Ray{
		jobs:        map[string]*client.JobDetails{},
		submissions: map[string]client.JobSubmission{},
		logs:        map[string]string{},
	}
}

func notFound(id string) error {
	return &client.APIError{Service: "ray", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("job %s does not exist", id)}
}

func (r *Ray) SubmitJob(_ context.Context, submission client.JobSubmission) (string, error) {
	if r.SubmitErr != nil {
		if r.KnownOnFailure {
			r.record(submission, "FAILED")
		}
		return "", r.SubmitErr
	}
	status := "PENDING"
	if r.OnSubmit != nil {
		status = r.OnSubmit(submission)
	}
	r.record(submission, status)
	return submission.SubmissionID, nil
}

func (r *Ray) record(submission client.JobSubmission, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions[submission.SubmissionID] = submission
	envVars := map[string]any{}
	for k, v := range submission.RuntimeEnv.EnvVars {
		envVars[k] = v
	}
	r.jobs[submission.SubmissionID] = &client.JobDetails{
		SubmissionID: submission.SubmissionID,
		Status:       status,
		Entrypoint:   submission.Entrypoint,
		Metadata:     submission.Metadata,
		Raw: map[string]any{
			"submission_id": submission.SubmissionID,
			"status":        status,
			"entrypoint":    submission.Entrypoint,
			"runtime_env":   map[string]any{"env_vars": envVars},
		},
	}
}

func (r *Ray) GetJob(_ context.Context, id string) (*client.JobDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, found := r.jobs[id]
	if !found {
		return nil, notFound(id)
	}
	cp := *job
	return &cp, nil
}

func (r *Ray) ListJobs(context.Context) ([]client.JobDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]client.JobDetails, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].SubmissionID < jobs[j].SubmissionID })
	return jobs, nil
}

func (r *Ray) StopJob(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, found := r.jobs[id]
	if !found {
		return false, notFound(id)
	}
	if r.IgnoreStop {
		return false, nil
	}
	job.Status = "STOPPED"
	job.Raw["status"] = "STOPPED"
	return true, nil
}

func (r *Ray) GetJobLogs(_ context.Context, id string) (string, error) {
	if r.LogsErr != nil {
		return "", r.LogsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.jobs[id]; !found {
		return "", notFound(id)
	}
	return r.logs[id], nil
}

func (r *Ray) HealthCheck(context.Context) error {
	return r.Unhealthy
}

// SetStatus changes the remote status of a job.
func (r *Ray) SetStatus(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, found := r.jobs[id]; found {
		job.Status = status
		job.Raw["status"] = status
	}
}

func (r *Ray) SetLogs(id, logs string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[id] = logs
}

func (r *Ray) Submission(id string) (client.JobSubmission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, found := r.submissions[id]
	return s, found
}

func (r *Ray) Submissions() []client.JobSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]client.JobSubmission, 0, len(r.submissions))
	for _, s := range r.submissions {
		out = append(out, s)
	}
	return out
}

// SubmittedConfig decodes the worker config passed on the entrypoint of a submission.
func SubmittedConfig(submission client.JobSubmission) (map[string]any, error) {
	tokens, err := shellquote.Split(submission.Entrypoint)
	if err != nil {
		return nil, err
	}
	for i, t := range tokens {
		if t == "--config" && i+1 < len(tokens) {
			config := map[string]any{}
			if err := json.Unmarshal([]byte(tokens[i+1]), &config); err != nil {
				return nil, err
			}
			return config, nil
		}
	}
	return nil, fmt.Errorf("no config in entrypoint %q", submission.Entrypoint)
}
