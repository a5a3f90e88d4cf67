// Package trackingtest provides an in-memory tracking.Client for tests.
package trackingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mozilla-ai/lumigator/internal/tracking"
)

type Memory struct {
	mu          sync.Mutex
	seq         int
	experiments map[string]*tracking.Experiment
	workflows   map[string]*tracking.WorkflowDetails
	// runs maps a job run to its workflow.
	runs map[string]string
	statuses    map[string][]tracking.WorkflowStatus
	// DownloadURL is returned for succeeded workflows.
	DownloadURL string
}

func NewMemory() *Memory {
	return &Memory{
		experiments: map[string]*tracking.Experiment{},
		workflows:   map[string]*tracking.WorkflowDetails{},
		runs:        map[string]string{},
		statuses:    map[string][]tracking.WorkflowStatus{},
		DownloadURL: "http://localhost:9000/compiled.json",
	}
}

func (m *Memory) nextID() string {
	m.seq++
	return fmt.Sprintf("%d", m.seq)
}

func (m *Memory) CreateExperiment(_ context.Context, req tracking.ExperimentCreate) (*tracking.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.experiments {
		if e.Name == req.Name {
			return nil, tracking.ErrConflict
		}
	}
	e := &tracking.Experiment{
		ID:             m.nextID(),
		Name:           req.Name,
		Description:    req.Description,
		TaskDefinition: req.TaskDefinition,
		Dataset:        req.Dataset.String(),
		MaxSamples:     req.MaxSamples,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.experiments[e.ID] = e
	cp := *e
	return &cp, nil
}

func (m *Memory) GetExperiment(_ context.Context, id string) (*tracking.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, found := m.experiments[id]
	if !found {
		return nil, tracking.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) ListExperiments(_ context.Context, skip, limit int) ([]tracking.Experiment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]tracking.Experiment, 0, len(m.experiments))
	for _, e := range m.experiments {
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if skip > len(all) {
		skip = len(all)
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *Memory) DeleteExperiment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.experiments[id]; !found {
		return tracking.ErrNotFound
	}
	delete(m.experiments, id)
	return nil
}

func (m *Memory) ListWorkflowIDs(_ context.Context, experimentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.experiments[experimentID]; !found {
		return nil, tracking.ErrNotFound
	}
	ids := []string{}
	for id, w := range m.workflows {
		if w.ExperimentID == experimentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) CreateWorkflow(_ context.Context, req tracking.WorkflowCreate) (*tracking.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.experiments[req.ExperimentID]; !found {
		return nil, tracking.ErrNotFound
	}
	w := &tracking.WorkflowDetails{
		Workflow: tracking.Workflow{
			ID:           m.nextID(),
			ExperimentID: req.ExperimentID,
			Name:         req.Name,
			Description:  req.Description,
			Model:        req.Model,
			SystemPrompt: req.SystemPrompt,
			Status:       tracking.WorkflowStatusCreated,
			CreatedAt:    time.Now(),
		},
		Metrics:    map[string]float64{},
		Parameters: map[string]string{},
	}
	m.workflows[w.ID] = w
	m.statuses[w.ID] = []tracking.WorkflowStatus{tracking.WorkflowStatusCreated}
	cp := w.Workflow
	return &cp, nil
}

func (m *Memory) GetWorkflow(_ context.Context, id string) (*tracking.WorkflowDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, found := m.workflows[id]
	if !found {
		return nil, tracking.ErrNotFound
	}
	cp := *w
	cp.Jobs = append([]tracking.TrackedJob{}, w.Jobs...)
	if cp.Status == tracking.WorkflowStatusSucceeded {
		cp.ArtifactsDownloadURL = m.DownloadURL
	}
	return &cp, nil
}

func (m *Memory) UpdateWorkflowStatus(_ context.Context, id string, status tracking.WorkflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, found := m.workflows[id]
	if !found {
		return tracking.ErrNotFound
	}
	w.Status = status
	m.statuses[id] = append(m.statuses[id], status)
	return nil
}

func (m *Memory) DeleteWorkflow(_ context.Context, id string) (*tracking.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, found := m.workflows[id]
	if !found {
		return nil, tracking.ErrNotFound
	}
	delete(m.workflows, id)
	cp := w.Workflow
	return &cp, nil
}

func (m *Memory) ListWorkflowJobs(_ context.Context, workflowID string) ([]tracking.TrackedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, found := m.workflows[workflowID]
	if !found {
		return nil, tracking.ErrNotFound
	}
	return append([]tracking.TrackedJob{}, w.Jobs...), nil
}

func (m *Memory) CreateJob(_ context.Context, _, workflowID, name, jobID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, found := m.workflows[workflowID]
	if !found {
		return "", tracking.ErrNotFound
	}
	runID := m.nextID()
	w.Jobs = append(w.Jobs, tracking.TrackedJob{
		ID:         runID,
		Name:       name,
		JobID:      jobID,
		StartTime:  time.Now(),
		Metrics:    map[string]float64{},
		Parameters: map[string]string{"ray_job_id": jobID},
	})
	m.runs[runID] = workflowID
	return runID, nil
}

func (m *Memory) UpdateJob(_ context.Context, runID string, outputs tracking.RunOutputs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, found := m.workflows[m.runs[runID]]
	if !found {
		return tracking.ErrNotFound
	}
	for i := range w.Jobs {
		if w.Jobs[i].ID != runID {
			continue
		}
		for k, v := range outputs.Metrics {
			w.Jobs[i].Metrics[k] = v
			w.Metrics[k] = v
		}
		for k, v := range outputs.Parameters {
			w.Jobs[i].Parameters[k] = v
			w.Parameters[k] = v
		}
		return nil
	}
	return tracking.ErrNotFound
}

func (m *Memory) HealthCheck(context.Context) error {
	return nil
}

// StatusHistory returns every status the workflow went through.
func (m *Memory) StatusHistory(id string) []tracking.WorkflowStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tracking.WorkflowStatus{}, m.statuses[id]...)
}

// Workflow returns the stored workflow, for assertions.
func (m *Memory) Workflow(id string) (tracking.WorkflowDetails, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, found := m.workflows[id]
	if !found {
		return tracking.WorkflowDetails{}, false
	}
	cp := *w
	cp.Jobs = append([]tracking.TrackedJob{}, w.Jobs...)
	return cp, true
}

var _ tracking.Client = &Memory{}
