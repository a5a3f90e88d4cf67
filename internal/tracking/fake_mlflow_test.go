package tracking

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/mozilla-ai/lumigator/internal/client"
)

type fakeMLflow struct {
	mu          sync.Mutex
	seq         int
	clock       int64
	experiments map[string]*client.MLflowExperiment
	runs        map[string]*client.Run
	runOrder    []string
}

func newFakeMLflow() *fakeMLflow {
	return &fakeMLflow{experiments: map[string]*client.MLflowExperiment{}, runs: map[string]*client.Run{}}
}

func (f *fakeMLflow) next() string {
	f.seq++
	return fmt.Sprintf("%d", f.seq)
}

func notFound() error {
	return &client.APIError{Service: "mlflow", StatusCode: http.StatusNotFound, ErrorCode: "RESOURCE_DOES_NOT_EXIST"}
}

func (f *fakeMLflow) CreateExperiment(_ context.Context, name string, tags []client.Tag) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.experiments {
		if e.Name == name {
			return "", &client.APIError{Service: "mlflow", StatusCode: http.StatusBadRequest, ErrorCode: client.ErrorCodeAlreadyExists}
		}
	}
	id := f.next()
	f.experiments[id] = &client.MLflowExperiment{ExperimentID: id, Name: name, Tags: tags, LifecycleStage: "active", CreationTime: 1000}
	return id, nil
}

func (f *fakeMLflow) GetExperiment(_ context.Context, id string) (*client.MLflowExperiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, found := f.experiments[id]
	if !found {
		return nil, notFound()
	}
	cp := *e
	return &cp, nil
}

func (f *fakeMLflow) SearchExperiments(_ context.Context, _ string, _ int, _ string) ([]client.MLflowExperiment, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []client.MLflowExperiment{}
	for i := 1; i <= f.seq; i++ {
		if e, found := f.experiments[fmt.Sprintf("%d", i)]; found && e.LifecycleStage != "deleted" {
			out = append(out, *e)
		}
	}
	return out, "", nil
}

func (f *fakeMLflow) DeleteExperiment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, found := f.experiments[id]
	if !found {
		return notFound()
	}
	e.LifecycleStage = "deleted"
	return nil
}

func (f *fakeMLflow) CreateRun(_ context.Context, experimentID, name string, tags []client.Tag) (*client.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock++
	id := "run-" + f.next()
	run := &client.Run{
		Info: client.RunInfo{RunID: id, ExperimentID: experimentID, RunName: name, StartTime: f.clock, LifecycleStage: "active"},
		Data: client.RunData{Tags: append([]client.Tag{}, tags...)},
	}
	f.runs[id] = run
	f.runOrder = append(f.runOrder, id)
	cp := *run
	return &cp, nil
}

func (f *fakeMLflow) GetRun(_ context.Context, id string) (*client.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, found := f.runs[id]
	if !found {
		return nil, notFound()
	}
	cp := *r
	return &cp, nil
}

func (f *fakeMLflow) SearchRuns(_ context.Context, experimentID, filter string) ([]client.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent := ""
	if filter != "" {
		parent = strings.TrimSuffix(filter[strings.Index(filter, "'")+1:], "'")
	}
	// newest first, callers sort
	out := []client.Run{}
	for i := len(f.runOrder) - 1; i >= 0; i-- {
		r := f.runs[f.runOrder[i]]
		if r.Info.ExperimentID != experimentID || r.Info.LifecycleStage == "deleted" {
			continue
		}
		if parent != "" && r.Tag(tagParentRunID) != parent {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeMLflow) UpdateRun(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, found := f.runs[id]
	if !found {
		return notFound()
	}
	r.Info.Status = status
	return nil
}

func (f *fakeMLflow) DeleteRun(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, found := f.runs[id]
	if !found {
		return notFound()
	}
	r.Info.LifecycleStage = "deleted"
	return nil
}

func (f *fakeMLflow) SetTag(_ context.Context, runID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, found := f.runs[runID]
	if !found {
		return notFound()
	}
	for i, t := range r.Data.Tags {
		if t.Key == key {
			r.Data.Tags[i].Value = value
			return nil
		}
	}
	r.Data.Tags = append(r.Data.Tags, client.Tag{Key: key, Value: value})
	return nil
}

func (f *fakeMLflow) LogParam(_ context.Context, runID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, found := f.runs[runID]
	if !found {
		return notFound()
	}
	r.Data.Params = append(r.Data.Params, client.Param{Key: key, Value: value})
	return nil
}

func (f *fakeMLflow) LogMetric(_ context.Context, runID, key string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, found := f.runs[runID]
	if !found {
		return notFound()
	}
	r.Data.Metrics = append(r.Data.Metrics, client.Metric{Key: key, Value: value})
	return nil
}

func (f *fakeMLflow) HealthCheck(_ context.Context) error {
	return nil
}
