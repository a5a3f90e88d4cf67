package mappers

import (
	"maps"

	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/internal/tracking"
)

func DatasetToApi(dataset model.Dataset) v1alpha1.Dataset {
	return v1alpha1.Dataset{
		Id:          dataset.ID,
		Filename:    dataset.Filename,
		Format:      dataset.Format,
		Size:        dataset.Size,
		GroundTruth: dataset.GroundTruth,
		RunId:       dataset.RunID,
		Generated:   dataset.Generated,
		GeneratedBy: dataset.GeneratedBy,
		CreatedAt:   dataset.CreatedAt,
	}
}

func DatasetListToApi(datasets model.DatasetList, total int64) v1alpha1.Listing[v1alpha1.Dataset] {
	items := make([]v1alpha1.Dataset, 0, len(datasets))
	for _, d := range datasets {
		items = append(items, DatasetToApi(d))
	}
	return v1alpha1.Listing[v1alpha1.Dataset]{Total: total, Items: items}
}

func JobToApi(job service.JobView) v1alpha1.Job {
	return v1alpha1.Job{
		Id:           job.ID,
		Name:         job.Name,
		Description:  job.Description,
		JobType:      string(job.JobType),
		Status:       job.Status,
		ExperimentId: job.ExperimentID,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		Submission:   job.Submission,
	}
}

func JobListToApi(jobs []service.JobView, total int64) v1alpha1.Listing[v1alpha1.Job] {
	items := make([]v1alpha1.Job, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, JobToApi(j))
	}
	return v1alpha1.Listing[v1alpha1.Job]{Total: total, Items: items}
}

func JobResultToApi(result model.JobResult) v1alpha1.JobResult {
	return v1alpha1.JobResult{
		Id:         result.ID,
		JobId:      result.JobID,
		Metrics:    nonNil(result.Metrics),
		Parameters: nonNil(result.Parameters),
		CreatedAt:  result.CreatedAt,
	}
}

func WorkflowToApi(workflow tracking.Workflow) v1alpha1.Workflow {
	return v1alpha1.Workflow{
		Id:           workflow.ID,
		ExperimentId: workflow.ExperimentID,
		Name:         workflow.Name,
		Description:  workflow.Description,
		Model:        workflow.Model,
		SystemPrompt: workflow.SystemPrompt,
		Status:       string(workflow.Status),
		CreatedAt:    workflow.CreatedAt,
	}
}

func WorkflowDetailsToApi(details tracking.WorkflowDetails) v1alpha1.WorkflowDetails {
	jobs := make([]v1alpha1.WorkflowJob, 0, len(details.Jobs))
	for _, j := range details.Jobs {
		jobs = append(jobs, v1alpha1.WorkflowJob{
			Id:         j.ID,
			Name:       j.Name,
			JobId:      j.JobID,
			StartTime:  j.StartTime,
			Metrics:    orEmpty(j.Metrics),
			Parameters: orEmpty(j.Parameters),
		})
	}

	api := v1alpha1.WorkflowDetails{
		Workflow:   WorkflowToApi(details.Workflow),
		Jobs:       jobs,
		Metrics:    orEmpty(details.Metrics),
		Parameters: orEmpty(details.Parameters),
	}
	if details.ArtifactsDownloadURL != "" {
		url := details.ArtifactsDownloadURL
		api.ArtifactsDownloadUrl = &url
	}
	return api
}

func ExperimentToApi(experiment tracking.Experiment) v1alpha1.Experiment {
	workflows := make([]v1alpha1.WorkflowDetails, 0, len(experiment.Workflows))
	for _, w := range experiment.Workflows {
		workflows = append(workflows, WorkflowDetailsToApi(w))
	}
	return v1alpha1.Experiment{
		Id:          experiment.ID,
		Name:        experiment.Name,
		Description: experiment.Description,
		TaskDefinition: v1alpha1.TaskDefinition{
			Task:           experiment.TaskDefinition.Task,
			SourceLanguage: experiment.TaskDefinition.SourceLanguage,
			TargetLanguage: experiment.TaskDefinition.TargetLanguage,
		},
		Dataset:    experiment.Dataset,
		MaxSamples: experiment.MaxSamples,
		CreatedAt:  experiment.CreatedAt,
		UpdatedAt:  experiment.UpdatedAt,
		Workflows:  workflows,
	}
}

func ExperimentListToApi(experiments []tracking.Experiment, total int) v1alpha1.Listing[v1alpha1.Experiment] {
	items := make([]v1alpha1.Experiment, 0, len(experiments))
	for _, e := range experiments {
		items = append(items, ExperimentToApi(e))
	}
	return v1alpha1.Listing[v1alpha1.Experiment]{Total: int64(total), Items: items}
}

func SecretListToApi(secrets []service.SecretSummary) []v1alpha1.Secret {
	items := make([]v1alpha1.Secret, 0, len(secrets))
	for _, s := range secrets {
		items = append(items, v1alpha1.Secret{Name: s.Name, Description: s.Description})
	}
	return items
}

func HealthToApi(health service.Health) v1alpha1.Health {
	return v1alpha1.Health{
		Status:         health.Status,
		DeploymentType: health.DeploymentType,
		Version:        health.Version,
		Dependencies:   orEmpty(health.Dependencies),
	}
}

// nonNil keeps null out of the json, the UI reads these as objects.
func nonNil(m model.JSONMap) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return maps.Clone(m)
}
