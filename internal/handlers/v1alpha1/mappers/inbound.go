package mappers

import (
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/util"
)

// defaultMaxSamples selects every sample of the dataset.
const defaultMaxSamples = -1

// DatasetUploadFields holds the non file fields of a dataset upload.
type DatasetUploadFields struct {
	Format      string
	RunID       string
	Generated   string
	GeneratedBy string
}

func DatasetUploadFormApi(filename string, body io.Reader, fields DatasetUploadFields) (mappers.DatasetUploadForm, error) {
	form := mappers.DatasetUploadForm{
		Filename: filename,
		Format:   strings.TrimSpace(fields.Format),
		Body:     body,
	}

	if fields.RunID != "" {
		id, err := uuid.Parse(fields.RunID)
		if err != nil {
			return form, service.NewErrValidation("run_id is not a valid uuid: %q", fields.RunID)
		}
		form.RunID = &id
	}
	if fields.Generated != "" {
		generated, err := strconv.ParseBool(fields.Generated)
		if err != nil {
			return form, service.NewErrValidation("generated is not a boolean: %q", fields.Generated)
		}
		form.Generated = generated
	}
	if fields.GeneratedBy != "" {
		form.GeneratedBy = util.StringPtr(fields.GeneratedBy)
	}
	return form, nil
}

// JobCreateFormApi decodes the job config according to the job type of the path.
func JobCreateFormApi(jobType string, resource v1alpha1.JobCreate) (service.JobCreate, error) {
	cfg, err := service.DecodeJobConfig(jobType, resource.JobConfig)
	if err != nil {
		return service.JobCreate{}, err
	}
	return service.JobCreate{
		Name:        resource.Name,
		Description: resource.Description,
		DatasetID:   resource.Dataset,
		MaxSamples:  util.DerefInt(resource.MaxSamples, defaultMaxSamples),
		Config:      cfg,
	}, nil
}

func WorkflowFormApi(resource v1alpha1.WorkflowCreate) mappers.WorkflowCreateForm {
	return mappers.WorkflowCreateForm{
		Name:                 resource.Name,
		Description:          resource.Description,
		ExperimentID:         resource.ExperimentId,
		Model:                resource.Model,
		Provider:             resource.Provider,
		SecretKeyName:        util.DerefString(resource.SecretKeyName),
		BaseURL:              util.DerefString(resource.BaseUrl),
		SystemPrompt:         resource.SystemPrompt,
		InferenceOutputField: resource.InferenceOutputField,
		GenerationConfig: mappers.GenerationConfig{
			MaxTokens:        resource.GenerationConfig.MaxTokens,
			FrequencyPenalty: resource.GenerationConfig.FrequencyPenalty,
			Temperature:      resource.GenerationConfig.Temperature,
			TopP:             resource.GenerationConfig.TopP,
		},
		BatchSize:     util.DerefInt(resource.BatchSize, 1),
		JobTimeoutSec: util.DerefInt(resource.JobTimeoutSec, 0),
		Metrics:       resource.Metrics,
	}
}

func ExperimentFormApi(resource v1alpha1.ExperimentCreate) mappers.ExperimentCreateForm {
	return mappers.ExperimentCreateForm{
		Name:           resource.Name,
		Description:    resource.Description,
		Task:           resource.TaskDefinition.Task,
		SourceLanguage: resource.TaskDefinition.SourceLanguage,
		TargetLanguage: resource.TaskDefinition.TargetLanguage,
		Dataset:        resource.Dataset,
		MaxSamples:     util.DerefInt(resource.MaxSamples, defaultMaxSamples),
	}
}

func SecretFormApi(name string, resource v1alpha1.SecretPut) mappers.SecretPutForm {
	return mappers.SecretPutForm{
		Name:        name,
		Value:       resource.Value,
		Description: resource.Description,
	}
}
