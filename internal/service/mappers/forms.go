package mappers

import (
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/internal/tracking"
)

type DatasetUploadForm struct {
	Filename    string
	Format      string
	RunID       *uuid.UUID
	Generated   bool
	GeneratedBy *string
	Body        io.Reader
}

func (f DatasetUploadForm) ToModel(id uuid.UUID, size int64, groundTruth bool) model.Dataset {
	return model.Dataset{
		ID:          id,
		Filename:    f.Filename,
		Format:      f.Format,
		Size:        size,
		GroundTruth: groundTruth,
		RunID:       f.RunID,
		Generated:   f.Generated,
		GeneratedBy: f.GeneratedBy,
	}
}

type SecretPutForm struct {
	Name        string
	Value       string
	Description string
}

// ToModel lowercases the name, secrets are looked up case insensitively.
func (f SecretPutForm) ToModel(encrypted string) model.Secret {
	return model.Secret{
		Name:           strings.ToLower(f.Name),
		EncryptedValue: encrypted,
		Description:    f.Description,
	}
}

type ExperimentCreateForm struct {
	Name           string
	Description    string
	Task           string
	SourceLanguage string
	TargetLanguage string
	Dataset        uuid.UUID
	MaxSamples     int
}

func (f ExperimentCreateForm) ToTracking() tracking.ExperimentCreate {
	return tracking.ExperimentCreate{
		Name:        f.Name,
		Description: f.Description,
		TaskDefinition: tracking.TaskDefinition{
			Task:           f.Task,
			SourceLanguage: f.SourceLanguage,
			TargetLanguage: f.TargetLanguage,
		},
		Dataset:    f.Dataset,
		MaxSamples: f.MaxSamples,
	}
}

type GenerationConfig struct {
	MaxTokens        *int
	FrequencyPenalty *float64
	Temperature      *float64
	TopP             *float64
}

type WorkflowCreateForm struct {
	Name                 string
	Description          string
	ExperimentID         string
	Model                string
	Provider             string
	SecretKeyName        string
	BaseURL              string
	SystemPrompt         string
	InferenceOutputField string
	GenerationConfig     GenerationConfig
	BatchSize            int
	JobTimeoutSec        int
	Metrics              []string
}

func (f WorkflowCreateForm) ToTracking() tracking.WorkflowCreate {
	return tracking.WorkflowCreate{
		ExperimentID: f.ExperimentID,
		Name:         f.Name,
		Description:  f.Description,
		Model:        f.Model,
		SystemPrompt: f.SystemPrompt,
	}
}
