package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/thoas/go-funk"
)

const (
	TaskSummarization  = "summarization"
	TaskTranslation    = "translation"
	TaskTextGeneration = "text-generation"

	ProviderHuggingFace = "hf"

	DefaultOutputField      = "predictions"
	AnnotationOutputField   = "ground_truth"
	AnnotationModel         = "facebook/bart-large-cnn"
	GEvalSecretKeyName      = "openai_api_key"
	DefaultSummaryPrompt    = "You are a helpful assistant, expert in text summarization. For every prompt you receive, provide a summary of its contents in at most two sentences."
	inferenceServerRetries  = 3
	gEvalMetricPrefix       = "g_eval"
	defaultMaxTokens        = 1024
	defaultFrequencyPenalty = 0.0
	defaultTemperature      = 1.0
	defaultTopP             = 1.0
	defaultMaxNewTokens     = 500
)

var DefaultEvaluationMetrics = []string{"meteor", "rouge", "bertscore"}

// JobConfig is the kind specific part of a job request.
type JobConfig interface {
	JobType() model.JobType
	// SecretKeyName names the secret handed to the worker as api_key, if any.
	SecretKeyName() string
	// StoreToDataset reports whether the job output becomes a new dataset.
	StoreToDataset() bool
	// OutputField is the result artifact holding the job predictions.
	OutputField() string
	render(params renderParams) map[string]any
}

type renderParams struct {
	name        string
	datasetPath string
	maxSamples  int
	storagePath string
}

type InferenceJobConfig struct {
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	BaseURL          string  `json:"base_url,omitempty"`
	Task             string  `json:"task"`
	SourceLanguage   string  `json:"source_language,omitempty"`
	TargetLanguage   string  `json:"target_language,omitempty"`
	SystemPrompt     *string `json:"system_prompt,omitempty"`
	Output           string  `json:"output_field"`
	MaxTokens        int     `json:"max_tokens"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	Store            bool    `json:"store_to_dataset"`
	SecretKey        string  `json:"secret_key_name,omitempty"`
	Accelerator      string  `json:"accelerator"`
	Revision         string  `json:"revision"`
	UseFast          bool    `json:"use_fast"`
	TrustRemoteCode  bool    `json:"trust_remote_code"`
	TorchDtype       string  `json:"torch_dtype"`
	MaxNewTokens     int     `json:"max_new_tokens"`
}

func NewInferenceJobConfig() *InferenceJobConfig {
	return &InferenceJobConfig{
		Provider:         ProviderHuggingFace,
		Task:             TaskSummarization,
		Output:           DefaultOutputField,
		MaxTokens:        defaultMaxTokens,
		FrequencyPenalty: defaultFrequencyPenalty,
		Temperature:      defaultTemperature,
		TopP:             defaultTopP,
		Accelerator:      "auto",
		Revision:         "main",
		UseFast:          true,
		TorchDtype:       "auto",
		MaxNewTokens:     defaultMaxNewTokens,
	}
}

func (c *InferenceJobConfig) JobType() model.JobType { return model.JobTypeInference }
func (c *InferenceJobConfig) SecretKeyName() string  { return c.SecretKey }
func (c *InferenceJobConfig) StoreToDataset() bool   { return c.Store }
func (c *InferenceJobConfig) OutputField() string    { return c.Output }

// Validate applies the task rules and fills in the default prompt of the task.
func (c *InferenceJobConfig) Validate() error {
	if c.Model == "" {
		return NewErrValidation("model is required")
	}
	if c.Output == "" {
		c.Output = DefaultOutputField
	}
	prompt, err := TaskPrompt(c.Task, c.SourceLanguage, c.TargetLanguage, c.SystemPrompt)
	if err != nil {
		return err
	}
	c.SystemPrompt = prompt
	return nil
}

// ValidateTask checks the languages against the task.
func ValidateTask(task, sourceLanguage, targetLanguage string) error {
	switch task {
	case TaskSummarization:
		if sourceLanguage != "" || targetLanguage != "" {
			return NewErrValidation("source_language and target_language must not be set when task=%s", task)
		}
	case TaskTranslation:
		if sourceLanguage == "" || targetLanguage == "" {
			return NewErrValidation("source_language and target_language are required when task=%s", task)
		}
	case TaskTextGeneration:
	default:
		return NewErrValidation("unknown task %q", task)
	}
	return nil
}

// TaskPrompt validates the task and returns the prompt to use: the given one or the default
// of the task. Text generation has no default.
func TaskPrompt(task, sourceLanguage, targetLanguage string, prompt *string) (*string, error) {
	if err := ValidateTask(task, sourceLanguage, targetLanguage); err != nil {
		return nil, err
	}
	if prompt != nil {
		return prompt, nil
	}

	var p string
	switch task {
	case TaskSummarization:
		p = DefaultSummaryPrompt
	case TaskTranslation:
		p = "translate " + sourceLanguage + " to " + targetLanguage + ":"
	default:
		return nil, NewErrValidation("system_prompt is required when task=%s", task)
	}
	return &p, nil
}

func (c *InferenceJobConfig) render(p renderParams) map[string]any {
	var prompt any
	if c.SystemPrompt != nil {
		prompt = *c.SystemPrompt
	}

	cfg := map[string]any{
		"name":    p.name,
		"dataset": map[string]any{"path": p.datasetPath},
		"job": map[string]any{
			"max_samples":  p.maxSamples,
			"storage_path": p.storagePath,
			"output_field": c.Output,
		},
		"system_prompt": prompt,
		"generation_config": map[string]any{
			"max_tokens":        c.MaxTokens,
			"frequency_penalty": c.FrequencyPenalty,
			"temperature":       c.Temperature,
			"top_p":             c.TopP,
		},
	}

	if c.Provider == ProviderHuggingFace {
		cfg["hf_pipeline"] = map[string]any{
			"model_name_or_path": c.Model,
			"task":               c.Task,
			"accelerator":        c.Accelerator,
			"revision":           c.Revision,
			"use_fast":           c.UseFast,
			"trust_remote_code":  c.TrustRemoteCode,
			"torch_dtype":        c.TorchDtype,
			"max_new_tokens":     c.MaxNewTokens,
		}
		return cfg
	}

	cfg["inference_server"] = map[string]any{
		"base_url":      c.BaseURL,
		"model":         c.Model,
		"provider":      c.Provider,
		"system_prompt": prompt,
		"max_retries":   inferenceServerRetries,
	}
	return cfg
}

type EvaluationJobConfig struct {
	Metrics   []string `json:"metrics"`
	Model     string   `json:"model,omitempty"`
	SecretKey string   `json:"secret_key_name,omitempty"`
}

func NewEvaluationJobConfig() *EvaluationJobConfig {
	return &EvaluationJobConfig{Metrics: append([]string{}, DefaultEvaluationMetrics...)}
}

func (c *EvaluationJobConfig) JobType() model.JobType { return model.JobTypeEvaluation }
func (c *EvaluationJobConfig) StoreToDataset() bool   { return false }
func (c *EvaluationJobConfig) OutputField() string    { return "" }

// SecretKeyName falls back to the OpenAI key when a G-Eval metric is requested.
func (c *EvaluationJobConfig) SecretKeyName() string {
	if c.SecretKey != "" {
		return c.SecretKey
	}
	gEval := funk.FilterString(c.Metrics, func(m string) bool {
		return strings.HasPrefix(m, gEvalMetricPrefix)
	})
	if len(gEval) > 0 {
		return GEvalSecretKeyName
	}
	return ""
}

func (c *EvaluationJobConfig) Validate() error {
	if len(c.Metrics) == 0 {
		return NewErrValidation("at least one metric is required")
	}
	return nil
}

func (c *EvaluationJobConfig) render(p renderParams) map[string]any {
	cfg := map[string]any{
		"name":    p.name,
		"dataset": map[string]any{"path": p.datasetPath},
		"evaluation": map[string]any{
			"metrics":            c.Metrics,
			"max_samples":        p.maxSamples,
			"return_input_data":  true,
			"return_predictions": true,
			"storage_path":       p.storagePath,
		},
	}
	if c.Model != "" {
		cfg["model"] = map[string]any{"path": c.Model}
	}
	return cfg
}

// AnnotationJobConfig produces ground truth with a fixed summarization model.
type AnnotationJobConfig struct {
	Task  string `json:"task"`
	Store bool   `json:"store_to_dataset"`
}

func NewAnnotationJobConfig() *AnnotationJobConfig {
	return &AnnotationJobConfig{Task: TaskSummarization}
}

func (c *AnnotationJobConfig) JobType() model.JobType { return model.JobTypeAnnotation }
func (c *AnnotationJobConfig) SecretKeyName() string  { return "" }
func (c *AnnotationJobConfig) StoreToDataset() bool   { return c.Store }
func (c *AnnotationJobConfig) OutputField() string    { return AnnotationOutputField }

func (c *AnnotationJobConfig) Validate() error {
	if c.Task != TaskSummarization {
		return NewErrValidation("annotation only supports task=%s", TaskSummarization)
	}
	return nil
}

func (c *AnnotationJobConfig) inference() *InferenceJobConfig {
	inference := NewInferenceJobConfig()
	inference.Model = AnnotationModel
	inference.Task = c.Task
	inference.Output = AnnotationOutputField
	inference.Store = c.Store
	prompt := DefaultSummaryPrompt
	inference.SystemPrompt = &prompt
	return inference
}

func (c *AnnotationJobConfig) render(p renderParams) map[string]any {
	return c.inference().render(p)
}

// DecodeJobConfig decodes the config of a job of the given kind, applying its defaults and rules.
// A job_type in the config must name the same kind.
func DecodeJobConfig(kind string, raw json.RawMessage) (JobConfig, error) {
	var cfg interface {
		JobConfig
		Validate() error
	}
	switch model.JobType(kind) {
	case model.JobTypeInference:
		cfg = NewInferenceJobConfig()
	case model.JobTypeEvaluation:
		cfg = NewEvaluationJobConfig()
	case model.JobTypeAnnotation:
		cfg = NewAnnotationJobConfig()
	default:
		return nil, NewErrUnsupportedJobKind(kind)
	}

	if len(bytes.TrimSpace(raw)) > 0 {
		var tag struct {
			JobType *string `json:"job_type"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return nil, NewErrValidation("invalid %s job config: %v", kind, err)
		}
		if tag.JobType != nil && *tag.JobType != kind {
			return nil, NewErrValidation("job_config.job_type %q does not match %q", *tag.JobType, kind)
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, NewErrValidation("invalid %s job config: %v", kind, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
