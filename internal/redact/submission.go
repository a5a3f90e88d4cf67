package redact

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
)

const configFlag = "--config"

var datasetPathRegexp = regexp.MustCompile(`(?i).*/datasets/([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})/([^/]+)$`)

// TransformJobSubmission decodes the worker config embedded in the entrypoint of a remote
// job submission, hoists the dataset, max_samples and model fields and stores the redacted
// config under "config". The entrypoint is rewritten with the redacted config.
// Submissions without a parseable config are returned redacted but otherwise unchanged.
func (r *Redactor) TransformJobSubmission(submission map[string]any) map[string]any {
	out := r.Redact(submission)
	entrypoint, ok := submission["entrypoint"].(string)
	if !ok {
		return out
	}

	tokens, err := shellquote.Split(entrypoint)
	if err != nil {
		return out
	}
	idx, config := extractConfig(tokens)
	if config == nil {
		return out
	}

	if dataset := extractDataset(config); dataset != nil {
		config["dataset"] = dataset
	}
	if maxSamples, found := extractMaxSamples(config); found {
		config["max_samples"] = maxSamples
	}
	config["model_name_or_path"] = extractModelNameOrPath(config)

	redacted := r.Redact(config)
	out["config"] = redacted

	encoded, err := json.Marshal(redacted)
	if err != nil {
		return out
	}
	tokens[idx] = string(encoded)
	out["entrypoint"] = shellquote.Join(tokens...)
	return out
}

// extractConfig returns the index and decoded value of the token following the config flag.
func extractConfig(tokens []string) (int, map[string]any) {
	for i, t := range tokens {
		if t != configFlag || i+1 >= len(tokens) {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(tokens[i+1]), "'")
		config := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &config); err != nil {
			return -1, nil
		}
		return i + 1, config
	}
	return -1, nil
}

func extractDataset(config map[string]any) map[string]any {
	path, _ := nested(config, "dataset", "path").(string)
	if path == "" {
		return nil
	}
	match := datasetPathRegexp.FindStringSubmatch(path)
	if match == nil {
		return nil
	}
	id, err := uuid.Parse(match[1])
	if err != nil {
		return nil
	}
	return map[string]any{"id": id.String(), "name": match[2]}
}

func extractMaxSamples(config map[string]any) (any, bool) {
	for _, section := range []string{"job", "evaluation"} {
		if v := nested(config, section, "max_samples"); v != nil {
			return v, true
		}
	}
	return nil, false
}

func extractModelNameOrPath(config map[string]any) any {
	for _, path := range [][]string{
		{"model", "path"},
		{"model", "inference", "model"},
		{"hf_pipeline", "model_name_or_path"},
		{"inference_server", "model"},
	} {
		if v, ok := nested(config, path...).(string); ok && v != "" {
			return v
		}
	}
	return nil
}

func nested(m map[string]any, path ...string) any {
	var current any = m
	for _, p := range path {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = asMap[p]
	}
	return current
}
