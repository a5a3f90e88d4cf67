package artifact

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// JobResultObject is the blob a worker writes at the end of a job.
type JobResultObject struct {
	Metrics    map[string]any `json:"metrics"`
	Parameters map[string]any `json:"parameters"`
	Artifacts  map[string]any `json:"artifacts"`
}

// DecodeJobResult parses a result blob. Unknown top level keys are rejected.
func DecodeJobResult(data []byte) (*JobResultObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	result := &JobResultObject{}
	if err := dec.Decode(result); err != nil {
		return nil, errors.Wrap(err, "failed to decode job result")
	}
	result.ensure()
	return result, nil
}

func NewJobResultObject() *JobResultObject {
	r := &JobResultObject{}
	r.ensure()
	return r
}

func (r *JobResultObject) ensure() {
	if r.Metrics == nil {
		r.Metrics = map[string]any{}
	}
	if r.Parameters == nil {
		r.Parameters = map[string]any{}
	}
	if r.Artifacts == nil {
		r.Artifacts = map[string]any{}
	}
}

// Merge copies other into r, later values win. The returned keys are the ones overwritten,
// prefixed with their section.
func (r *JobResultObject) Merge(other *JobResultObject) []string {
	r.ensure()
	collisions := []string{}
	merge := func(section string, dst, src map[string]any) {
		for k, v := range src {
			if _, found := dst[k]; found {
				collisions = append(collisions, section+"."+k)
			}
			dst[k] = v
		}
	}
	merge("metrics", r.Metrics, other.Metrics)
	merge("parameters", r.Parameters, other.Parameters)
	merge("artifacts", r.Artifacts, other.Artifacts)
	sort.Strings(collisions)
	return collisions
}

func (r *JobResultObject) Encode() ([]byte, error) {
	r.ensure()
	return json.Marshal(r)
}

// StringList returns the artifact under key as a list of strings, if it is one. A present
// null is an empty list.
func (r *JobResultObject) StringList(key string) ([]string, bool) {
	raw, found := r.Artifacts[key]
	if !found {
		return nil, false
	}
	if raw == nil {
		return nil, true
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
			out = append(out, "")
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, false
			}
			out = append(out, string(b))
		}
	}
	return out, true
}
