package redact

import "regexp"

const DefaultMarker = "<REDACTED>"

// Redactor masks the values of keys matching any of its patterns.
// Maps are walked recursively and list items are checked against the key holding the list.
type Redactor struct {
	patterns []*regexp.Regexp
	marker   string
}

func New(patterns []*regexp.Regexp) *Redactor {
	return &Redactor{patterns: patterns, marker: DefaultMarker}
}

func (r *Redactor) WithMarker(marker string) *Redactor {
	return &Redactor{patterns: r.patterns, marker: marker}
}

// Redact returns a redacted copy of data. The input is never modified.
func (r *Redactor) Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = r.value(k, v)
	}
	return out
}

func (r *Redactor) value(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		return r.Redact(t)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = r.value(k, s)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = r.value(key, item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = r.value(key, item)
		}
		return out
	}
	if r.sensitive(key) {
		return r.marker
	}
	return v
}

func (r *Redactor) sensitive(key string) bool {
	for _, p := range r.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
