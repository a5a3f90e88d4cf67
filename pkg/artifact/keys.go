package artifact

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	datasetsPrefix    = "datasets"
	JobResultsPrefix  = "jobs/results"
	workflowsPrefix   = "workflows/results"
	resultsFilename   = "results.json"
	compiledFilename  = "compiled.json"
	CanonicalFilename = "dataset.csv"
	uriScheme         = "s3://"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeName makes a name safe to use as a single key segment.
func SanitizeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "-")
}

// DatasetPrefix is the prefix holding every object of a dataset.
func DatasetPrefix(id uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", datasetsPrefix, id)
}

// DatasetKey is the root of the dataset tree named after the uploaded file. Workers are
// given its uri as the dataset path.
func DatasetKey(id uuid.UUID, filename string) string {
	return path.Join(datasetsPrefix, id.String(), filename)
}

// CanonicalDatasetKey is the key of the CSV rendition of the dataset.
func CanonicalDatasetKey(id uuid.UUID, filename string) string {
	return path.Join(DatasetKey(id, filename), CanonicalFilename)
}

// SourceDatasetKey keeps an upload that was not CSV in its original form.
func SourceDatasetKey(id uuid.UUID, filename string) string {
	return path.Join(DatasetKey(id, filename), path.Base(filename))
}

func JobResultKey(jobName string, jobID uuid.UUID) string {
	return path.Join(JobResultsPrefix, SanitizeName(jobName), jobID.String(), resultsFilename)
}

func CompiledWorkflowKey(workflowID string) string {
	return path.Join(workflowsPrefix, workflowID, compiledFilename)
}

// KeyFromURI returns the object key of an uri in either "s3://bucket/key" or "bucket/key" form.
func KeyFromURI(uri string) (string, error) {
	trimmed := strings.TrimPrefix(uri, uriScheme)
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", errors.Errorf("invalid object uri %q", uri)
	}
	return key, nil
}
