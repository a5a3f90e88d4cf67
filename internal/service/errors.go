package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrDatasetNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "dataset")
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "job")
}

func NewErrJobResultNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "result of job")
}

func NewErrWorkflowNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "workflow")
}

func NewErrExperimentNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "experiment")
}

func NewErrSecretNotFound(name string) *ErrResourceNotFound {
	return NewErrResourceNotFound(name, "secret")
}

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

func NewErrSecretNotConfigured(name string) *ErrValidation {
	return NewErrValidation("secret %q is required but is not configured", name)
}

func NewErrWorkflowRunning(id string) *ErrValidation {
	return NewErrValidation("workflow %s is running, use force to delete it", id)
}

type ErrUnsupportedJobKind struct {
	error
}

func NewErrUnsupportedJobKind(kind string) *ErrUnsupportedJobKind {
	return &ErrUnsupportedJobKind{fmt.Errorf("unsupported job type %q", kind)}
}

type ErrDatasetSize struct {
	error
}

func NewErrDatasetSize(limit string) *ErrDatasetSize {
	return &ErrDatasetSize{fmt.Errorf("dataset is larger than the maximum allowed size of %s", limit)}
}

type ErrDatasetInvalid struct {
	error
}

func NewErrDatasetInvalid(reason string) *ErrDatasetInvalid {
	return &ErrDatasetInvalid{fmt.Errorf("dataset is invalid: %s", reason)}
}

type ErrDatasetMissingFields struct {
	error
	Fields []string
}

func NewErrDatasetMissingFields(fields []string) *ErrDatasetMissingFields {
	sorted := append([]string{}, fields...)
	sort.Strings(sorted)
	return &ErrDatasetMissingFields{
		error:  fmt.Errorf("dataset is missing the required fields: {%s}", strings.Join(sorted, ", ")),
		Fields: sorted,
	}
}

// ErrUpstream is a failure of one of the services we depend on.
type ErrUpstream struct {
	Service string
	cause   error
}

func NewErrUpstream(service string, cause error) *ErrUpstream {
	return &ErrUpstream{Service: service, cause: cause}
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("upstream %s failure: %v", e.Service, e.cause)
}

func (e *ErrUpstream) Unwrap() error {
	return e.cause
}

type ErrSecretDecryption struct {
	error
}

func NewErrSecretDecryption(name string) *ErrSecretDecryption {
	return &ErrSecretDecryption{fmt.Errorf("failed to decrypt secret %q", name)}
}

type ErrSecretEncryption struct {
	error
}

func NewErrSecretEncryption(name string) *ErrSecretEncryption {
	return &ErrSecretEncryption{fmt.Errorf("failed to encrypt secret %q", name)}
}
