package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/handlers/validator"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/pkg/requestid"
)

func is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// errorStatuses maps the service errors to their status code. The first match wins,
// anything else is an internal error.
var errorStatuses = []struct {
	matches func(error) bool
	status  int
}{
	{is[*service.ErrResourceNotFound], http.StatusNotFound},
	{is[*service.ErrValidation], http.StatusBadRequest},
	{is[*validator.ErrInvalidForm], http.StatusBadRequest},
	{is[*service.ErrDatasetMissingFields], http.StatusForbidden},
	{is[*service.ErrDatasetSize], http.StatusRequestEntityTooLarge},
	{is[*service.ErrDatasetInvalid], http.StatusUnprocessableEntity},
	{is[*service.ErrUnsupportedJobKind], http.StatusNotImplemented},
	{is[*service.ErrUpstream], http.StatusInternalServerError},
	{is[*service.ErrSecretDecryption], http.StatusInternalServerError},
	{is[*service.ErrSecretEncryption], http.StatusInternalServerError},
}

func StatusFor(err error) int {
	for _, e := range errorStatuses {
		if e.matches(err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, StatusFor(err))
	_ = render.Render(w, r, v1alpha1.ErrorResponse{
		Detail:    err.Error(),
		RequestId: requestid.FromRequest(r),
	})
}

// bindError wraps a body that could not be decoded.
func bindError(err error) error {
	return service.NewErrValidation("invalid request body: %v", err)
}
