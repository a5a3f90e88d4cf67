package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/handlers/v1alpha1/mappers"
	"github.com/mozilla-ai/lumigator/pkg/log"
)

func (h *ServiceHandler) ListSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := h.secretSrv.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, mappers.SecretListToApi(secrets))
}

// PutSecret answers 201 when the secret is new and 204 when it replaced an existing one.
func (h *ServiceHandler) PutSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	logger := log.NewDebugLogger("secret_handler").WithContext(r.Context()).Operation("put_secret").WithString("name", name).Build()

	if err := h.validator.Var("name", name, "secret_name"); err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	var body v1alpha1.SecretPut
	if err := render.Bind(r, &body); err != nil {
		logger.Error(err).Log()
		renderError(w, r, bindError(err))
		return
	}
	if err := h.validator.Struct(body); err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	isNew, err := h.secretSrv.Put(r.Context(), mappers.SecretFormApi(name, body))
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithBool("created", isNew).Log()
	if isNew {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ServiceHandler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	logger := log.NewDebugLogger("secret_handler").WithContext(r.Context()).Operation("delete_secret").WithString("name", name).Build()

	if err := h.secretSrv.Delete(r.Context(), name); err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().Log()
	w.WriteHeader(http.StatusNoContent)
}
