package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/handlers/v1alpha1/mappers"
	"github.com/mozilla-ai/lumigator/pkg/log"
)

func (h *ServiceHandler) CreateExperiment(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("experiment_handler").WithContext(r.Context()).Operation("create_experiment").Build()

	var body v1alpha1.ExperimentCreate
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

	experiment, err := h.experimentSrv.Create(r.Context(), mappers.ExperimentFormApi(body))
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithString("experiment_id", experiment.ID).Log()
	created(w, r, childLocation(r, experiment.ID), mappers.ExperimentToApi(*experiment))
}

func (h *ServiceHandler) ListExperiments(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := paging(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	experiments, total, err := h.experimentSrv.List(r.Context(), skip, limit)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.ExperimentListToApi(experiments, total))
}

func (h *ServiceHandler) GetExperiment(w http.ResponseWriter, r *http.Request) {
	experiment, err := h.experimentSrv.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.ExperimentToApi(*experiment))
}

func (h *ServiceHandler) DeleteExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logger := log.NewDebugLogger("experiment_handler").WithContext(r.Context()).Operation("delete_experiment").WithString("experiment_id", id).Build()

	if err := h.experimentSrv.Delete(r.Context(), id); err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().Log()
	w.WriteHeader(http.StatusNoContent)
}
