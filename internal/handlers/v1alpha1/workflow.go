package v1alpha1

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/handlers/v1alpha1/mappers"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/pkg/log"
)

func (h *ServiceHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("workflow_handler").WithContext(r.Context()).Operation("create_workflow").Build()

	var body v1alpha1.WorkflowCreate
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

	workflow, err := h.workflowSrv.Create(r.Context(), mappers.WorkflowFormApi(body))
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithString("workflow_id", workflow.ID).Log()
	created(w, r, childLocation(r, workflow.ID), mappers.WorkflowToApi(*workflow))
}

func (h *ServiceHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	details, err := h.workflowSrv.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.WorkflowDetailsToApi(*details))
}

func (h *ServiceHandler) GetWorkflowLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.workflowSrv.Logs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, v1alpha1.WorkflowLogs{Logs: logs})
}

func (h *ServiceHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logger := log.NewDebugLogger("workflow_handler").WithContext(r.Context()).Operation("delete_workflow").WithString("workflow_id", id).Build()

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		var err error
		if force, err = strconv.ParseBool(raw); err != nil {
			renderError(w, r, service.NewErrValidation("force is not a boolean: %q", raw))
			return
		}
	}

	workflow, err := h.workflowSrv.Delete(r.Context(), id, force)
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithBool("force", force).Log()
	_ = render.Render(w, r, mappers.WorkflowToApi(*workflow))
}
