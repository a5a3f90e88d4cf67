package v1alpha1

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mozilla-ai/lumigator/internal/handlers/validator"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/util"
)

const (
	defaultSkip  = 0
	defaultLimit = 100
)

type ServiceHandler struct {
	datasetSrv    *service.DatasetService
	jobSrv        *service.JobService
	workflowSrv   *service.WorkflowService
	experimentSrv *service.ExperimentService
	secretSrv     *service.SecretService
	healthSrv     *service.HealthService
	validator     *validator.Validator
}

func NewServiceHandler(
	datasetService *service.DatasetService,
	jobService *service.JobService,
	workflowService *service.WorkflowService,
	experimentService *service.ExperimentService,
	secretService *service.SecretService,
	healthService *service.HealthService,
) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewJobValidationRules()...)
	v.Register(validator.NewWorkflowValidationRules()...)
	v.Register(validator.NewExperimentValidationRules()...)
	v.Register(validator.NewSecretValidationRules()...)

	return &ServiceHandler{
		datasetSrv:    datasetService,
		jobSrv:        jobService,
		workflowSrv:   workflowService,
		experimentSrv: experimentService,
		secretSrv:     secretService,
		healthSrv:     healthService,
		validator:     v,
	}
}

// Routes mounts the api under the router. Paths are relative to /api/v1.
func (h *ServiceHandler) Routes(r chi.Router) {
	r.Route("/datasets", func(r chi.Router) {
		r.Post("/", h.UploadDataset)
		r.Get("/", h.ListDatasets)
		r.Get("/{id}", h.GetDataset)
		r.Delete("/{id}", h.DeleteDataset)
		r.Get("/{id}/download", h.DownloadDataset)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Get("/{id}", h.GetJob)
		r.Get("/{id}/logs", h.GetJobLogs)
		r.Get("/{id}/result", h.GetJobResult)
		r.Get("/{id}/result/download", h.GetJobResultDownload)
		r.Get("/{id}/dataset", h.GetJobDataset)
		r.Post("/{id}/stop", h.StopJob)
		// on POST the segment is the job type
		r.Post("/{id}", h.CreateJob)
	})

	r.Route("/workflows", func(r chi.Router) {
		r.Post("/", h.CreateWorkflow)
		r.Get("/{id}", h.GetWorkflow)
		r.Delete("/{id}", h.DeleteWorkflow)
		r.Get("/{id}/logs", h.GetWorkflowLogs)
	})

	r.Route("/experiments", func(r chi.Router) {
		r.Post("/", h.CreateExperiment)
		r.Get("/", h.ListExperiments)
		r.Get("/{id}", h.GetExperiment)
		r.Delete("/{id}", h.DeleteExperiment)
	})

	r.Route("/secrets", func(r chi.Router) {
		r.Get("/", h.ListSecrets)
		r.Put("/{name}", h.PutSecret)
		r.Delete("/{name}", h.DeleteSecret)
	})
}

// paging reads the skip and limit query parameters.
func paging(r *http.Request) (skip, limit int, err error) {
	query := r.URL.Query()
	if skip, err = util.AtoiDefault(query.Get("skip"), defaultSkip); err != nil || skip < 0 {
		return 0, 0, service.NewErrValidation("skip must be a non negative integer")
	}
	if limit, err = util.AtoiDefault(query.Get("limit"), defaultLimit); err != nil || limit < 0 {
		return 0, 0, service.NewErrValidation("limit must be a non negative integer")
	}
	return skip, limit, nil
}

func created(w http.ResponseWriter, r *http.Request, location string, v render.Renderer) {
	w.Header().Set("Location", location)
	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, v)
}

// childLocation is the location of a resource created by a POST on its collection.
func childLocation(r *http.Request, id string) string {
	return path.Join(strings.TrimSuffix(r.URL.Path, "/"), id)
}

// siblingLocation is the location of a resource created by a POST on a sub path of
// its collection, such as /jobs/inference.
func siblingLocation(r *http.Request, id string) string {
	return path.Join(path.Dir(strings.TrimSuffix(r.URL.Path, "/")), id)
}
