package v1alpha1

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/handlers/v1alpha1/mappers"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/pkg/log"
)

func (h *ServiceHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	jobType := chi.URLParam(r, "id")
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("create_job").WithString("job_type", jobType).Build()

	if !model.JobType(jobType).Valid() {
		err := service.NewErrUnsupportedJobKind(jobType)
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	var body v1alpha1.JobCreate
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

	req, err := mappers.JobCreateFormApi(jobType, body)
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	job, err := h.jobSrv.CreateJob(r.Context(), req)
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithUUID("job_id", job.ID).Log()
	created(w, r, siblingLocation(r, job.ID.String()), mappers.JobToApi(service.JobView{Job: *job}))
}

func (h *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := paging(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	jobs, total, err := h.jobSrv.ListJobs(r.Context(), skip, limit, jobTypes(r))
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.JobListToApi(jobs, total))
}

// jobTypes accepts both job_types=a&job_types=b and job_types=a,b.
func jobTypes(r *http.Request) []string {
	var types []string
	for _, value := range r.URL.Query()["job_types"] {
		for _, t := range strings.Split(value, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	return types
}

func (h *ServiceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	job, err := h.jobSrv.GetJob(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.JobToApi(*job))
}

func (h *ServiceHandler) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	logs, err := h.jobSrv.GetJobLogs(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, v1alpha1.JobLogs{Logs: logs})
}

func (h *ServiceHandler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	result, err := h.jobSrv.GetJobResult(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.JobResultToApi(*result))
}

func (h *ServiceHandler) GetJobResultDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	url, err := h.jobSrv.GetJobResultDownloadURL(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, v1alpha1.JobResultDownload{Id: id, DownloadUrl: url})
}

func (h *ServiceHandler) GetJobDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	dataset, err := h.jobSrv.GetJobDataset(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.DatasetToApi(*dataset))
}

func (h *ServiceHandler) StopJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("stop_job").WithUUID("job_id", id).Build()

	stopped, err := h.jobSrv.StopJob(r.Context(), id)
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithBool("stopped", stopped).Log()
	_ = render.Render(w, r, v1alpha1.JobStopped{Stopped: stopped})
}
