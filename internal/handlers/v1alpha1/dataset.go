package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/api/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/handlers/v1alpha1/mappers"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/pkg/log"
)

// multipart parts above this size are kept on disk while parsing
const maxUploadMemory = 32 << 20

func (h *ServiceHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("dataset_handler").WithContext(r.Context()).Operation("upload_dataset").Build()

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.Error(err).Log()
		renderError(w, r, service.NewErrValidation("failed to read multipart form: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("dataset")
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, service.NewErrValidation("dataset file is required"))
		return
	}
	defer file.Close()

	form, err := mappers.DatasetUploadFormApi(header.Filename, file, mappers.DatasetUploadFields{
		Format:      r.FormValue("format"),
		RunID:       r.FormValue("run_id"),
		Generated:   r.FormValue("generated"),
		GeneratedBy: r.FormValue("generated_by"),
	})
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	dataset, err := h.datasetSrv.Upload(r.Context(), form)
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithUUID("dataset_id", dataset.ID).Log()
	created(w, r, childLocation(r, dataset.ID.String()), mappers.DatasetToApi(*dataset))
}

func (h *ServiceHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := paging(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	datasets, total, err := h.datasetSrv.List(r.Context(), skip, limit)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.DatasetListToApi(datasets, total))
}

func (h *ServiceHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	dataset, err := h.datasetSrv.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.DatasetToApi(*dataset))
}

func (h *ServiceHandler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	logger := log.NewDebugLogger("dataset_handler").WithContext(r.Context()).Operation("delete_dataset").WithUUID("dataset_id", id).Build()

	if err := h.datasetSrv.Delete(r.Context(), id); err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().Log()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ServiceHandler) DownloadDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	urls, err := h.datasetSrv.Download(r.Context(), id, r.URL.Query().Get("extension"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, v1alpha1.DatasetDownload{DownloadUrls: urls})
}

// pathUUID reads the id path parameter. A malformed id is rendered as a 400.
func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		renderError(w, r, service.NewErrValidation("%q is not a valid id", raw))
		return uuid.Nil, false
	}
	return id, true
}
