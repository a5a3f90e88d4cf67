package v1alpha1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/client"
	"github.com/mozilla-ai/lumigator/internal/client/clienttest"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("workflow and experiment handlers", func() {
	var (
		a         *api
		datasetID string
	)

	createExperiment := func(name string) string {
		rec := a.doJSON(http.MethodPost, "/api/v1/experiments/", map[string]any{
			"name":            name,
			"task_definition": map[string]any{"task": "summarization"},
			"dataset":         datasetID,
			"max_samples":     2,
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		return decode(rec)["id"].(string)
	}

	workflowBody := func(experimentID string) map[string]any {
		return map[string]any{
			"name":          "bart",
			"experiment_id": experimentID,
			"model":         "facebook/bart-large-cnn",
			"provider":      "hf",
		}
	}

	// every job succeeds at once with a result shaped after its kind
	completeJobs := func() {
		a.ray.OnSubmit = func(submission client.JobSubmission) string {
			cfg, err := clienttest.SubmittedConfig(submission)
			if err != nil {
				return "FAILED"
			}
			name := strings.TrimSuffix(cfg["name"].(string), "/"+submission.SubmissionID)
			id := uuid.MustParse(submission.SubmissionID)

			result := map[string]any{
				"metrics":    map[string]any{"rouge": map[string]any{"rouge1_mean": 0.5}},
				"parameters": map[string]any{},
				"artifacts":  map[string]any{},
			}
			if submission.Metadata["job_type"] == "inference" {
				result = map[string]any{
					"metrics":    map[string]any{"summarization_time": 1.5},
					"parameters": map[string]any{},
					"artifacts": map[string]any{
						"examples":     []any{"first text", "second text"},
						"ground_truth": []any{"first summary", "second summary"},
						"predictions":  []any{"first prediction", "second prediction"},
					},
				}
			}
			blob, _ := json.Marshal(result)
			if err := a.artifacts.PutObject(context.TODO(), artifact.JobResultKey(name, id), bytes.NewReader(blob), int64(len(blob)), "application/json"); err != nil {
				return "FAILED"
			}
			return "SUCCEEDED"
		}
	}

	BeforeEach(func() {
		a = newAPI()
		datasetID = a.uploadDataset()
	})

	Context("experiments", func() {
		It("creates, lists and gets experiments", func() {
			id := createExperiment("first")
			createExperiment("second")

			rec := a.do(http.MethodGet, "/api/v1/experiments/?limit=1", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["total"]).To(BeNumerically("==", 2))
			Expect(body["items"]).To(HaveLen(1))

			rec = a.do(http.MethodGet, "/api/v1/experiments/"+id, nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["name"]).To(Equal("first"))
		})

		It("answers 400 on a duplicate name", func() {
			createExperiment("first")

			rec := a.doJSON(http.MethodPost, "/api/v1/experiments/", map[string]any{
				"name":            "first",
				"task_definition": map[string]any{"task": "summarization"},
				"dataset":         datasetID,
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 400 when the task is missing", func() {
			rec := a.doJSON(http.MethodPost, "/api/v1/experiments/", map[string]any{"name": "first", "dataset": datasetID})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rec)["detail"]).To(ContainSubstring("task_definition.task is required"))
		})

		It("answers 404 on an unknown experiment", func() {
			rec := a.do(http.MethodGet, "/api/v1/experiments/404", nil, "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("workflows", func() {
		It("runs the workflow to completion", func() {
			completeJobs()
			experimentID := createExperiment("first")

			rec := a.doJSON(http.MethodPost, "/api/v1/workflows/", workflowBody(experimentID))
			Expect(rec.Code).To(Equal(http.StatusCreated))
			id := decode(rec)["id"].(string)
			Expect(rec.Header().Get("Location")).To(Equal("/api/v1/workflows/" + id))

			Eventually(func() any {
				return decode(a.do(http.MethodGet, "/api/v1/workflows/"+id, nil, ""))["status"]
			}, 5*time.Second, 20*time.Millisecond).Should(Equal("succeeded"))

			body := decode(a.do(http.MethodGet, "/api/v1/workflows/"+id, nil, ""))
			Expect(body["jobs"]).To(HaveLen(2))
			Expect(body["metrics"]).To(HaveKeyWithValue("rouge_rouge1_mean", BeNumerically("==", 0.5)))
			Expect(body["artifacts_download_url"]).NotTo(BeEmpty())

			rec = a.do(http.MethodGet, "/api/v1/workflows/"+id+"/logs", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("answers 400 when the provider is missing", func() {
			experimentID := createExperiment("first")
			body := workflowBody(experimentID)
			delete(body, "provider")

			rec := a.doJSON(http.MethodPost, "/api/v1/workflows/", body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 400 on an unknown experiment", func() {
			rec := a.doJSON(http.MethodPost, "/api/v1/workflows/", workflowBody("404"))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rec)["detail"]).To(ContainSubstring("no experiment found"))
		})

		It("refuses to delete a running workflow without force", func() {
			experimentID := createExperiment("first")
			rec := a.doJSON(http.MethodPost, "/api/v1/workflows/", workflowBody(experimentID))
			Expect(rec.Code).To(Equal(http.StatusCreated))
			id := decode(rec)["id"].(string)

			Eventually(func() []client.JobSubmission {
				return a.ray.Submissions()
			}, 5*time.Second, 20*time.Millisecond).Should(HaveLen(1))

			rec = a.do(http.MethodDelete, "/api/v1/workflows/"+id, nil, "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			rec = a.do(http.MethodDelete, "/api/v1/workflows/"+id+"?force=true", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["id"]).To(Equal(id))

			rec = a.do(http.MethodGet, "/api/v1/workflows/"+id, nil, "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("answers 400 on a malformed force flag", func() {
			rec := a.do(http.MethodDelete, "/api/v1/workflows/1?force=maybe", nil, "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("deletes an experiment along with its workflows", func() {
		completeJobs()
		experimentID := createExperiment("first")
		rec := a.doJSON(http.MethodPost, "/api/v1/workflows/", workflowBody(experimentID))
		Expect(rec.Code).To(Equal(http.StatusCreated))
		id := decode(rec)["id"].(string)

		Eventually(func() any {
			return decode(a.do(http.MethodGet, "/api/v1/workflows/"+id, nil, ""))["status"]
		}, 5*time.Second, 20*time.Millisecond).Should(Equal("succeeded"))

		rec = a.do(http.MethodDelete, "/api/v1/experiments/"+experimentID, nil, "")
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		Expect(a.do(http.MethodGet, "/api/v1/workflows/"+id, nil, "").Code).To(Equal(http.StatusNotFound))
		Expect(a.do(http.MethodGet, "/api/v1/experiments/"+experimentID, nil, "").Code).To(Equal(http.StatusNotFound))
	})
})
