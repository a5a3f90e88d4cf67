package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/mozilla-ai/lumigator/internal/client"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ray client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("SubmitJob", func() {
		It("posts the submission", func() {
			var received client.JobSubmission

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/api/jobs/"))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				_ = json.NewDecoder(r.Body).Decode(&received)

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"job_id": "raysubmit_1", "submission_id": "abc"}`))
			}))
			defer server.Close()

			rayClient := client.NewRayClient(server.URL, 5*time.Second)
			id, err := rayClient.SubmitJob(ctx, client.JobSubmission{
				Entrypoint:   "python inference.py --config '{}'",
				SubmissionID: "abc",
				RuntimeEnv:   client.RuntimeEnv{WorkingDir: "../jobs/inference", EnvVars: map[string]string{"MZAI_JOB_ID": "abc"}},
				Metadata:     map[string]string{"job_type": "inference"},
			})

			Expect(err).To(BeNil())
			Expect(id).To(Equal("abc"))
			Expect(received.SubmissionID).To(Equal("abc"))
			Expect(received.RuntimeEnv.EnvVars).To(HaveKeyWithValue("MZAI_JOB_ID", "abc"))
			Expect(received.Metadata).To(HaveKeyWithValue("job_type", "inference"))
		})

		It("returns the status of a rejected submission", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("boom"))
			}))
			defer server.Close()

			_, err := client.NewRayClient(server.URL, 5*time.Second).SubmitJob(ctx, client.JobSubmission{})
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("500"))
			Expect(client.IsNotFound(err)).To(BeFalse())
		})
	})

	Describe("GetJob", func() {
		It("decodes the job and keeps the raw fields", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/jobs/abc"))
				_, _ = w.Write([]byte(`{"submission_id": "abc", "status": "RUNNING", "start_time": 1000, "driver_info": {"id": "1"}}`))
			}))
			defer server.Close()

			job, err := client.NewRayClient(server.URL, 0).GetJob(ctx, "abc")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("RUNNING"))
			Expect(job.StartTime).To(BeNumerically("==", 1000))
			Expect(job.Raw).To(HaveKey("driver_info"))
		})

		It("distinguishes unknown jobs", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			_, err := client.NewRayClient(server.URL, 0).GetJob(ctx, "abc")
			Expect(client.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("jobs", func() {
		It("lists, stops and reads logs", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/jobs/":
					_, _ = w.Write([]byte(`[{"submission_id": "a", "status": "SUCCEEDED"}, {"submission_id": "b", "status": "PENDING"}]`))
				case "/api/jobs/a/stop":
					Expect(r.Method).To(Equal(http.MethodPost))
					_, _ = w.Write([]byte(`{"stopped": true}`))
				case "/api/jobs/a/logs":
					_, _ = w.Write([]byte(`{"logs": "line 1\nline 2"}`))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			rayClient := client.NewRayClient(server.URL, 0)

			jobs, err := rayClient.ListJobs(ctx)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[1].SubmissionID).To(Equal("b"))

			stopped, err := rayClient.StopJob(ctx, "a")
			Expect(err).To(BeNil())
			Expect(stopped).To(BeTrue())

			logs, err := rayClient.GetJobLogs(ctx, "a")
			Expect(err).To(BeNil())
			Expect(logs).To(Equal("line 1\nline 2"))
		})
	})
})
