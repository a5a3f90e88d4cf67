package artifact_test

import (
	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("keys", func() {
	id := uuid.MustParse("3b2f7c4e-1111-4222-8333-444455556666")

	It("builds the dataset keys", func() {
		Expect(artifact.DatasetKey(id, "data.csv")).To(Equal("datasets/3b2f7c4e-1111-4222-8333-444455556666/data.csv"))
		Expect(artifact.CanonicalDatasetKey(id, "data.csv")).To(Equal("datasets/3b2f7c4e-1111-4222-8333-444455556666/data.csv/dataset.csv"))
		Expect(artifact.SourceDatasetKey(id, "data.xlsx")).To(Equal("datasets/3b2f7c4e-1111-4222-8333-444455556666/data.xlsx/data.xlsx"))
		Expect(artifact.DatasetPrefix(id)).To(Equal("datasets/3b2f7c4e-1111-4222-8333-444455556666/"))
	})

	It("sanitizes the job name of the result key", func() {
		Expect(artifact.JobResultKey("my job/1", id)).To(Equal("jobs/results/my-job-1/3b2f7c4e-1111-4222-8333-444455556666/results.json"))
		Expect(artifact.SanitizeName("a.b_c-d")).To(Equal("a.b_c-d"))
	})

	It("builds the compiled workflow key", func() {
		Expect(artifact.CompiledWorkflowKey("abc")).To(Equal("workflows/results/abc/compiled.json"))
	})

	DescribeTable("extracts the key of an uri",
		func(uri, key string, fails bool) {
			got, err := artifact.KeyFromURI(uri)
			if fails {
				Expect(err).ToNot(BeNil())
				return
			}
			Expect(err).To(BeNil())
			Expect(got).To(Equal(key))
		},
		Entry("with scheme", "s3://bucket/jobs/results/a/results.json", "jobs/results/a/results.json", false),
		Entry("without scheme", "bucket/jobs/results/a/results.json", "jobs/results/a/results.json", false),
		Entry("bucket only", "s3://bucket", "", true),
		Entry("empty", "", "", true),
	)
})
