package artifact_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/mozilla-ai/lumigator/pkg/artifact"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// objectServer serves the path style object calls of a single bucket.
type objectServer struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (o *objectServer) handler(bucket string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()

		key := strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")
		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			o.objects[key] = data
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet, http.MethodHead:
			data, found := o.objects[key]
			if !found {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				if r.Method == http.MethodGet {
					fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message><Key>%s</Key><BucketName>%s</BucketName></Error>`, key, bucket)
				}
				return
			}
			w.Header().Set("ETag", `"etag"`)
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				_, _ = w.Write(data)
			}
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}
}

var _ = Describe("minio store", func() {
	var (
		ts     *httptest.Server
		server *objectServer
		store  *artifact.MinioStore
	)

	BeforeEach(func() {
		server = &objectServer{objects: map[string][]byte{}}
		ts = httptest.NewServer(server.handler("bucket"))

		var err error
		store, err = artifact.NewMinioStore(
			artifact.WithEndpoint(strings.TrimPrefix(ts.URL, "http://")),
			artifact.WithBucket("bucket"),
			artifact.WithAccessKey("access"),
			artifact.WithSecretKey("secret"),
			artifact.WithRegion("us-east-1"),
		)
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		ts.Close()
	})

	It("puts and gets an object", func() {
		data := []byte("examples,ground_truth\na,b\n")
		err := store.PutObject(context.TODO(), "datasets/x/data.csv", bytes.NewReader(data), int64(len(data)), "text/csv")
		Expect(err).To(BeNil())

		got, err := store.GetObject(context.TODO(), "datasets/x/data.csv")
		Expect(err).To(BeNil())
		Expect(got).To(Equal(data))

		exists, err := store.Exists(context.TODO(), "datasets/x/data.csv")
		Expect(err).To(BeNil())
		Expect(exists).To(BeTrue())
	})

	It("reports missing objects as not found", func() {
		_, err := store.GetObject(context.TODO(), "jobs/results/missing/results.json")
		Expect(err).To(MatchError(artifact.ErrNotFound))

		exists, err := store.Exists(context.TODO(), "jobs/results/missing/results.json")
		Expect(err).To(BeNil())
		Expect(exists).To(BeFalse())
	})

	It("builds uris with the bucket", func() {
		Expect(store.URI("a/b")).To(Equal("s3://bucket/a/b"))
		Expect(store.Bucket()).To(Equal("bucket"))
	})
})
