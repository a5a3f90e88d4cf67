package service_test

import (
	"context"
	"errors"

	"github.com/mozilla-ai/lumigator/internal/client/clienttest"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/tracking/trackingtest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("health service", func() {
	It("reports every dependency", func() {
		ray := clienttest.NewRay()
		ray.Unhealthy = errors.New("connection refused")

		health := service.NewHealthService("local", "v1.2.3", map[string]service.HealthChecker{
			"ray":    ray,
			"mlflow": trackingtest.NewMemory(),
		}).Check(context.TODO())

		Expect(health.Status).To(Equal(service.HealthStatusOK))
		Expect(health.DeploymentType).To(Equal("local"))
		Expect(health.Version).To(Equal("v1.2.3"))
		Expect(health.Dependencies).To(Equal(map[string]string{
			"ray":    service.HealthStatusUnavailable,
			"mlflow": service.HealthStatusOK,
		}))
	})
})
