package service

import (
	"context"
	"time"
)

const (
	HealthStatusOK          = "OK"
	HealthStatusUnavailable = "unavailable"

	healthCheckTimeout = 5 * time.Second
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Health struct {
	Status         string
	DeploymentType string
	Version        string
	Dependencies   map[string]string
}

// HealthService reports the deployment and whether the services we depend on answer.
type HealthService struct {
	deploymentType string
	version        string
	checkers       map[string]HealthChecker
}

func NewHealthService(deploymentType, version string, checkers map[string]HealthChecker) *HealthService {
	return &HealthService{deploymentType: deploymentType, version: version, checkers: checkers}
}

func (hs *HealthService) Check(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	h := Health{
		Status:         HealthStatusOK,
		DeploymentType: hs.deploymentType,
		Version:        hs.version,
		Dependencies:   make(map[string]string, len(hs.checkers)),
	}
	for name, checker := range hs.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			h.Dependencies[name] = HealthStatusUnavailable
			continue
		}
		h.Dependencies[name] = HealthStatusOK
	}
	return h
}
