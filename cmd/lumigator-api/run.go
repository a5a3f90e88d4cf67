package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiserver "github.com/mozilla-ai/lumigator/internal/api_server"
	"github.com/mozilla-ai/lumigator/internal/client"
	"github.com/mozilla-ai/lumigator/internal/config"
	"github.com/mozilla-ai/lumigator/internal/events"
	handlers "github.com/mozilla-ai/lumigator/internal/handlers/v1alpha1"
	"github.com/mozilla-ai/lumigator/internal/redact"
	"github.com/mozilla-ai/lumigator/internal/secret"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/store"
	"github.com/mozilla-ai/lumigator/internal/tracking"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	"github.com/mozilla-ai/lumigator/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	remoteTimeout   = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the lumigator api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		cleanup := initLogging(cfg)
		defer cleanup()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := migrations.MigrateStore(db, cfg); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		producer := events.NewEventProducer(&events.LogWriter{}, events.WithOutputTopic(cfg.Service.EventsTopic))
		defer func() { _ = producer.Close() }()

		supervisor := service.NewSupervisor(context.Background())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := supervisor.Shutdown(shutdownCtx); err != nil {
				zap.S().Warnw("background tasks did not stop in time", "error", err)
			}
		}()

		h, err := newServiceHandler(cfg, s, supervisor, producer)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				return fmt.Errorf("creating listener: %w", err)
			}
			return apiserver.New(cfg, h, listener).Run(ctx)
		})
		g.Go(func() error {
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				return fmt.Errorf("creating metrics listener: %w", err)
			}
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener).Run(ctx)
		})

		return g.Wait()
	},
}

// newServiceHandler wires the remote clients and the services behind the http handlers.
func newServiceHandler(cfg *config.Config, s store.Store, supervisor *service.Supervisor, publisher service.EventPublisher) (*handlers.ServiceHandler, error) {
	svc := cfg.Service

	artifacts, err := artifact.NewMinioStore(
		artifact.WithEndpoint(svc.S3.Endpoint),
		artifact.WithBucket(svc.S3.Bucket),
		artifact.WithAccessKey(svc.S3.AccessKey),
		artifact.WithSecretKey(svc.S3.SecretKey),
		artifact.WithRegion(svc.S3.Region),
		artifact.WithSSL(svc.S3.UseSSL),
		artifact.WithURLExpiry(time.Duration(svc.S3.URLExpiry)*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	key, err := svc.DecodedSecretKey()
	if err != nil {
		return nil, err
	}
	cipher, err := secret.NewCipherFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("creating secret cipher: %w", err)
	}

	patterns, err := svc.CompiledRedactPatterns()
	if err != nil {
		return nil, err
	}

	ray := client.NewRayClient(svc.Ray.DashboardURL(), remoteTimeout)
	trackingClient := tracking.NewMLflowTracking(client.NewMLflowClient(svc.Tracking.URI, remoteTimeout), artifacts, svc.Version)

	jobTimeout := time.Duration(svc.JobTimeoutSec) * time.Second
	secrets := service.NewSecretService(s, cipher)
	datasets := service.NewDatasetService(s, artifacts, int64(svc.MaxDatasetSize))
	jobs := service.NewJobService(s, ray, artifacts, secrets, datasets, supervisor, redact.New(patterns),
		service.WorkerSettings{
			InferenceCommand: svc.Workers.InferenceCommand,
			InferenceWorkDir: svc.Workers.InferenceWorkDir,
			InferencePipReqs: svc.Workers.InferencePipReqs,
			EvaluatorCommand: svc.Workers.EvaluatorCommand,
			EvaluatorWorkDir: svc.Workers.EvaluatorWorkDir,
			EvaluatorPipReqs: svc.Workers.EvaluatorPipReqs,
			EnvWhitelist:     svc.Ray.WorkerEnvVars,
			NumGPUs:          svc.Ray.NumGPUs(),
			JobTimeout:       jobTimeout,
		}).WithEvents(publisher)
	workflows := service.NewWorkflowService(trackingClient, jobs, datasets, secrets, artifacts, supervisor, jobTimeout).WithEvents(publisher)
	experiments := service.NewExperimentService(trackingClient, workflows, datasets)
	health := service.NewHealthService(svc.DeploymentType, svc.Version, map[string]service.HealthChecker{
		"ray":    jobs,
		"mlflow": trackingClient,
	})

	return handlers.NewServiceHandler(datasets, jobs, workflows, experiments, secrets, health), nil
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
