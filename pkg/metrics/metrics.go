package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	lumigator = "lumigator"

	jobsSubmittedTotal       = "jobs_submitted_total"
	workflowTransitionsTotal = "workflow_transitions_total"
	datasetUploadsTotal      = "dataset_uploads_total"
	supervisorTasksRunning   = "supervisor_tasks_running"

	// Labels
	jobKindLabel        = "kind"
	outcomeLabel        = "outcome"
	workflowStatusLabel = "status"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var jobsSubmittedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: lumigator,
		Name:      jobsSubmittedTotal,
		Help:      "number of job submissions to the job service partitioned by kind and outcome",
	},
	[]string{jobKindLabel, outcomeLabel},
)

var workflowTransitionsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: lumigator,
		Name:      workflowTransitionsTotal,
		Help:      "number of workflows reaching a terminal status",
	},
	[]string{workflowStatusLabel},
)

var datasetUploadsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: lumigator,
		Name:      datasetUploadsTotal,
		Help:      "number of dataset uploads partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var supervisorTasksMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: lumigator,
		Name:      supervisorTasksRunning,
		Help:      "number of background tasks currently running",
	},
)

func IncreaseJobsSubmittedMetric(kind string, outcome string) {
	jobsSubmittedMetric.With(prometheus.Labels{
		jobKindLabel: kind,
		outcomeLabel: outcome,
	}).Inc()
}

func IncreaseWorkflowTransitionMetric(status string) {
	workflowTransitionsMetric.With(prometheus.Labels{workflowStatusLabel: status}).Inc()
}

func IncreaseDatasetUploadsMetric(outcome string) {
	datasetUploadsMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func UpdateSupervisorTasksMetric(count int) {
	supervisorTasksMetric.Set(float64(count))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsSubmittedMetric)
	prometheus.MustRegister(workflowTransitionsMetric)
	prometheus.MustRegister(datasetUploadsMetric)
	prometheus.MustRegister(supervisorTasksMetric)
}
