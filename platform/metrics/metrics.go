// Package metrics holds the Prometheus collectors for the lifecycle core.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Event log
	EventsRecorded *prometheus.CounterVec

	// Triggers
	TriggerExecutions *prometheus.CounterVec

	// Nurture
	NurtureSteps *prometheus.CounterVec

	// Responder
	Classifications *prometheus.CounterVec

	// Jobs
	JobDuration  *prometheus.HistogramVec
	DeadLettered *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_events_recorded_total",
				Help: "Lifecycle events appended to the event log, by outcome",
			},
			[]string{"event_type", "result"},
		),
		TriggerExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_trigger_executions_total",
				Help: "Trigger executions by terminal status",
			},
			[]string{"trigger_type", "status"},
		),
		NurtureSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_nurture_steps_total",
				Help: "Nurture steps handled, by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		Classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_classifications_total",
				Help: "Inbound messages classified",
			},
			[]string{"objection_type", "intent"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadflow_job_duration_seconds",
				Help:    "Job handler latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task", "status"},
		),
		DeadLettered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadflow_jobs_dead_lettered_total",
				Help: "Jobs that exhausted their retries",
			},
			[]string{"task"},
		),
	}
}

// RecordEvent counts an append attempt. result is "inserted" or "duplicate".
func (m *Metrics) RecordEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(eventType, result).Inc()
}

// RecordTriggerExecution counts a finished trigger execution.
func (m *Metrics) RecordTriggerExecution(triggerType, status string) {
	if m == nil {
		return
	}
	m.TriggerExecutions.WithLabelValues(triggerType, status).Inc()
}

// RecordNurtureStep counts a nurture step outcome (sent, skipped, cancelled, failed).
func (m *Metrics) RecordNurtureStep(channel, outcome string) {
	if m == nil {
		return
	}
	m.NurtureSteps.WithLabelValues(channel, outcome).Inc()
}

// RecordClassification counts a classifier verdict.
func (m *Metrics) RecordClassification(objectionType, intent string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(objectionType, intent).Inc()
}

// ObserveJob records a handler run.
func (m *Metrics) ObserveJob(task string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobDuration.WithLabelValues(task, status).Observe(duration.Seconds())
}

// RecordDeadLetter counts a job moved to the dead-letter table.
func (m *Metrics) RecordDeadLetter(task string) {
	if m == nil {
		return
	}
	m.DeadLettered.WithLabelValues(task).Inc()
}
