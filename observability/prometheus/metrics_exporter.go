package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-loop-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "looprunner"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64

	// IterationBuckets defaults to buckets suited to frame-length iterations.
	IterationBuckets []float64
}

var defaultIterationBuckets = []float64{.0005, .001, .002, .004, .008, .016, .033, .066, .1, .25, 1}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds  *prom.HistogramVec
	taskFailureTotal     *prom.CounterVec
	taskRejectedTotal    *prom.CounterVec
	queueDepth           *prom.GaugeVec
	roleIterationSeconds *prom.HistogramVec
	roleFailureTotal     *prom.CounterVec
	emergencyStopTotal   *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	iterationBuckets := opts.IterationBuckets
	if len(iterationBuckets) == 0 {
		iterationBuckets = defaultIterationBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Worker task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"orchestrator"})
	failureVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_failure_total",
		Help:      "Total number of failed worker tasks.",
	}, []string{"orchestrator", "kind"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected tasks.",
	}, []string{"orchestrator", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current task queue depth.",
	}, []string{"orchestrator"})
	iterationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "role_iteration_seconds",
		Help:      "Role loop iteration duration in seconds.",
		Buckets:   iterationBuckets,
	}, []string{"role", "thread"})
	roleFailureVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "role_failure_total",
		Help:      "Total number of failed role loop iterations.",
	}, []string{"role", "thread", "policy"})
	emergencyVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "emergency_stop_total",
		Help:      "Total number of emergency stops.",
	}, []string{"orchestrator"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if failureVec, err = registerCollector(reg, failureVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if iterationVec, err = registerCollector(reg, iterationVec); err != nil {
		return nil, err
	}
	if roleFailureVec, err = registerCollector(reg, roleFailureVec); err != nil {
		return nil, err
	}
	if emergencyVec, err = registerCollector(reg, emergencyVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:  durationVec,
		taskFailureTotal:     failureVec,
		taskRejectedTotal:    rejectedVec,
		queueDepth:           queueDepthVec,
		roleIterationSeconds: iterationVec,
		roleFailureTotal:     roleFailureVec,
		emergencyStopTotal:   emergencyVec,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(orchestrator string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(orchestrator, "unknown")).Observe(duration.Seconds())
}

// RecordTaskFailure counts failed tasks, split by returned error and panic.
func (m *MetricsExporter) RecordTaskFailure(orchestrator string, panicked bool) {
	if m == nil {
		return
	}
	kind := "error"
	if panicked {
		kind = "panic"
	}
	m.taskFailureTotal.WithLabelValues(normalizeLabel(orchestrator, "unknown"), kind).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(orchestrator string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(orchestrator, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(orchestrator string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(orchestrator, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordIteration observes one role loop iteration.
func (m *MetricsExporter) RecordIteration(role core.Role, thread string, duration time.Duration) {
	if m == nil {
		return
	}
	m.roleIterationSeconds.WithLabelValues(role.String(), normalizeLabel(thread, role.String())).Observe(duration.Seconds())
}

// RecordRoleFailure counts failed role loop iterations.
func (m *MetricsExporter) RecordRoleFailure(role core.Role, thread string, policy core.FailurePolicy) {
	if m == nil {
		return
	}
	m.roleFailureTotal.WithLabelValues(role.String(), normalizeLabel(thread, role.String()), policy.String()).Inc()
}

// RecordEmergencyStop counts emergency stops.
func (m *MetricsExporter) RecordEmergencyStop(orchestrator string) {
	if m == nil {
		return
	}
	m.emergencyStopTotal.WithLabelValues(normalizeLabel(orchestrator, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
