package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "rfq_summary"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "queue_depth",
		Help:      "Admitted jobs that have not finished",
	})
	jobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "jobs_running",
		Help:      "Jobs currently holding a permit",
	})
	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "jobs_total",
		Help:      "Jobs by mode and final status",
	}, []string{"mode", "status"})
	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "job_duration_seconds",
		Help:      "Wall time of a job from permit to final status",
		Buckets:   []float64{5, 15, 30, 60, 120, 240, 420},
	}, []string{"mode"})
	findingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "attachment_findings_total",
		Help:      "Attachment findings by kind",
	}, []string{"kind"})
	stagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "extraction_stages_total",
		Help:      "Fallback stage runs by format, stage and outcome",
	}, []string{"format", "stage", "outcome"})
)

func init() {
	prometheus.MustRegister(queueDepth, jobsRunning, jobsTotal, jobDuration, findingsTotal, stagesTotal)
}

func SetQueueDepth(n int64) { queueDepth.Set(float64(n)) }

func IncRunning() { jobsRunning.Inc() }
func DecRunning() { jobsRunning.Dec() }

// ObserveJob records a terminal job outcome.
func ObserveJob(mode, status string, elapsed time.Duration) {
	jobsTotal.With(prometheus.Labels{"mode": mode, "status": status}).Inc()
	if elapsed > 0 {
		jobDuration.With(prometheus.Labels{"mode": mode}).Observe(elapsed.Seconds())
	}
}

func IncFinding(kind string) {
	findingsTotal.With(prometheus.Labels{"kind": kind}).Inc()
}

// IncStage records one fallback stage run; outcome is sufficient,
// insufficient or error.
func IncStage(format, stage, outcome string) {
	stagesTotal.With(prometheus.Labels{"format": format, "stage": stage, "outcome": outcome}).Inc()
}
