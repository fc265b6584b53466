package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/instasweep/instasweep/internal/progress"
)

// PrometheusSink exports sweep progress via Prometheus. It owns all
// collectors for probes, batches, and run lifecycle.
type PrometheusSink struct {
	probesTotal      *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	batchesCommitted prometheus.Counter
	recordsCommitted prometheus.Counter
	runsStarted      prometheus.Counter
	runsCompleted    *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided
// registry; nil means the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_probes_total",
			Help: "Terminal probe outcomes partitioned by class.",
		}, []string{"outcome"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sweep_probe_duration_seconds",
			Help:    "Probe duration including retries, by outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		batchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweep_batches_committed_total",
			Help: "Batches durably committed to the record store.",
		}),
		recordsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweep_records_committed_total",
			Help: "Records durably committed to the record store.",
		}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweep_runs_started_total",
			Help: "Engine runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_runs_completed_total",
			Help: "Engine runs completed partitioned by result.",
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.probesTotal,
		s.probeDuration,
		s.batchesCommitted,
		s.recordsCommitted,
		s.runsStarted,
		s.runsCompleted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors for one event.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageProbeDone:
		outcome := string(evt.Outcome)
		s.probesTotal.WithLabelValues(outcome).Inc()
		if evt.Dur > 0 {
			s.probeDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
		}
	case progress.StageBatchCommit:
		s.batchesCommitted.Inc()
		s.recordsCommitted.Add(float64(evt.Records))
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
