// Package metrics exposes Prometheus collectors for the pipeline stages.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
)

// Item outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	stageItemsTotal      *prometheus.CounterVec
	stageRunsTotal       *prometheus.CounterVec
	stageDurationSeconds *prometheus.HistogramVec
	stageLastSuccess     *prometheus.GaugeVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		stageItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_stage_items_total",
				Help: "Items processed by a stage, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		stageRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_stage_runs_total",
				Help: "Stage runs, labeled by stage and status.",
			},
			[]string{"stage", "status"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadgen_stage_duration_seconds",
				Help:    "Stage wall time.",
				Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
			},
			[]string{"stage"},
		)

		stageLastSuccess = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leadgen_stage_last_success_timestamp_seconds",
				Help: "Unix time of the last successful stage run.",
			},
			[]string{"stage"},
		)
	})
}

// ObserveItems adds n items with the given outcome to a stage's counter.
func ObserveItems(stage, outcome string, n int) {
	Init()
	if n <= 0 {
		return
	}
	stageItemsTotal.WithLabelValues(stage, outcome).Add(float64(n))
}

// ObserveStage records one stage run.
func ObserveStage(stage string, started time.Time, err error) {
	Init()
	status := "success"
	if err != nil {
		status = "error"
	} else {
		stageLastSuccess.WithLabelValues(stage).SetToCurrentTime()
	}
	stageRunsTotal.WithLabelValues(stage, status).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// Handler returns an http.Handler exposing the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// Push sends the default registry to a Pushgateway under job. A blank url
// disables pushing.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	Init()
	err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx)
	return eris.Wrap(err, "metrics: push")
}
