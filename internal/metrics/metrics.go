// Package metrics exposes automation engine counters and gauges to
// Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/arbengine/internal/automation"
	"github.com/alanyoungcy/arbengine/internal/domain"
)

const namespace = "arbengine"

// Sink records engine events into its own registry.
type Sink struct {
	reg *prometheus.Registry

	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	hedges            *prometheus.CounterVec
	scans             *prometheus.CounterVec
	opportunities     *prometheus.CounterVec
	totalProfit       prometheus.Gauge
	currentExecutions prometheus.Gauge
	running           prometheus.Gauge
	configVersion     prometheus.Gauge
}

// NewSink creates a Sink with a fresh registry that also carries the Go
// runtime and process collectors.
func NewSink() *Sink {
	s := &Sink{
		reg: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Finalized executions by opportunity type and status",
		}, []string{"type", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time from dispatch to terminal state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		hedges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hedges_total",
			Help:      "Hedge attempts by result",
		}, []string{"result"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan cycles by result",
		}, []string{"result"}),
		opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Opportunities per scan stage",
		}, []string{"stage"}),
		totalProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_profit",
			Help:      "Realized profit since start or last stats reset",
		}),
		currentExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_executions",
			Help:      "Executions holding a slot",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 when automatic scanning is on",
		}),
		configVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_version",
			Help:      "Version of the live automation config",
		}),
	}
	s.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.executions,
		s.executionDuration,
		s.hedges,
		s.scans,
		s.opportunities,
		s.totalProfit,
		s.currentExecutions,
		s.running,
		s.configVersion,
	)
	return s
}

// Handler serves the registry in the Prometheus exposition formats.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry returns the underlying registry.
func (s *Sink) Registry() *prometheus.Registry {
	return s.reg
}

func (s *Sink) OnExecution(_ context.Context, rec domain.ExecutionRecord, stats domain.Stats) {
	s.executions.WithLabelValues(string(rec.Type), string(rec.Status)).Inc()
	s.executionDuration.WithLabelValues(string(rec.Type)).Observe(float64(rec.DurationMs) / 1000)
	s.observeStats(stats)
}

func (s *Sink) OnHedge(_ context.Context, outcome domain.HedgeOutcome, stats domain.Stats) {
	result := "failed"
	if outcome.Success {
		result = "created"
	}
	s.hedges.WithLabelValues(result).Inc()
	s.observeStats(stats)
}

func (s *Sink) OnConfig(_ context.Context, cfg domain.AutomationConfig) {
	s.configVersion.Set(float64(cfg.Version))
}

func (s *Sink) OnStatus(_ context.Context, stats domain.Stats) {
	s.observeStats(stats)
}

func (s *Sink) OnScan(_ context.Context, report domain.ScanReport) {
	switch {
	case report.Skipped && report.Error == "":
		s.scans.WithLabelValues("skipped").Inc()
		return
	case report.Error != "":
		s.scans.WithLabelValues("failed").Inc()
	default:
		s.scans.WithLabelValues("completed").Inc()
	}
	s.opportunities.WithLabelValues("discovered").Add(float64(report.Discovered))
	s.opportunities.WithLabelValues("eligible").Add(float64(report.Eligible))
	s.opportunities.WithLabelValues("dispatched").Add(float64(report.Dispatched))
}

func (s *Sink) observeStats(stats domain.Stats) {
	s.totalProfit.Set(stats.TotalProfit.InexactFloat64())
	s.currentExecutions.Set(float64(stats.CurrentExecutions))
	if stats.IsRunning {
		s.running.Set(1)
	} else {
		s.running.Set(0)
	}
}

var _ automation.Sink = (*Sink)(nil)
