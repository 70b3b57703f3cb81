package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "team_allocator"

// Metrics 记录每次生成分组的统计信息
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	iterations    prometheus.Histogram
	acceptedRatio prometheus.Histogram
	bestHeuristic *prometheus.GaugeVec
	violations    *prometheus.GaugeVec
	lockConflicts prometheus.Counter
	mailsQueued   *prometheus.CounterVec
}

// New 在 reg 上注册所有指标，reg 为 nil 时使用默认的 registry
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Number of annealing runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a single annealing run",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		iterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_iterations",
				Help:      "Iterations performed per annealing run",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		acceptedRatio: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_accepted_ratio",
				Help:      "Accepted swaps divided by iterations",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		bestHeuristic: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "best_heuristic",
				Help:      "Heuristic of the latest stored allocation per plan",
			},
			[]string{"plan_id"},
		),
		violations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exclusion_violations",
				Help:      "Exclusion violations in the latest stored allocation per plan",
			},
			[]string{"plan_id"},
		),
		lockConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_lock_conflicts_total",
				Help:      "Generation requests rejected because another run holds the plan lock",
			},
		),
		mailsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mails_queued_total",
				Help:      "Mail messages published to the mail queue by type",
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) ObserveRun(planID string, duration time.Duration, iterations, accepted int, heuristic float64, violations int64) {
	m.runsTotal.WithLabelValues("success").Inc()
	m.runDuration.Observe(duration.Seconds())
	m.iterations.Observe(float64(iterations))
	if iterations > 0 {
		m.acceptedRatio.Observe(float64(accepted) / float64(iterations))
	}
	m.bestHeuristic.WithLabelValues(planID).Set(heuristic)
	m.violations.WithLabelValues(planID).Set(float64(violations))
}

// ForgetPlan 删除计划对应的 gauge 序列，计划被删除时调用
func (m *Metrics) ForgetPlan(planID string) {
	m.bestHeuristic.DeleteLabelValues(planID)
	m.violations.DeleteLabelValues(planID)
}

func (m *Metrics) ObserveFailure() {
	m.runsTotal.WithLabelValues("failure").Inc()
}

func (m *Metrics) ObserveLockConflict() {
	m.lockConflicts.Inc()
}

func (m *Metrics) ObserveMailQueued(mailType string) {
	m.mailsQueued.WithLabelValues(mailType).Inc()
}
