// Package metrics provides Prometheus metrics for the exam bot.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/speakbot/internal/bot"
	"github.com/abhisek/speakbot/internal/exam"
)

var (
	_ exam.Metrics = (*Manager)(nil)
	_ bot.Metrics  = (*Manager)(nil)
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Manager owns the bot's metrics and the registry they live in. It
// satisfies exam.Metrics and bot.Metrics.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	runtime          bool
	registry         *prometheus.Registry

	// Exam flow
	tasksSelected  *prometheus.CounterVec
	partsStarted   *prometheus.CounterVec
	answers        *prometheus.CounterVec
	evaluations    *prometheus.CounterVec
	evaluationTime prometheus.Histogram
	accessDenied   prometheus.Counter
	accessGranted  prometheus.Counter
	activeSessions prometheus.Gauge

	// Dispatcher
	updates        *prometheus.CounterVec
	updateErrors   *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	panics         prometheus.Counter
}

// NewManager creates a Manager on a fresh registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "speakbot",
		subsystem:        "exam",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.tasksSelected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_selected_total",
		Help:      "Task selections by task id",
	}, []string{"task"})

	m.partsStarted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "parts_started_total",
		Help:      "Parts started by task id and part index",
	}, []string{"task", "part"})

	m.answers = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "answers_total",
		Help:      "Answer outcomes: recorded, transcription_failed, late, timed_out",
	}, []string{"outcome"})

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_total",
		Help:      "Evaluations by result",
	}, []string{"result"})

	m.evaluationTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent waiting for the evaluation service",
		Buckets:   m.histogramBuckets,
	})

	m.accessDenied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "access_denied_total",
		Help:      "Restricted task selections rejected for missing access",
	})

	m.accessGranted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "access_granted_total",
		Help:      "Access grants issued by the admin",
	})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_sessions",
		Help:      "Users with a task in progress",
	})

	m.updates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "bot",
		Name:      "updates_total",
		Help:      "Incoming updates by kind",
	}, []string{"kind"})

	m.updateErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "bot",
		Name:      "update_errors_total",
		Help:      "Updates whose handling returned an error, by kind",
	}, []string{"kind"})

	m.updateDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "bot",
		Name:      "update_duration_seconds",
		Help:      "Time to handle one update, by kind",
		Buckets:   m.histogramBuckets,
	}, []string{"kind"})

	m.panics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "bot",
		Name:      "handler_panics_total",
		Help:      "Recovered panics in update handlers",
	})
}

// Registry returns the registry backing the Manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) TaskSelected(taskID int) {
	m.tasksSelected.WithLabelValues(strconv.Itoa(taskID)).Inc()
}

func (m *Manager) PartStarted(taskID, partIndex int) {
	m.partsStarted.WithLabelValues(strconv.Itoa(taskID), strconv.Itoa(partIndex)).Inc()
}

func (m *Manager) Answer(outcome exam.AnswerOutcome) {
	m.answers.WithLabelValues(outcome.String()).Inc()
}

func (m *Manager) Evaluation(success bool, elapsed time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.evaluations.WithLabelValues(result).Inc()
	m.evaluationTime.Observe(elapsed.Seconds())
}

func (m *Manager) AccessDenied()  { m.accessDenied.Inc() }
func (m *Manager) AccessGranted() { m.accessGranted.Inc() }

func (m *Manager) ActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func (m *Manager) UpdateHandled(kind string, elapsed time.Duration, err error) {
	m.updates.WithLabelValues(kind).Inc()
	m.updateDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		m.updateErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Manager) Panic() { m.panics.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Manager) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
