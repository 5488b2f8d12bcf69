// Package metrics exposes prometheus collectors for interview turns,
// resolution outcomes and backend latencies.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const DefaultNamespace = "skill_mapper"

// Resolution outcomes.
const (
	OutcomeMapped   = "mapped"
	OutcomeUnmapped = "unmapped"
	OutcomeFailed   = "failed"
)

type Collector struct {
	turnsTotal         *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	claimsTotal        prometheus.Counter
	resolutionsTotal   *prometheus.CounterVec
	modelDuration      *prometheus.HistogramVec
	modelErrors        *prometheus.CounterVec
	taxonomyDuration   *prometheus.HistogramVec
	cacheLookupsTotal  *prometheus.CounterVec
	extractionFailures prometheus.Counter

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewCollector registers all collectors with reg. A nil reg uses a fresh
// registry.
func NewCollector(namespace string, reg *prometheus.Registry, log *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of handled user turns",
		}, []string{"state"}),
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of conversation state transitions",
		}, []string{"from", "to"}),
		claimsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_extracted_total",
			Help:      "Total number of extracted skill claims",
		}),
		extractionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Total number of failed skill extractions",
		}),
		resolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of claim resolutions by outcome",
		}, []string{"outcome"}),
		modelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model", "schema"}),
		modelErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_errors_total",
			Help:      "Total number of failed language model requests",
		}, []string{"model"}),
		taxonomyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "taxonomy_search_duration_seconds",
			Help:      "Taxonomy search duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "status"}),
		cacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taxonomy_cache_lookups_total",
			Help:      "Taxonomy cache lookups by result",
		}, []string{"source", "result"}),
		gatherer: reg,
		logger:   log.With(zap.String("component", "metrics")),
	}
}

func (c *Collector) RecordTurn(state string) {
	c.turnsTotal.WithLabelValues(state).Inc()
}

// RecordTransition has the signature of conversation.TransitionObserver
// once states are converted to strings.
func (c *Collector) RecordTransition(from, to string) {
	c.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (c *Collector) RecordClaims(n int) {
	c.claimsTotal.Add(float64(n))
}

func (c *Collector) RecordExtractionFailure() {
	c.extractionFailures.Inc()
}

func (c *Collector) RecordResolution(outcome string) {
	c.resolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveModel matches ai.ObserveFunc.
func (c *Collector) ObserveModel(model, schema string, elapsed time.Duration, err error) {
	if schema == "" {
		schema = "text"
	}
	c.modelDuration.WithLabelValues(model, schema).Observe(elapsed.Seconds())
	if err != nil {
		c.modelErrors.WithLabelValues(model).Inc()
	}
}

func (c *Collector) ObserveTaxonomy(source string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.taxonomyDuration.WithLabelValues(source, status).Observe(elapsed.Seconds())
}

// CacheObserver matches cache.Observer.
func (c *Collector) CacheObserver(source string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookupsTotal.WithLabelValues(source, result).Inc()
}

// Handler serves the registered collectors in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
