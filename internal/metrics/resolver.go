package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/buildboard/buildboard/internal/service/resolve"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Recorder implements resolve.MetricsSink on Prometheus collectors.
type Recorder struct {
	cacheLookups    *prometheus.CounterVec
	cacheDuration   *prometheus.HistogramVec
	apiCalls        *prometheus.CounterVec
	apiDuration     prometheus.Histogram
	pathGenDuration prometheus.Histogram
	pathCandidates  prometheus.Histogram
	nasDuration     prometheus.Histogram
	nasChecked      prometheus.Counter
	nasFound        prometheus.Counter
	dbSaves         *prometheus.CounterVec
	dbDuration      prometheus.Histogram
	fallbacks       *prometheus.CounterVec
	fallbackLatency prometheus.Histogram
	errorsTotal     *prometheus.CounterVec
}

var _ resolve.MetricsSink = (*Recorder)(nil)

// NewRecorder builds and registers the resolver collectors. Registration
// collisions (tests constructing multiple recorders) reuse the existing
// collector.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "cache_lookups_total", Help: "Cache lookups by result",
		}, []string{"result"}),
		cacheDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "cache_lookup_duration_seconds", Help: "Cache lookup latency by result",
			Buckets: durationBuckets,
		}, []string{"result"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "jenkins_calls_total", Help: "Jenkins metadata calls by success",
		}, []string{"success"}),
		apiDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "jenkins_call_duration_seconds", Help: "Jenkins metadata call latency",
			Buckets: durationBuckets,
		}),
		pathGenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "path_generation_duration_seconds", Help: "Candidate path generation latency",
			Buckets: durationBuckets,
		}),
		pathCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "path_candidates", Help: "Candidates generated per resolution",
			Buckets: []float64{1, 2, 3, 5, 10},
		}),
		nasDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "nas_verification_duration_seconds", Help: "Share verification latency per resolution",
			Buckets: durationBuckets,
		}),
		nasChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "nas_paths_checked_total", Help: "Candidate paths checked against the share",
		}),
		nasFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "nas_paths_found_total", Help: "Candidate paths confirmed on the share",
		}),
		dbSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "db_saves_total", Help: "Resolution persistence attempts by success",
		}, []string{"success"}),
		dbDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "db_save_duration_seconds", Help: "Resolution persistence latency",
			Buckets: durationBuckets,
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "legacy_fallbacks_total", Help: "Escalations to legacy extraction by reason",
		}, []string{"reason"}),
		fallbackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "legacy_fallback_duration_seconds", Help: "Legacy extraction latency",
			Buckets: durationBuckets,
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildboard", Subsystem: "resolver",
			Name: "errors_total", Help: "Internal errors by kind",
		}, []string{"kind"}),
	}

	r.cacheLookups = registerCounterVec(reg, r.cacheLookups)
	r.cacheDuration = registerHistogramVec(reg, r.cacheDuration)
	r.apiCalls = registerCounterVec(reg, r.apiCalls)
	r.apiDuration = registerHistogram(reg, r.apiDuration)
	r.pathGenDuration = registerHistogram(reg, r.pathGenDuration)
	r.pathCandidates = registerHistogram(reg, r.pathCandidates)
	r.nasDuration = registerHistogram(reg, r.nasDuration)
	r.nasChecked = registerCounter(reg, r.nasChecked)
	r.nasFound = registerCounter(reg, r.nasFound)
	r.dbSaves = registerCounterVec(reg, r.dbSaves)
	r.dbDuration = registerHistogram(reg, r.dbDuration)
	r.fallbacks = registerCounterVec(reg, r.fallbacks)
	r.fallbackLatency = registerHistogram(reg, r.fallbackLatency)
	r.errorsTotal = registerCounterVec(reg, r.errorsTotal)
	return r
}

func (r *Recorder) RecordCacheHit(d time.Duration) {
	r.cacheLookups.WithLabelValues("hit").Inc()
	r.cacheDuration.WithLabelValues("hit").Observe(d.Seconds())
}

func (r *Recorder) RecordCacheMiss(d time.Duration) {
	r.cacheLookups.WithLabelValues("miss").Inc()
	r.cacheDuration.WithLabelValues("miss").Observe(d.Seconds())
}

func (r *Recorder) RecordAPICall(d time.Duration, success bool) {
	r.apiCalls.WithLabelValues(strconv.FormatBool(success)).Inc()
	r.apiDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordPathGeneration(d time.Duration, candidateCount int) {
	r.pathGenDuration.Observe(d.Seconds())
	r.pathCandidates.Observe(float64(candidateCount))
}

func (r *Recorder) RecordNASVerification(d time.Duration, pathsChecked, successfulPaths int) {
	r.nasDuration.Observe(d.Seconds())
	r.nasChecked.Add(float64(pathsChecked))
	r.nasFound.Add(float64(successfulPaths))
}

func (r *Recorder) RecordDBSave(d time.Duration, success bool) {
	r.dbSaves.WithLabelValues(strconv.FormatBool(success)).Inc()
	r.dbDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordLegacyFallback(d time.Duration, reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
	r.fallbackLatency.Observe(d.Seconds())
}

func (r *Recorder) RecordError(kind string, _ time.Duration) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return h
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
	}
	return h
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}
