package resolve

import (
	"context"
	"time"

	"github.com/buildboard/buildboard/internal/domain"
)

// MetadataFetcher retrieves build metadata from Jenkins.
type MetadataFetcher interface {
	GetBuildTimestamp(ctx context.Context, projectPath string, buildNumber int) (time.Time, error)
}

// ShareVerifier answers existence and listing questions against the release
// share. Exists carries its own bounded retry; ListFiles is called at most
// once per resolution.
type ShareVerifier interface {
	Exists(ctx context.Context, path string) (bool, error)
	ListFiles(ctx context.Context, path string) ([]string, error)
}

// LegacyFallback is the pre-existing best-effort extractor consulted when the
// verified pipeline cannot produce an answer. It always returns a result.
type LegacyFallback interface {
	Extract(ctx context.Context, projectPath string, buildNumber int) domain.ExtractionResult
}

// EventPublisher receives resolution events for live dashboard delivery.
// The websocket hub satisfies it.
type EventPublisher interface {
	Broadcast(topic string, payload []byte)
}

// MetricsSink receives fire-and-forget observability signals from the
// resolution pipeline.
type MetricsSink interface {
	RecordCacheHit(duration time.Duration)
	RecordCacheMiss(duration time.Duration)
	RecordAPICall(duration time.Duration, success bool)
	RecordPathGeneration(duration time.Duration, candidateCount int)
	RecordNASVerification(duration time.Duration, pathsChecked, successfulPaths int)
	RecordDBSave(duration time.Duration, success bool)
	RecordLegacyFallback(duration time.Duration, reason string)
	RecordError(kind string, duration time.Duration)
}

// NopMetrics discards every signal.
type NopMetrics struct{}

func (NopMetrics) RecordCacheHit(time.Duration)                       {}
func (NopMetrics) RecordCacheMiss(time.Duration)                      {}
func (NopMetrics) RecordAPICall(time.Duration, bool)                  {}
func (NopMetrics) RecordPathGeneration(time.Duration, int)            {}
func (NopMetrics) RecordNASVerification(time.Duration, int, int)      {}
func (NopMetrics) RecordDBSave(time.Duration, bool)                   {}
func (NopMetrics) RecordLegacyFallback(time.Duration, string)         {}
func (NopMetrics) RecordError(string, time.Duration)                  {}
