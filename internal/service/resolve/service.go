package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/buildboard/buildboard/internal/domain"
	"github.com/buildboard/buildboard/internal/repository"
	"github.com/buildboard/buildboard/internal/service/jenkins"
	"github.com/buildboard/buildboard/internal/service/nas"
)

// Escalation reasons reported to the metrics sink.
const (
	ReasonMetadataFetch       = "metadata_fetch"
	ReasonCandidatesExhausted = "candidates_exhausted"
	ReasonShareListing        = "share_listing"
)

// Service resolves a Jenkins build to its artifact location on the release
// share. The pipeline is cache → metadata → candidate search → classify →
// persist; any unrecoverable failure diverts to the legacy fallback. Resolve
// never returns an error: every caller gets a usable ExtractionResult.
type Service struct {
	cache    repository.DeploymentPathRepository
	metadata MetadataFetcher
	share    ShareVerifier
	legacy   LegacyFallback
	metrics  MetricsSink
	events   EventPublisher
	logger   *slog.Logger
	nasRoot  string
}

// New returns a resolution service with all collaborators injected.
// events may be nil when no live delivery is wanted.
func New(cache repository.DeploymentPathRepository, metadata MetadataFetcher, share ShareVerifier, legacy LegacyFallback, metrics MetricsSink, events EventPublisher, logger *slog.Logger, nasRoot string) Service {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return Service{
		cache:    cache,
		metadata: metadata,
		share:    share,
		legacy:   legacy,
		metrics:  metrics,
		events:   events,
		logger:   logger,
		nasRoot:  nasRoot,
	}
}

// Resolve locates the release artifact directory for a build. A cache hit
// short-circuits the pipeline entirely; otherwise the result is computed
// fresh, persisted best-effort, and returned even when persistence fails.
func (s Service) Resolve(ctx context.Context, projectPath string, buildNumber int) domain.ExtractionResult {
	version := domain.VersionFromProjectPath(projectPath)

	cacheStart := time.Now()
	record, err := s.cache.FindDeploymentPath(ctx, projectPath, version, buildNumber)
	switch {
	case err == nil:
		s.metrics.RecordCacheHit(time.Since(cacheStart))
		result := resultFromRecord(record)
		s.publish(projectPath, buildNumber, result)
		return result
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.RecordCacheMiss(time.Since(cacheStart))
	default:
		// A broken cache must not break resolution; treat as a miss.
		s.logger.Warn("cache lookup failed, continuing without cache",
			"project_path", projectPath, "build_number", buildNumber, "error", err)
		s.metrics.RecordError("cache_read", time.Since(cacheStart))
		s.metrics.RecordCacheMiss(time.Since(cacheStart))
	}

	apiStart := time.Now()
	buildDate, err := s.metadata.GetBuildTimestamp(ctx, projectPath, buildNumber)
	s.metrics.RecordAPICall(time.Since(apiStart), err == nil)
	if err != nil {
		return s.escalate(ctx, projectPath, buildNumber, ReasonMetadataFetch, err)
	}

	genStart := time.Now()
	candidates := nas.CandidatePaths(s.nasRoot, version, buildDate, buildNumber)
	s.metrics.RecordPathGeneration(time.Since(genStart), len(candidates))

	verifyStart := time.Now()
	checked := 0
	var hit *domain.PathCandidate
	for i := range candidates {
		candidate := candidates[i]
		checked++
		exists, err := s.share.Exists(ctx, candidate.Path)
		if err != nil {
			// Retry budget for this candidate is already spent inside the
			// verifier; move on to the next date.
			s.logger.Warn("candidate check failed",
				"path", candidate.Path, "offset_days", candidate.DateOffsetDays, "error", err)
			continue
		}
		if exists {
			hit = &candidates[i]
			break
		}
	}
	successful := 0
	if hit != nil {
		successful = 1
	}
	s.metrics.RecordNASVerification(time.Since(verifyStart), checked, successful)
	if hit == nil {
		return s.escalate(ctx, projectPath, buildNumber, ReasonCandidatesExhausted, nil)
	}

	files, err := s.share.ListFiles(ctx, hit.Path)
	if err != nil {
		return s.escalate(ctx, projectPath, buildNumber, ReasonShareListing, err)
	}
	cls := nas.Classify(files)

	now := time.Now().UTC()
	saveStart := now
	saveErr := s.cache.UpsertDeploymentPath(ctx, &domain.DeploymentRecord{
		ID:           uuid.NewString(),
		ProjectPath:  projectPath,
		Version:      version,
		BuildNumber:  buildNumber,
		BuildDate:    buildDate,
		NASPath:      hit.Path,
		DownloadFile: cls.DownloadFile,
		AllFiles:     cls.AllFiles,
		CreatedAt:    now,
	})
	s.metrics.RecordDBSave(time.Since(saveStart), saveErr == nil)
	if saveErr != nil {
		// The caller still gets the freshly computed answer.
		s.logger.Warn("persisting resolution failed",
			"project_path", projectPath, "build_number", buildNumber, "error", saveErr)
		s.metrics.RecordError("cache_write", time.Since(saveStart))
	}

	result := domain.ExtractionResult{
		NASPath:        hit.Path,
		DeploymentPath: hit.Path,
		DownloadFile:   cls.DownloadFile,
		AllFiles:       cls.AllFiles,
		Categorized:    cls.Categorized,
		Source:         domain.SourceShare,
	}
	s.logger.Info("resolved deployment artifact",
		"project_path", projectPath, "build_number", buildNumber,
		"nas_path", hit.Path, "offset_days", hit.DateOffsetDays, "files", len(cls.AllFiles))
	s.publish(projectPath, buildNumber, result)
	return result
}

// escalate hands the request to the legacy extractor and returns its result
// verbatim.
func (s Service) escalate(ctx context.Context, projectPath string, buildNumber int, reason string, cause error) domain.ExtractionResult {
	if cause != nil {
		s.metrics.RecordError(errorKind(cause), 0)
	}
	s.logger.Warn("escalating to legacy extraction",
		"project_path", projectPath, "build_number", buildNumber, "reason", reason, "error", cause)

	start := time.Now()
	result := s.legacy.Extract(ctx, projectPath, buildNumber)
	s.metrics.RecordLegacyFallback(time.Since(start), reason)
	s.publish(projectPath, buildNumber, result)
	return result
}

func (s Service) publish(projectPath string, buildNumber int, result domain.ExtractionResult) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"projectPath": projectPath,
		"buildNumber": buildNumber,
		"result":      result,
	})
	if err != nil {
		return
	}
	s.events.Broadcast(projectPath, payload)
}

// resultFromRecord rebuilds the caller-facing result from a cached record.
// Classification is pure string work, so a hit still performs zero I/O.
func resultFromRecord(record *domain.DeploymentRecord) domain.ExtractionResult {
	cls := nas.Classify(record.AllFiles)
	return domain.ExtractionResult{
		NASPath:        record.NASPath,
		DeploymentPath: record.NASPath,
		DownloadFile:   record.DownloadFile,
		AllFiles:       cls.AllFiles,
		Categorized:    cls.Categorized,
		Source:         domain.SourceCache,
	}
}

func errorKind(err error) string {
	var apiErr *jenkins.APIError
	if errors.As(err, &apiErr) {
		return "api"
	}
	var shareErr *nas.ShareError
	if errors.As(err, &shareErr) {
		if shareErr.Transient {
			return "share_transient"
		}
		return "share"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unknown"
}
