package legacy

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/buildboard/buildboard/internal/domain"
	"github.com/buildboard/buildboard/internal/service/nas"
)

// ConsoleFetcher fetches a build's raw console log. The Jenkins client
// satisfies it.
type ConsoleFetcher interface {
	ConsoleText(ctx context.Context, projectPath string, buildNumber int) (string, error)
}

var (
	// sharePathPattern matches UNC-style or mounted share paths printed by
	// the release steps in the build log.
	sharePathPattern = regexp.MustCompile(`(?:\\\\[\w.$-]+(?:\\[\w.$-]+)+|/(?:mnt|nas|share)/[\w./-]+)`)
	// artifactPattern matches release archive filenames.
	artifactPattern = regexp.MustCompile(`[\w.-]+\.(?:enc\.tar\.gz|tar\.gz|tgz|zip)`)
)

// Extractor is the pre-existing best-effort resolution method: scan the build
// console log for share paths and artifact names. It never fails; when the
// log yields nothing the result simply has empty fields.
type Extractor struct {
	console ConsoleFetcher
	logger  *slog.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(console ConsoleFetcher, logger *slog.Logger) *Extractor {
	return &Extractor{console: console, logger: logger}
}

// Extract parses the build's console log into a best-effort ExtractionResult.
func (e *Extractor) Extract(ctx context.Context, projectPath string, buildNumber int) domain.ExtractionResult {
	result := domain.ExtractionResult{
		AllFiles: []string{},
		Source:   domain.SourceLegacy,
	}
	result.Categorized = nas.Classify(nil).Categorized

	text, err := e.console.ConsoleText(ctx, projectPath, buildNumber)
	if err != nil {
		e.logger.Warn("legacy extraction could not read console log",
			"project_path", projectPath, "build_number", buildNumber, "error", err)
		return result
	}

	if paths := sharePathPattern.FindAllString(text, -1); len(paths) > 0 {
		// The release step logs the final destination last.
		result.NASPath = strings.TrimRight(paths[len(paths)-1], `\/.`)
		result.DeploymentPath = result.NASPath
	}

	files := dedupe(artifactPattern.FindAllString(text, -1))
	cls := nas.Classify(files)
	result.AllFiles = cls.AllFiles
	result.Categorized = cls.Categorized
	result.DownloadFile = cls.DownloadFile

	e.logger.Info("legacy extraction finished",
		"project_path", projectPath, "build_number", buildNumber,
		"nas_path", result.NASPath, "files", len(result.AllFiles))
	return result
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
