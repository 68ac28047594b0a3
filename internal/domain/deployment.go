package domain

import "time"

// DeploymentRecord is the persisted resolution of one Jenkins build to its
// artifact directory on the release share. At most one record exists per
// (ProjectPath, Version, BuildNumber); a later successful resolution for the
// same key overwrites it.
type DeploymentRecord struct {
	ID           string
	ProjectPath  string
	Version      string
	BuildNumber  int
	BuildDate    time.Time
	NASPath      string
	DownloadFile string
	AllFiles     []string
	CreatedAt    time.Time
}

// BuildMetadata captures what the engine needs from a Jenkins build record.
type BuildMetadata struct {
	Timestamp time.Time
}

// PathCandidate is a directory hypothesized to hold a build's artifacts.
// Candidates are ordered by Rank and never persisted.
type PathCandidate struct {
	Path           string
	DateOffsetDays int
	Rank           int
}

// CategorizedFiles buckets a share listing by artifact kind.
type CategorizedFiles struct {
	VersionFiles  []string `json:"versionFiles"`
	MRFiles       []string `json:"mrFiles"`
	BackendFiles  []string `json:"backendFiles"`
	FrontendFiles []string `json:"frontendFiles"`
	OtherFiles    []string `json:"otherFiles"`
}

// ExtractionResult is the answer returned to callers for every resolution,
// whether it came from the cache, a verified share directory, or the legacy
// console-log heuristic.
type ExtractionResult struct {
	NASPath        string           `json:"nasPath"`
	DeploymentPath string           `json:"deploymentPath"`
	DownloadFile   string           `json:"downloadFile"`
	AllFiles       []string         `json:"allFiles"`
	Categorized    CategorizedFiles `json:"categorized"`
	Source         string           `json:"source"`
}

// Result sources.
const (
	SourceCache  = "cache"
	SourceShare  = "share"
	SourceLegacy = "legacy"
)
