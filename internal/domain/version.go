package domain

import (
	"regexp"
	"strings"
)

var versionKeyPattern = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)*`)

// VersionFromProjectPath derives the cache partition key from a Jenkins job
// path: the leading dotted numeric segment, e.g. "3.0.0/mr3.0.0_release"
// yields "3.0.0". When the path carries no numeric prefix the first path
// segment is used as-is.
func VersionFromProjectPath(projectPath string) string {
	trimmed := strings.Trim(projectPath, "/")
	if key := versionKeyPattern.FindString(trimmed); key != "" {
		return key
	}
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}
