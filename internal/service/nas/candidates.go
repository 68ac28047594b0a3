package nas

import (
	"path"
	"strconv"
	"time"

	"github.com/buildboard/buildboard/internal/domain"
)

// candidateOffsets is the fixed search order for a build's artifact
// directory: the build's own date first, then the day after, then the day
// before. The adjacent days absorb clock skew between the instant Jenkins
// recorded the build and the instant the artifact landed on the share.
var candidateOffsets = []int{0, 1, -1}

// CandidatePaths generates the ordered directory candidates for a build:
// root/version/YYMMDD/buildNumber for each date offset. Pure; evaluating the
// candidates against the share is the verifier's job.
func CandidatePaths(root, version string, buildDate time.Time, buildNumber int) []domain.PathCandidate {
	candidates := make([]domain.PathCandidate, 0, len(candidateOffsets))
	for rank, offset := range candidateOffsets {
		day := buildDate.AddDate(0, 0, offset)
		candidates = append(candidates, domain.PathCandidate{
			Path:           path.Join(root, version, day.Format("060102"), strconv.Itoa(buildNumber)),
			DateOffsetDays: offset,
			Rank:           rank,
		})
	}
	return candidates
}
