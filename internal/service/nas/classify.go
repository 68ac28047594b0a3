package nas

import (
	"strings"

	"github.com/buildboard/buildboard/internal/domain"
)

// FileCategory is the closed set of artifact kinds found in a release
// directory.
type FileCategory int

const (
	CategoryVersion FileCategory = iota
	CategoryAggregateRelease
	CategoryBackend
	CategoryFrontend
	CategoryOther
)

func (c FileCategory) String() string {
	switch c {
	case CategoryVersion:
		return "version"
	case CategoryAggregateRelease:
		return "aggregate_release"
	case CategoryBackend:
		return "backend"
	case CategoryFrontend:
		return "frontend"
	default:
		return "other"
	}
}

// Categorize maps a filename to its category by naming convention.
func Categorize(name string) FileCategory {
	switch {
	case strings.HasPrefix(name, "V"):
		return CategoryVersion
	case strings.HasPrefix(name, "mr"):
		return CategoryAggregateRelease
	case strings.HasPrefix(name, "be"):
		return CategoryBackend
	case strings.HasPrefix(name, "fe"):
		return CategoryFrontend
	default:
		return CategoryOther
	}
}

// Classification is the outcome of bucketing one directory listing.
type Classification struct {
	Categorized  domain.CategorizedFiles
	DownloadFile string
	AllFiles     []string
}

// Classify buckets a directory listing and selects the primary download file:
// the first version-prefixed file, or empty when none exists (there is no
// agreed priority among the remaining buckets). Input order is preserved in
// every bucket and in AllFiles.
func Classify(files []string) Classification {
	cls := Classification{
		Categorized: domain.CategorizedFiles{
			VersionFiles:  []string{},
			MRFiles:       []string{},
			BackendFiles:  []string{},
			FrontendFiles: []string{},
			OtherFiles:    []string{},
		},
		AllFiles: append([]string{}, files...),
	}
	for _, name := range files {
		switch Categorize(name) {
		case CategoryVersion:
			cls.Categorized.VersionFiles = append(cls.Categorized.VersionFiles, name)
		case CategoryAggregateRelease:
			cls.Categorized.MRFiles = append(cls.Categorized.MRFiles, name)
		case CategoryBackend:
			cls.Categorized.BackendFiles = append(cls.Categorized.BackendFiles, name)
		case CategoryFrontend:
			cls.Categorized.FrontendFiles = append(cls.Categorized.FrontendFiles, name)
		case CategoryOther:
			cls.Categorized.OtherFiles = append(cls.Categorized.OtherFiles, name)
		}
	}
	if len(cls.Categorized.VersionFiles) > 0 {
		cls.DownloadFile = cls.Categorized.VersionFiles[0]
	}
	return cls
}
