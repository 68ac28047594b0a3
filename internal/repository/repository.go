package repository

import (
	"context"

	"github.com/buildboard/buildboard/internal/domain"
)

// DeploymentPathRepository persists resolved artifact locations. Find returns
// ErrNotFound when no record exists for the key; Upsert overwrites any prior
// record for the same (projectPath, version, buildNumber) triple.
type DeploymentPathRepository interface {
	FindDeploymentPath(ctx context.Context, projectPath, version string, buildNumber int) (*domain.DeploymentRecord, error)
	UpsertDeploymentPath(ctx context.Context, record *domain.DeploymentRecord) error
	ListRecentDeploymentPaths(ctx context.Context, limit int) ([]domain.DeploymentRecord, error)
}
