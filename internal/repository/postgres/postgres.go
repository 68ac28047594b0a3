package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildboard/buildboard/internal/domain"
	"github.com/buildboard/buildboard/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.DeploymentPathRepository = (*Repository)(nil)

// FindDeploymentPath fetches the cached resolution for a build, if any.
func (r *Repository) FindDeploymentPath(ctx context.Context, projectPath, version string, buildNumber int) (*domain.DeploymentRecord, error) {
	const query = `SELECT id, project_path, version, build_number, build_date, nas_path, download_file, all_files, created_at
		FROM deployment_paths
		WHERE project_path = $1 AND version = $2 AND build_number = $3`
	row := r.pool.QueryRow(ctx, query, projectPath, version, buildNumber)
	var rec domain.DeploymentRecord
	if err := row.Scan(&rec.ID, &rec.ProjectPath, &rec.Version, &rec.BuildNumber, &rec.BuildDate, &rec.NASPath, &rec.DownloadFile, &rec.AllFiles, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// UpsertDeploymentPath stores a resolution, replacing any earlier one for the
// same build key. Last write wins.
func (r *Repository) UpsertDeploymentPath(ctx context.Context, record *domain.DeploymentRecord) error {
	const query = `INSERT INTO deployment_paths (id, project_path, version, build_number, build_date, nas_path, download_file, all_files, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_path, version, build_number) DO UPDATE SET
			build_date = EXCLUDED.build_date,
			nas_path = EXCLUDED.nas_path,
			download_file = EXCLUDED.download_file,
			all_files = EXCLUDED.all_files,
			created_at = EXCLUDED.created_at`
	_, err := r.pool.Exec(ctx, query,
		record.ID, record.ProjectPath, record.Version, record.BuildNumber,
		record.BuildDate, record.NASPath, record.DownloadFile, record.AllFiles, record.CreatedAt)
	return err
}

// ListRecentDeploymentPaths returns the most recently resolved deployments.
func (r *Repository) ListRecentDeploymentPaths(ctx context.Context, limit int) ([]domain.DeploymentRecord, error) {
	const query = `SELECT id, project_path, version, build_number, build_date, nas_path, download_file, all_files, created_at
		FROM deployment_paths
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.DeploymentRecord, 0)
	for rows.Next() {
		var rec domain.DeploymentRecord
		if err := rows.Scan(&rec.ID, &rec.ProjectPath, &rec.Version, &rec.BuildNumber, &rec.BuildDate, &rec.NASPath, &rec.DownloadFile, &rec.AllFiles, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
