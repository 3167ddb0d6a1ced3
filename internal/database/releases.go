package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
)

const (
	releaseColumns = `r.id, r.release_id, r.ocid, r.package_data_id, r.data`

	countReleasesQuery = `SELECT COUNT(*) FROM release r`

	countReleasesByPublisherQuery = `SELECT COUNT(*) FROM release r
		JOIN package_data p ON p.id = r.package_data_id
		WHERE p.data->'publisher'->>'name' = $1`

	listReleasesQuery = `SELECT ` + releaseColumns + ` FROM release r
		ORDER BY r.id LIMIT $1 OFFSET $2`

	listReleasesByPublisherQuery = `SELECT ` + releaseColumns + ` FROM release r
		JOIN package_data p ON p.id = r.package_data_id
		WHERE p.data->'publisher'->>'name' = $1
		ORDER BY r.id LIMIT $2 OFFSET $3`

	getReleaseQuery = `SELECT ` + releaseColumns + ` FROM release r
		WHERE r.release_id = $1 ORDER BY r.id LIMIT 1`

	packageDataQuery = `SELECT id, data FROM package_data WHERE id IN (?) ORDER BY id`
)

// ReleaseRepository reads stored OCDS releases and their package metadata.
type ReleaseRepository struct {
	db *sqlx.DB
}

// NewReleaseRepository creates a ReleaseRepository.
func NewReleaseRepository(db *sqlx.DB) *ReleaseRepository {
	return &ReleaseRepository{db: db}
}

// Count returns the number of releases, restricted to publisher when it is not empty.
func (r *ReleaseRepository) Count(ctx context.Context, publisher string) (int64, error) {
	var n int64
	var err error
	if publisher == "" {
		err = r.db.GetContext(ctx, &n, countReleasesQuery)
	} else {
		err = r.db.GetContext(ctx, &n, countReleasesByPublisherQuery, publisher)
	}
	if err != nil {
		return 0, classify("count releases", err)
	}
	return n, nil
}

// List returns one page of releases in insertion order.
func (r *ReleaseRepository) List(ctx context.Context, publisher string, offset, limit int) ([]domain.Release, error) {
	releases := []domain.Release{}
	var err error
	if publisher == "" {
		err = r.db.SelectContext(ctx, &releases, listReleasesQuery, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &releases, listReleasesByPublisherQuery, publisher, limit, offset)
	}
	if err != nil {
		return nil, classify("list releases", err)
	}
	return releases, nil
}

// Get returns the release with releaseID.
func (r *ReleaseRepository) Get(ctx context.Context, releaseID string) (*domain.Release, error) {
	var rel domain.Release
	if err := r.db.GetContext(ctx, &rel, getReleaseQuery, releaseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("release %q not found", releaseID)
		}
		return nil, classify("get release", err)
	}
	return &rel, nil
}

// PackageData returns the package metadata rows with the given ids.
func (r *ReleaseRepository) PackageData(ctx context.Context, ids []int64) ([]domain.PackageData, error) {
	if len(ids) == 0 {
		return []domain.PackageData{}, nil
	}
	q, args, err := sqlx.In(packageDataQuery, ids)
	if err != nil {
		return nil, apperrors.Internal("package data", fmt.Errorf("expand ids: %w", err))
	}

	packages := []domain.PackageData{}
	if err = r.db.SelectContext(ctx, &packages, r.db.Rebind(q), args...); err != nil {
		return nil, classify("package data", err)
	}
	return packages, nil
}
