package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
)

const latestManifestQuery = `SELECT file FROM descargas ORDER BY createddate DESC LIMIT 1`

// DownloadRepository reads the bulk download manifests written by the export job.
type DownloadRepository struct {
	db *sqlx.DB
}

// NewDownloadRepository creates a DownloadRepository.
func NewDownloadRepository(db *sqlx.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Latest returns the file column of the newest manifest. found is false when there is none.
func (r *DownloadRepository) Latest(ctx context.Context) (manifest json.RawMessage, found bool, err error) {
	if err = r.db.GetContext(ctx, &manifest, latestManifestQuery); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classify("latest download manifest", err)
	}
	return manifest, true, nil
}

// Ping checks the connection, for health reporting.
func (r *DownloadRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify("database ping", err)
	}
	return nil
}
