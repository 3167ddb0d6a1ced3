package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
)

// ManifestReader returns the newest bulk download manifest. *database.DownloadRepository implements it.
type ManifestReader interface {
	Latest(ctx context.Context) (json.RawMessage, bool, error)
}

// manifestInternalKeys are bookkeeping fields of the export job that are not published.
var manifestInternalKeys = []string{"finalizo", "md5_hash", "md5_json"}

// DownloadTarget is what the reverse proxy needs to serve one bulk file.
type DownloadTarget struct {
	FileName     string
	RedirectPath string
}

// DownloadService lists and serves the bulk download files.
type DownloadService struct {
	repo            ManifestReader
	urlPrefix       string
	protectedPrefix string
}

// NewDownloadService creates a DownloadService.
func NewDownloadService(repo ManifestReader, cfg config.DownloadsConfig) *DownloadService {
	return &DownloadService{
		repo:            repo,
		urlPrefix:       cfg.URLPrefix,
		protectedPrefix: cfg.ProtectedPrefix,
	}
}

// List returns the entries of the latest manifest with absolute file URLs rooted at baseURL
// (scheme and host, no trailing slash). Entries are ordered by manifest key.
func (s *DownloadService) List(ctx context.Context, baseURL string) ([]domain.DownloadFile, error) {
	raw, found, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load download manifest: %w", err)
	}
	if !found {
		return []domain.DownloadFile{}, nil
	}

	var manifest map[string]domain.DownloadFile
	if err = json.Unmarshal(raw, &manifest); err != nil {
		return nil, apperrors.Internal("decode download manifest", err)
	}

	keys := make([]string, 0, len(manifest))
	for k := range manifest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	files := make([]domain.DownloadFile, 0, len(keys))
	for _, k := range keys {
		entry := manifest[k]
		if entry == nil {
			continue
		}
		if urls, ok := entry["urls"].(map[string]any); ok {
			for ext, name := range urls {
				if str, isStr := name.(string); isStr {
					urls[ext] = baseURL + s.urlPrefix + str
				}
			}
		}
		for _, key := range manifestInternalKeys {
			delete(entry, key)
		}
		files = append(files, entry)
	}
	return files, nil
}

// Target validates a requested file name and returns its protected location.
func (s *DownloadService) Target(file string) (DownloadTarget, error) {
	if file == "" || strings.ContainsAny(file, `/\`) || strings.Contains(file, "..") {
		return DownloadTarget{}, apperrors.Invalid("invalid file name %q", file)
	}
	return DownloadTarget{
		FileName:     file,
		RedirectPath: s.protectedPrefix + file,
	}, nil
}
