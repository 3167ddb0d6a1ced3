package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/domain"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/pagination"
)

// ReleaseReader reads stored releases. *database.ReleaseRepository implements it.
type ReleaseReader interface {
	Count(ctx context.Context, publisher string) (int64, error)
	List(ctx context.Context, publisher string, offset, limit int) ([]domain.Release, error)
	Get(ctx context.Context, releaseID string) (*domain.Release, error)
	PackageData(ctx context.Context, ids []int64) ([]domain.PackageData, error)
}

// ReleaseService serves the relational release API.
type ReleaseService struct {
	repo     ReleaseReader
	settings Settings
}

// NewReleaseService creates a ReleaseService.
func NewReleaseService(repo ReleaseReader, settings Settings) *ReleaseService {
	return &ReleaseService{repo: repo, settings: settings}
}

// publisherName maps the publisher query value to the stored publisher name.
// Unknown values list every release.
func (s *ReleaseService) publisherName(publisher string) string {
	switch strings.ToLower(strings.TrimSpace(publisher)) {
	case "oncae":
		return s.settings.ONCAEPublisher
	case "sefin":
		return s.settings.SEFINPublisher
	default:
		return ""
	}
}

// Releases returns one page of releases. self is the absolute request URL and
// is used to build the next and previous links.
func (s *ReleaseService) Releases(ctx context.Context, publisher, rawPage string, self *url.URL) (*domain.ReleasePage, error) {
	name := s.publisherName(publisher)
	perPage := s.settings.PageSize

	total, err := s.repo.Count(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("count releases: %w", err)
	}
	meta := pagination.NewMeta(pagination.ParsePage(rawPage), perPage, total)

	out := &domain.ReleasePage{
		Releases:       total,
		Pages:          meta.NumPages,
		Page:           meta.Page,
		ReleasePackage: map[string]any{},
	}
	if meta.NextPageNumber != nil {
		out.Next = pageLink(self, *meta.NextPageNumber)
	}
	if meta.PreviousPageNumber != nil {
		out.Previous = pageLink(self, *meta.PreviousPageNumber)
	}
	if total == 0 {
		return out, nil
	}

	releases, err := s.repo.List(ctx, name, (meta.Page-1)*perPage, perPage)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	pkg, err := s.releasePackage(ctx, releases)
	if err != nil {
		return nil, err
	}
	out.ReleasePackage = pkg
	return out, nil
}

// Release returns the package of releaseID wrapping that single release.
func (s *ReleaseService) Release(ctx context.Context, releaseID string) (map[string]any, error) {
	rel, err := s.repo.Get(ctx, releaseID)
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	return s.releasePackage(ctx, []domain.Release{*rel})
}

// releasePackage builds the package metadata of the first package the releases
// belong to and attaches the release documents.
func (s *ReleaseService) releasePackage(ctx context.Context, releases []domain.Release) (map[string]any, error) {
	seen := make(map[int64]bool, len(releases))
	ids := make([]int64, 0, 1)
	docs := make([]json.RawMessage, 0, len(releases))
	for _, rel := range releases {
		docs = append(docs, rel.Data)
		if !seen[rel.PackageDataID] {
			seen[rel.PackageDataID] = true
			ids = append(ids, rel.PackageDataID)
		}
	}

	packages, err := s.repo.PackageData(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load package metadata: %w", err)
	}

	pkg := map[string]any{}
	if first := firstPackage(packages, ids); first != nil {
		if err = json.Unmarshal(first.Data, &pkg); err != nil {
			return nil, apperrors.Internal("decode package metadata", err)
		}
		if pkg == nil {
			pkg = map[string]any{}
		}
	}
	pkg["releases"] = docs
	return pkg, nil
}

// firstPackage returns the package of the first release, in release order.
func firstPackage(packages []domain.PackageData, ids []int64) *domain.PackageData {
	if len(ids) == 0 {
		return nil
	}
	for i := range packages {
		if packages[i].ID == ids[0] {
			return &packages[i]
		}
	}
	if len(packages) > 0 {
		return &packages[0]
	}
	return nil
}

func pageLink(self *url.URL, page int) *string {
	if self == nil {
		return nil
	}
	u := *self
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}
