// Package service implements the portal operations on top of the search cluster
// and the relational store.
package service

import (
	"context"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
)

// Searcher runs search and count requests. *elasticsearch.Client implements it.
type Searcher interface {
	Search(ctx context.Context, index string, body map[string]any) (*elasticsearch.SearchResponse, error)
	Count(ctx context.Context, index string, body map[string]any) (int64, error)
}

// Scroller streams large result sets. *elasticsearch.Client implements it.
type Scroller interface {
	OpenScroll(ctx context.Context, index string, body map[string]any, keepAlive time.Duration) (*elasticsearch.SearchResponse, error)
	NextScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*elasticsearch.SearchResponse, error)
	ClearScroll(ctx context.Context, scrollID string) error
}

// Settings are the index names and domain constants the services share.
type Settings struct {
	ProcessIndex    string
	ContractIndex   string
	PageSize        int
	MaxPageSize     int
	Precision       int
	SEFINSourceID   string
	DNCPSourceID    string
	MaxBuyerBuckets int
	MaxTopN         int
	ONCAEPublisher  string
	SEFINPublisher  string
}

// SettingsFromConfig extracts Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ProcessIndex:    cfg.Elasticsearch.ProcessIndex,
		ContractIndex:   cfg.Elasticsearch.ContractIndex,
		PageSize:        cfg.Service.PageSize,
		MaxPageSize:     cfg.Service.MaxPageSize,
		Precision:       cfg.Portal.PrecisionThreshold,
		SEFINSourceID:   cfg.Portal.SEFINSourceID,
		DNCPSourceID:    cfg.Portal.DNCPSourceID,
		MaxBuyerBuckets: cfg.Portal.MaxBuyerBuckets,
		MaxTopN:         cfg.Portal.MaxTopN,
		ONCAEPublisher:  cfg.Portal.ONCAEPublisher,
		SEFINPublisher:  cfg.Portal.SEFINPublisher,
	}
}

// DefaultSettings mirrors config.Default.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default())
}

// logIgnored records parameters that compiled to no filter.
func logIgnored(ctx context.Context, ignored []query.Ignored) {
	if len(ignored) == 0 {
		return
	}
	log := logger.FromContext(ctx)
	for _, ig := range ignored {
		log.Debug("Ignoring filter parameter",
			logger.String("param", ig.Param),
			logger.String("value", ig.Value),
			logger.String("reason", ig.Reason),
		)
	}
}
