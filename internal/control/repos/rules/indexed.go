package rules

import (
	"context"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/log"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
)

// Invalidator is the index surface the store decorator drives. Rebuild swaps
// in a fresh snapshot; Purge drops everything and disables the prefilter
// until the next successful rebuild.
type Invalidator interface {
	Rebuild(rulesSnapshot []domain.WebsiteRule)
	Purge()
}

// indexedStore wraps a Store and keeps a match index coherent with it: every
// rule mutation re-lists the rules and rebuilds the index atomically. When
// the re-list fails the index is purged instead, which degrades to full
// scans rather than serving stale answers.
type indexedStore struct {
	Store
	idx    Invalidator
	logger log.Logger
}

// WithIndex decorates a Store so rule mutations keep idx coherent.
func WithIndex(s Store, idx Invalidator, logger log.Logger) Store {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &indexedStore{Store: s, idx: idx, logger: logger}
}

func (s *indexedStore) CreateWebsiteRule(ctx context.Context, in NewWebsiteRule) (domain.WebsiteRule, error) {
	r, err := s.Store.CreateWebsiteRule(ctx, in)
	if err == nil {
		s.refresh(ctx)
	}
	return r, err
}

func (s *indexedStore) UpdateWebsiteRule(ctx context.Context, id int64, patch WebsiteRulePatch) (domain.WebsiteRule, error) {
	r, err := s.Store.UpdateWebsiteRule(ctx, id, patch)
	if err == nil {
		s.refresh(ctx)
	}
	return r, err
}

func (s *indexedStore) DeleteWebsiteRule(ctx context.Context, id int64) error {
	err := s.Store.DeleteWebsiteRule(ctx, id)
	if err == nil {
		s.refresh(ctx)
	}
	return err
}

func (s *indexedStore) refresh(ctx context.Context) {
	snapshot, err := s.Store.ListWebsiteRules(ctx)
	if err != nil {
		s.idx.Purge()
		s.logger.Error(map[string]any{"error": err}, "rule re-list failed, match index purged")
		return
	}
	s.idx.Rebuild(snapshot)
}
