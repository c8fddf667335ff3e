// Package alias holds the learned phrase → item bindings of each tenant.
package alias

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"label-resolver/internal/common"
	"label-resolver/internal/resolve/model"
	"label-resolver/internal/resolve/service"
)

// Repository persists aliases. UpsertIfAbsent must treat an existing
// (tenant, phrase) pair as success, leave its item untouched and report
// inserted=false.
type Repository interface {
	Find(ctx context.Context, tenantID, phrase string) (itemID string, found bool, err error)
	UpsertIfAbsent(ctx context.Context, tenantID, phrase, itemID string) (inserted bool, err error)
}

// Items is the catalog view an alias is resolved against.
type Items interface {
	GetItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error)
}

type Store struct {
	repo  Repository
	items Items
	log   zerolog.Logger
}

func NewStore(repo Repository, items Items, logger zerolog.Logger) *Store {
	return &Store{
		repo:  repo,
		items: items,
		log:   logger.With().Str("component", "alias").Logger(),
	}
}

// Lookup returns the active catalog item bound to phrase, or nil.
// An alias pointing at an item that left the catalog is a miss.
func (s *Store) Lookup(ctx context.Context, tenantID, phrase string) (*model.CatalogItem, error) {
	phrase = service.Normalize(phrase)
	if phrase == "" {
		return nil, nil
	}
	itemID, found, err := s.repo.Find(ctx, tenantID, phrase)
	if err != nil {
		return nil, common.WrapError(err, "alias find")
	}
	if !found {
		return nil, nil
	}
	items, err := s.items.GetItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == itemID {
			it := items[i]
			return &it, nil
		}
	}
	s.log.Debug().Str("tenant", tenantID).Str("phrase", phrase).Str("item", itemID).Msg("alias target not in catalog")
	return nil, nil
}

// Save binds the normalized form of raw to itemID and reports whether a new
// binding was written. Empty phrases are ignored and an existing binding for
// the phrase wins.
func (s *Store) Save(ctx context.Context, tenantID, raw, itemID string) (bool, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(itemID) == "" {
		return false, common.InvalidInput("tenant and item are required")
	}
	phrase := service.Normalize(raw)
	if phrase == "" {
		return false, nil
	}
	inserted, err := s.repo.UpsertIfAbsent(ctx, tenantID, phrase, itemID)
	if err != nil {
		return false, common.WrapError(err, "alias save")
	}
	if !inserted {
		s.log.Debug().Str("tenant", tenantID).Str("phrase", phrase).Msg("alias already bound")
		return false, nil
	}
	s.log.Info().Str("tenant", tenantID).Str("phrase", phrase).Str("item", itemID).Msg("alias learned")
	return true, nil
}
