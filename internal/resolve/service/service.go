package service

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"label-resolver/internal/resolve/model"
)

const (
	// aliasWeight is the selection score of an alias hit.
	aliasWeight   = 0.95
	maxCandidates = 5
)

// Catalog yields the tenant's items ordered by name.
type Catalog interface {
	GetItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error)
}

// AliasLookup finds the item learned for a normalized phrase, or nil.
type AliasLookup interface {
	Lookup(ctx context.Context, tenantID, phrase string) (*model.CatalogItem, error)
}

type Resolver struct {
	catalog Catalog
	aliases AliasLookup
	log     zerolog.Logger
}

// NewResolver builds a resolver; aliases may be nil.
func NewResolver(catalog Catalog, aliases AliasLookup, logger zerolog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		aliases: aliases,
		log:     logger.With().Str("component", "resolver").Logger(),
	}
}

// ResolveSegment resolves a single segment against the tenant catalog.
func (r *Resolver) ResolveSegment(ctx context.Context, seg model.Segment, tenantID string) (model.ResolvedEntry, error) {
	out, err := r.ResolveAll(ctx, []model.Segment{seg}, tenantID)
	if err != nil {
		return model.ResolvedEntry{}, err
	}
	return out[0], nil
}

// ResolveAll resolves segments concurrently; the result is one entry per
// segment, in input order. Only a catalog failure is an error.
func (r *Resolver) ResolveAll(ctx context.Context, segs []model.Segment, tenantID string) ([]model.ResolvedEntry, error) {
	if len(segs) == 0 {
		return []model.ResolvedEntry{}, nil
	}
	items, err := r.catalog.GetItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	idx := buildIndex(items)

	out := make([]model.ResolvedEntry, len(segs))
	var wg sync.WaitGroup
	for i := range segs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seg := segs[i]
			out[i] = idx.resolve(seg, r.lookupAlias(ctx, tenantID, seg.Text))
			r.log.Debug().
				Str("tenant", tenantID).
				Str("text", seg.Text).
				Str("item", out[i].ItemID).
				Float64("confidence", out[i].Confidence).
				Bool("alias", out[i].ViaAlias).
				Msg("segment resolved")
		}(i)
	}
	wg.Wait()
	return out, nil
}

// alias failures degrade to a miss; scoring still runs
func (r *Resolver) lookupAlias(ctx context.Context, tenantID, text string) *model.CatalogItem {
	if r.aliases == nil || text == "" {
		return nil
	}
	it, err := r.aliases.Lookup(ctx, tenantID, text)
	if err != nil {
		r.log.Warn().Err(err).Str("tenant", tenantID).Str("text", text).Msg("alias lookup failed")
		return nil
	}
	return it
}

// индекс нормализованных имён и кодов одного снимка каталога
type index struct {
	items []model.CatalogItem
	names []string
	codes []string
	byID  map[string]int
}

func buildIndex(items []model.CatalogItem) *index {
	idx := &index{
		items: items,
		names: make([]string, len(items)),
		codes: make([]string, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for i, it := range items {
		idx.names[i] = Normalize(it.Name)
		idx.codes[i] = Normalize(it.ShortCode)
		if _, dup := idx.byID[it.ID]; !dup {
			idx.byID[it.ID] = i
		}
	}
	return idx
}

func (idx *index) resolve(seg model.Segment, aliasItem *model.CatalogItem) model.ResolvedEntry {
	res := model.ResolvedEntry{Segment: seg, Candidates: []model.Candidate{}}
	q := seg.Text
	if q == "" {
		return res
	}

	// plain per-item scores; an item keeps its best comparison
	scores := make([]float64, len(idx.items))
	for i := range idx.items {
		scores[i] = scoreKeys(q, idx.names[i], idx.codes[i])
	}
	merged := make([]float64, len(scores))
	copy(merged, scores)

	best, bestScore := -1, 0.0
	aliasIdx := -1
	if aliasItem != nil {
		if i, ok := idx.byID[aliasItem.ID]; ok {
			aliasIdx = i
			merged[i] = max(merged[i], aliasWeight)
			best, bestScore = i, merged[i]
		}
	}
	for i, s := range merged {
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return res
	}

	order := make([]int, 0, len(merged))
	for i, s := range merged {
		if s > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return merged[order[a]] > merged[order[b]] })
	if len(order) > maxCandidates {
		order = order[:maxCandidates]
	}
	for _, i := range order {
		res.Candidates = append(res.Candidates, model.Candidate{
			ID:    idx.items[i].ID,
			Name:  idx.items[i].Name,
			Score: merged[i],
		})
	}

	res.ItemID = idx.items[best].ID
	res.ItemName = idx.items[best].Name
	res.Confidence = scores[best]
	res.ViaAlias = best == aliasIdx
	if res.ViaAlias {
		// closeness of the text to the aliased name; neither the weight nor a code hit counts
		res.Confidence = scoreKeys(q, idx.names[best], "")
	}
	return res
}
