// Package order turns free-text and voice orders into label requests:
// local resolution first, the remote parser for low-confidence lines, and
// alias learning once labels were actually dispatched.
package order

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"label-resolver/internal/common"
	"label-resolver/internal/llm"
	"label-resolver/internal/resolve/model"
	"label-resolver/internal/resolve/service"
)

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// LabelRequest is one confirmed line handed to the print side.
type LabelRequest struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
	Method   string `json:"method"`
	Phrase   string `json:"phrase,omitempty"`
}

// Dispatcher records labels and submits the print job. It owns the
// transaction around those writes.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID string, labels []LabelRequest) error
}

// Learner stores a phrase → item alias; false means the phrase was already bound.
type Learner interface {
	Save(ctx context.Context, tenantID, raw, itemID string) (bool, error)
}

type Resolver interface {
	ResolveAll(ctx context.Context, segs []model.Segment, tenantID string) ([]model.ResolvedEntry, error)
}

type Line struct {
	model.ResolvedEntry
	Quantity int            `json:"quantity"`
	Tier     model.Tier     `json:"tier"`
	Decision model.Decision `json:"decision"`
	Source   string         `json:"source"`
}

type Plan struct {
	Text       string          `json:"text"`
	Language   string          `json:"language,omitempty"`
	Lines      []Line          `json:"lines"`
	Aggregate  model.Aggregate `json:"aggregate"`
	RemoteUsed bool            `json:"remoteUsed"`
}

type Config struct {
	Policy    service.Policy
	Language  string   // default cardinal vocabulary
	Languages []string // voice transcription candidates
}

type Service struct {
	catalog     service.Catalog
	resolver    Resolver
	parser      llm.OrderParser // optional
	transcriber llm.Transcriber // optional
	dispatcher  Dispatcher
	learner     Learner
	cfg         Config
	log         zerolog.Logger

	segmenters map[string]*service.Segmenter
}

type Deps struct {
	Catalog     service.Catalog
	Resolver    Resolver
	Parser      llm.OrderParser
	Transcriber llm.Transcriber
	Dispatcher  Dispatcher
	Learner     Learner
}

func NewService(d Deps, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Language == "" {
		cfg.Language = service.DefaultLanguage
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{cfg.Language}
	}
	s := &Service{
		catalog:     d.Catalog,
		resolver:    d.Resolver,
		parser:      d.Parser,
		transcriber: d.Transcriber,
		dispatcher:  d.Dispatcher,
		learner:     d.Learner,
		cfg:         cfg,
		log:         logger.With().Str("component", "order").Logger(),
		segmenters:  make(map[string]*service.Segmenter),
	}
	for _, lang := range append([]string{cfg.Language}, cfg.Languages...) {
		s.segmenters[lang] = service.NewSegmenter(lang)
	}
	return s
}

func (s *Service) segmenter(lang string) *service.Segmenter {
	if sg, ok := s.segmenters[lang]; ok {
		return sg
	}
	return s.segmenters[s.cfg.Language]
}

// Preview resolves text in the default language.
func (s *Service) Preview(ctx context.Context, tenantID, text string) (*Plan, error) {
	return s.preview(ctx, tenantID, text, s.cfg.Language)
}

func (s *Service) preview(ctx context.Context, tenantID, text, lang string) (*Plan, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.InvalidInput(common.NoValidItems)
	}
	segs := s.segmenter(lang).Segment(text)
	if len(segs) == 0 {
		return nil, common.InvalidInput(common.NoValidItems)
	}

	entries, err := s.resolver.ResolveAll(ctx, segs, tenantID)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Text: text, Language: lang, Lines: make([]Line, len(entries))}
	var deferred []int
	for i, e := range entries {
		plan.Lines[i] = Line{
			ResolvedEntry: e,
			Quantity:      e.Segment.Quantity,
			Tier:          service.TierOf(e.Confidence),
			Decision:      s.cfg.Policy.Decide(e),
			Source:        SourceLocal,
		}
		if plan.Lines[i].Decision == model.DecisionAcceptWithWarning {
			s.log.Warn().
				Str("tenant", tenantID).
				Str("raw", e.Segment.Raw).
				Str("item", e.ItemID).
				Float64("confidence", e.Confidence).
				Msg("medium confidence match accepted")
		}
		if s.parser != nil && s.cfg.Policy.ShouldFallback(e) {
			deferred = append(deferred, i)
		}
	}

	if len(deferred) > 0 {
		plan.RemoteUsed = s.fallback(ctx, tenantID, plan, deferred)
	}

	final := make([]model.ResolvedEntry, len(plan.Lines))
	for i, l := range plan.Lines {
		final[i] = l.ResolvedEntry
	}
	plan.Aggregate = service.Aggregate(final)
	if plan.Aggregate.Resolved == 0 {
		return nil, common.Unresolved(common.NoValidItems)
	}
	return plan, nil
}

// fallback asks the remote parser about each deferred line concurrently.
// A failed call leaves its line as resolved locally.
func (s *Service) fallback(ctx context.Context, tenantID string, plan *Plan, deferred []int) bool {
	items, err := s.catalog.GetItems(ctx, tenantID)
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Msg("remote fallback skipped")
		return false
	}
	byID := make(map[string]model.CatalogItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	picks := make([]*llm.ParsedLine, len(deferred))
	var wg sync.WaitGroup
	for k, i := range deferred {
		wg.Add(1)
		go func(k int, raw string) {
			defer wg.Done()
			lines, err := s.parser.ParseOrder(ctx, raw, tenantID, items)
			if err != nil {
				s.log.Warn().Err(err).Str("tenant", tenantID).Str("raw", raw).Msg("remote fallback unavailable")
				return
			}
			for _, l := range lines {
				if _, ok := byID[l.ItemID]; ok {
					picks[k] = &l
					return
				}
			}
		}(k, plan.Lines[i].Segment.Raw)
	}
	wg.Wait()

	used := false
	for k, i := range deferred {
		p := picks[k]
		if p == nil {
			continue
		}
		line := &plan.Lines[i]
		line.ItemID = p.ItemID
		line.ItemName = byID[p.ItemID].Name
		line.ViaAlias = false
		if p.Quantity > 0 {
			line.Quantity = p.Quantity
		}
		line.Source = SourceRemote
		line.Decision = model.DecisionAccept
		used = true
	}
	return used
}

// Voice transcribes audio once per candidate language and keeps the reading
// whose resolution scores best.
func (s *Service) Voice(ctx context.Context, tenantID string, audio []byte, filename string) (*Plan, error) {
	if s.transcriber == nil {
		return nil, common.FallbackUnavailable("transcription not configured", nil)
	}
	if len(audio) == 0 {
		return nil, common.InvalidInput("empty audio")
	}

	langs := s.cfg.Languages
	plans := make([]*Plan, len(langs))
	errs := make([]error, len(langs))
	var wg sync.WaitGroup
	for i, lang := range langs {
		wg.Add(1)
		go func(i int, lang string) {
			defer wg.Done()
			text, err := s.transcriber.Transcribe(ctx, audio, filename, lang)
			if err != nil {
				errs[i] = err
				return
			}
			plans[i], errs[i] = s.preview(ctx, tenantID, text, lang)
		}(i, lang)
	}
	wg.Wait()

	var best *Plan
	for _, p := range plans {
		if p != nil && (best == nil || p.Aggregate.Score > best.Aggregate.Score) {
			best = p
		}
	}
	if best != nil {
		return best, nil
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return nil, common.Unresolved(common.NoValidItems)
}

// ConfirmLine is what the operator finally chose for one phrase.
type ConfirmLine struct {
	Phrase   string `json:"phrase"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
	Method   string `json:"method,omitempty"`
}

type Receipt struct {
	Labels  []LabelRequest `json:"labels"`
	Learned int            `json:"learned"`
}

// Confirm validates the chosen lines, dispatches them and then learns
// aliases for phrases the local resolver was unsure about. Nothing is
// written when ctx is done before dispatch.
func (s *Service) Confirm(ctx context.Context, tenantID string, lines []ConfirmLine) (*Receipt, error) {
	if len(lines) == 0 {
		return nil, common.InvalidInput(common.NoValidItems)
	}
	items, err := s.catalog.GetItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.CatalogItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	labels := make([]LabelRequest, 0, len(lines))
	for _, l := range lines {
		it, ok := byID[l.ItemID]
		if !ok {
			return nil, common.InvalidInput("unknown item " + l.ItemID)
		}
		if l.Quantity < 1 {
			return nil, common.InvalidInput("quantity must be at least 1")
		}
		method := l.Method
		if method == "" {
			method = it.DefaultMethod()
		}
		if !it.HasMethod(method) {
			return nil, common.InvalidInput("storage method " + method + " not enabled for " + it.Name)
		}
		labels = append(labels, LabelRequest{
			ItemID:   it.ID,
			ItemName: it.Name,
			Quantity: l.Quantity,
			Method:   method,
			Phrase:   strings.TrimSpace(l.Phrase),
		})
	}

	// local confidence of each phrase, measured before anything is written
	learn, err := s.phrasesToLearn(ctx, tenantID, labels)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, tenantID, labels); err != nil {
		return nil, common.WrapError(err, "dispatch labels")
	}

	rec := &Receipt{Labels: labels}
	for _, l := range learn {
		inserted, err := s.learner.Save(ctx, tenantID, l.Phrase, l.ItemID)
		if err != nil {
			s.log.Warn().Err(err).Str("tenant", tenantID).Str("phrase", l.Phrase).Msg("alias learning failed")
			continue
		}
		if inserted {
			rec.Learned++
		}
	}
	return rec, nil
}

func (s *Service) phrasesToLearn(ctx context.Context, tenantID string, labels []LabelRequest) ([]LabelRequest, error) {
	if s.learner == nil {
		return nil, nil
	}
	var (
		segs  []model.Segment
		picks []LabelRequest
	)
	for _, l := range labels {
		text := s.phraseKey(l.Phrase)
		if text == "" {
			continue
		}
		segs = append(segs, model.Segment{Raw: l.Phrase, Quantity: l.Quantity, Text: text})
		l.Phrase = text
		picks = append(picks, l)
	}
	if len(segs) == 0 {
		return nil, nil
	}
	entries, err := s.resolver.ResolveAll(ctx, segs, tenantID)
	if err != nil {
		return nil, err
	}
	var out []LabelRequest
	for i, e := range entries {
		if service.NeedsLearning(e.Confidence) {
			out = append(out, picks[i])
		}
	}
	return out, nil
}

// phraseKey drops a leading count from a confirmed phrase ("2 costela" → "COSTELA").
func (s *Service) phraseKey(phrase string) string {
	segs := s.segmenter(s.cfg.Language).Segment(phrase)
	if len(segs) == 1 {
		return segs[0].Text
	}
	return service.Normalize(phrase)
}
