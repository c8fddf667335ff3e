package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"label-resolver/internal/common"
	"label-resolver/internal/fileio"
	"label-resolver/internal/middleware"
	"label-resolver/internal/order"
	"label-resolver/internal/resolve/model"
	"label-resolver/internal/resolve/service"
)

// Catalog is the cache view the handler needs.
type Catalog interface {
	GetItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error)
	Refresh(ctx context.Context, tenantID string) ([]model.CatalogItem, error)
	Preload(ctx context.Context, tenantID string)
	Invalidate(tenantID string)
}

// CatalogWriter stores imported items.
type CatalogWriter interface {
	SaveItems(ctx context.Context, tenantID string, items []model.CatalogItem) error
}

type AliasSaver interface {
	Save(ctx context.Context, tenantID, raw, itemID string) (bool, error)
}

type Deps struct {
	Segmenter *service.Segmenter
	Resolver  *service.Resolver
	Orders    *order.Service
	Catalog   Catalog
	Writer    CatalogWriter
	Aliases   AliasSaver
}

type Handler struct {
	d           Deps
	log         zerolog.Logger
	maxUploadMB int
}

func New(d Deps, maxUploadMB int, logger zerolog.Logger) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{d: d, log: logger, maxUploadMB: maxUploadMB}
}

func (h *Handler) reqLog(r *http.Request) zerolog.Logger {
	return h.log.With().
		Str("rid", middleware.GetRequestID(r)).
		Str("tenant", middleware.GetTenant(r)).
		Logger()
}

type textRequest struct {
	Text string `json:"text"`
}

type resolveResponse struct {
	Entries   []model.ResolvedEntry `json:"entries"`
	Aggregate model.Aggregate       `json:"aggregate"`
}

// Resolve runs local resolution only: no remote fallback, no writes.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	log := h.reqLog(r)
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, err)
		return
	}
	if err := validateText(req.Text); err != nil {
		writeError(w, log, err)
		return
	}
	segs := h.d.Segmenter.Segment(req.Text)
	if len(segs) == 0 {
		writeError(w, log, common.InvalidInput(common.NoValidItems))
		return
	}
	entries, err := h.d.Resolver.ResolveAll(r.Context(), segs, middleware.GetTenant(r))
	if err != nil {
		writeError(w, log, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, resolveResponse{Entries: entries, Aggregate: service.Aggregate(entries)})
}

// Preview resolves an order with remote fallback for unsure lines.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	log := h.reqLog(r)
	start := time.Now()
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, err)
		return
	}
	if err := validateText(req.Text); err != nil {
		writeError(w, log, err)
		return
	}
	plan, err := h.d.Orders.Preview(r.Context(), middleware.GetTenant(r), req.Text)
	if err != nil {
		writeError(w, log, err)
		return
	}
	log.Info().
		Int("lines", len(plan.Lines)).
		Float64("coverage", plan.Aggregate.Coverage).
		Str("tier", string(plan.Aggregate.Tier)).
		Bool("remote", plan.RemoteUsed).
		Dur("elapsed", time.Since(start)).
		Msg("preview done")
	_ = writeJSON(w, http.StatusOK, plan)
}

// Voice accepts multipart audio in field "audio".
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	log := h.reqLog(r)
	tenant := middleware.GetTenant(r)
	// overlap the catalog fetch with transcription
	h.d.Catalog.Preload(r.Context(), tenant)

	if err := r.ParseMultipartForm(int64(h.maxUploadMB) << 20); err != nil {
		writeError(w, log, common.InvalidInput("bad multipart form: "+err.Error()))
		return
	}
	f, hdr, err := r.FormFile("audio")
	if err != nil {
		writeError(w, log, common.InvalidInput("missing audio: "+err.Error()))
		return
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		writeError(w, log, common.InvalidInput("read audio: "+err.Error()))
		return
	}

	plan, err := h.d.Orders.Voice(r.Context(), tenant, audio, hdr.Filename)
	if err != nil {
		writeError(w, log, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, plan)
}

type confirmRequest struct {
	Lines []order.ConfirmLine `json:"lines"`
}

func (req confirmRequest) validate() error {
	if len(req.Lines) == 0 {
		return common.InvalidInput(common.NoValidItems)
	}
	for _, l := range req.Lines {
		if strings.TrimSpace(l.ItemID) == "" {
			return common.InvalidInput("itemId is required")
		}
		if l.Quantity < 1 {
			return common.InvalidInput("quantity must be at least 1")
		}
	}
	return nil
}

// Confirm dispatches the operator's final picks.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	log := h.reqLog(r)
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, log, err)
		return
	}
	rec, err := h.d.Orders.Confirm(r.Context(), middleware.GetTenant(r), req.Lines)
	if err != nil {
		writeError(w, log, err)
		return
	}
	log.Info().Int("labels", len(rec.Labels)).Int("learned", rec.Learned).Msg("labels dispatched")
	_ = writeJSON(w, http.StatusOK, rec)
}

type aliasRequest struct {
	Phrase string `json:"phrase"`
	ItemID string `json:"itemId"`
}

type aliasResponse struct {
	Phrase  string `json:"phrase"`
	ItemID  string `json:"itemId"`
	Created bool   `json:"created"`
}

// CreateAlias is the admin path for binding a phrase to an item.
func (h *Handler) CreateAlias(w http.ResponseWriter, r *http.Request) {
	log := h.reqLog(r)
	tenant := middleware.GetTenant(r)
	var req aliasRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, err)
		return
	}
	if service.Normalize(req.Phrase) == "" || strings.TrimSpace(req.ItemID) == "" {
		writeError(w, log, common.InvalidInput("phrase and itemId are required"))
		return
	}
	items, err := h.d.Catalog.GetItems(r.Context(), tenant)
	if err != nil {
		writeError(w, log, err)
		return
	}
	found := false
	for _, it := range items {
		if it.ID == req.ItemID {
			found = true
			break
		}
	}
	if !found {
		writeError(w, log, common.InvalidInput("unknown item "+req.ItemID))
		return
	}
	created, err := h.d.Aliases.Save(r.Context(), tenant, req.Phrase, req.ItemID)
	if err != nil {
		writeError(w, log, err)
		return
	}
	// an existing binding is kept as is; 200 tells the caller nothing changed
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	_ = writeJSON(w, status, aliasResponse{Phrase: service.Normalize(req.Phrase), ItemID: req.ItemID, Created: created})
}

// RefreshCatalog refetches the tenant snapshot now.
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	log := h.reqLog(r)
	items, err := h.d.Catalog.Refresh(r.Context(), middleware.GetTenant(r))
	if err != nil {
		writeError(w, log, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]int{"items": len(items)})
}

// ImportCatalog loads a spreadsheet (field "file") into the tenant catalog.
func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	log := h.reqLog(r)
	tenant := middleware.GetTenant(r)
	if err := r.ParseMultipartForm(int64(h.maxUploadMB) << 20); err != nil {
		writeError(w, log, common.InvalidInput("bad multipart form: "+err.Error()))
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, log, common.InvalidInput("missing file: "+err.Error()))
		return
	}
	defer f.Close()

	items, err := fileio.ReadCatalog(f, hdr.Filename, atoi(r.FormValue("header_row"), 1))
	if err != nil {
		writeError(w, log, common.InvalidInput("read catalog: "+err.Error()))
		return
	}
	if len(items) == 0 {
		writeError(w, log, common.InvalidInput("no printable items in "+hdr.Filename))
		return
	}
	if err := h.d.Writer.SaveItems(r.Context(), tenant, items); err != nil {
		writeError(w, log, common.CatalogUnavailable(err))
		return
	}
	h.d.Catalog.Invalidate(tenant)
	log.Info().Str("file", hdr.Filename).Int("items", len(items)).Msg("catalog imported")
	_ = writeJSON(w, http.StatusOK, map[string]int{"items": len(items)})
}
