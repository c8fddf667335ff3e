// Package llm defines the remote collaborators the resolver falls back to:
// an order parser for free text and an audio transcriber.
package llm

import (
	"context"

	"label-resolver/internal/resolve/model"
)

// ParsedLine is one item the remote parser identified.
type ParsedLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// OrderParser maps free text to catalog items. It fails with a
// common.KindFallbackUnavailable error when it identifies nothing valid or
// the service cannot be reached.
type OrderParser interface {
	ParseOrder(ctx context.Context, text, tenantID string, hint []model.CatalogItem) ([]ParsedLine, error)
}

// Transcriber turns recorded audio into text. Credential problems are
// reported as common.KindInvalidCredential.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
}
