package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"label-resolver/internal/common"
)

const maxTextLen = 4000

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error string      `json:"error"`
	Kind  common.Kind `json:"kind"`
}

func statusFor(kind common.Kind) int {
	switch kind {
	case common.KindInvalidInput:
		return http.StatusBadRequest
	case common.KindUnresolved:
		return http.StatusUnprocessableEntity
	case common.KindCatalogUnavailable:
		return http.StatusServiceUnavailable
	case common.KindFallbackUnavailable:
		return http.StatusBadGateway
	case common.KindInvalidCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	kind := common.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	var e *common.Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}
	switch {
	case errors.Is(err, context.Canceled):
		// the client went away; nobody reads this response
		log.Debug().Err(err).Str("kind", string(kind)).Msg("request canceled")
	case status >= 500:
		log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	default:
		log.Debug().Err(err).Str("kind", string(kind)).Msg("request rejected")
	}
	_ = writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// decodeJSON reads exactly one JSON object into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.InvalidInput("bad json: " + err.Error())
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return common.InvalidInput("bad json: trailing data")
	}
	return nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return common.InvalidInput(common.NoValidItems)
	}
	if len(text) > maxTextLen {
		return common.InvalidInput(fmt.Sprintf("text longer than %d bytes", maxTextLen))
	}
	return nil
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
