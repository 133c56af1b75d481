package normalize

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"agropay/internal/domain/payment"
	"agropay/internal/domain/registry"
)

// ClampFields truncates free-text fields to the market's wire maxima.
// Long text never fails a payment; it is cut silently and logged. The
// returned request is a copy, the input is not mutated.
func ClampFields(ctx context.Context, req payment.PaymentRequest, m registry.Market) payment.PaymentRequest {
	out := req

	if clamped, ok := clamp(req.Description, m.MaxDescriptionLen); ok {
		slog.InfoContext(ctx, "truncated payment description",
			"provider", m.Provider, "limit", m.MaxDescriptionLen, "original_len", len(req.Description))
		out.Description = clamped
	}

	if clamped, ok := clamp(req.ExternalID, m.MaxReferenceLen); ok {
		slog.InfoContext(ctx, "truncated wire reference",
			"provider", m.Provider, "limit", m.MaxReferenceLen, "original_len", len(req.ExternalID))
		out.ExternalID = clamped
	}

	return out
}

// clamp cuts s to at most max bytes without splitting a multi-byte rune;
// the wire must never carry invalid UTF-8.
func clamp(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
