package server

import (
	"log/slog"
	"net/http"

	"github.com/solranch/backend/internal/domain"
)

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindBadRequest, domain.KindTransactionFailed, domain.KindExpired:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case domain.KindNetwork:
		return http.StatusBadGateway
	default:
		// internal, reconciliation_drift
		return http.StatusInternalServerError
	}
}

// writeDomainError maps a classified error to its HTTP status. Unclassified
// errors surface as 500 with a generic message.
func writeDomainError(logger *slog.Logger, w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", string(kind), "error", err)
		if kind == domain.KindInternal {
			msg = "internal error"
		}
	}

	respondJSON(w, status, map[string]string{
		"error": msg,
		"kind":  string(kind),
	})
}
