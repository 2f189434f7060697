package integrations

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Seann-Moser/integrations/items"
	"github.com/Seann-Moser/integrations/oauth/oclient"
)

// ErrUnknownProvider indicates the path named a provider that is not configured.
var ErrUnknownProvider = errors.New("unknown provider")

type errorResponse struct {
	Detail string `json:"detail"`
}

// StatusCode maps an error from the OAuth flow or the aggregator onto an
// HTTP status.
func StatusCode(err error) int {
	var pe *oclient.ProviderError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &pe):
		if pe.Status >= 400 && pe.Status < 600 {
			return pe.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, oclient.ErrIntegrationNotFound):
		return http.StatusNotFound
	case oclient.IsClientError(err), errors.Is(err, items.ErrInvalidCredentials):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeError reports err as {"detail": msg}. Internal failures are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusCode(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
		detail = http.StatusText(status)
	} else {
		logger.InfoContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

func missing(names ...string) error {
	return fmt.Errorf("%w: %v", oclient.ErrMissingParameter, names)
}
