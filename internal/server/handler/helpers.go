package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// ActorHeader carries the caller's address.
const ActorHeader = "X-Actor"

const (
	maxBodyBytes    = 64 << 10
	defaultDeadline = 2 * time.Minute
)

var errMissingActor = fmt.Errorf("missing or malformed %s header: %w", ActorHeader, domain.ErrUnauthorized)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps an error to its HTTP status by category.
func StatusFor(err error) int {
	switch domain.Kind(err) {
	case domain.KindValidation, domain.KindEconomic:
		return http.StatusUnprocessableEntity
	case domain.KindLookup:
		return http.StatusNotFound
	case domain.KindAccess:
		return http.StatusForbidden
	case domain.KindAvailability:
		return http.StatusServiceUnavailable
	case domain.KindAntiGaming:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeOpError reports a failed operation. Internal errors are logged and
// their text withheld from the client.
func writeOpError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
		writeError(w, status, op+" failed")
		return
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(domain.Kind(err)),
	})
}

// actor parses the caller address from the X-Actor header. The header is
// taken at face value; the API key is the only authentication.
func actor(r *http.Request) (common.Address, error) {
	return parseAddress(r.Header.Get(ActorHeader), errMissingActor)
}

func parseAddress(s string, invalid error) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, invalid
	}
	return addr, nil
}

// decodeBody reads a JSON request body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, domain.ErrInvalidParam)
	}
	return nil
}

// idParam parses a numeric path parameter.
func idParam(r *http.Request, name string) (uint64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s %q: %w", name, v, domain.ErrNotFound)
	}
	return id, nil
}

// deadlineOr returns t, or now plus the default window when t is unset.
func deadlineOr(t *time.Time) time.Time {
	if t == nil || t.IsZero() {
		return time.Now().Add(defaultDeadline)
	}
	return *t
}

// parseListOpts extracts pagination and time-window parameters from the
// query string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &t
	}
	return opts
}
