package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mediavault/internal/domain"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

// writeDomainError maps a domain.Error's Kind to the HTTP status and
// connection-handling policy in spec.md §7. Parse/IO get plain 500s here
// rather than the data-plane's forced close: every handler in this package
// buffers its whole response before writing, so a mid-body failure that
// would leave a client trusting a corrupt byte stream — the reason the
// sendfile fast path forces a close — cannot happen on this surface.
func writeDomainError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", errMessage(err, "not found"))
	case domain.KindInvalid:
		writeError(w, http.StatusBadRequest, "invalid_request", errMessage(err, "invalid request"))
	case domain.KindConflict:
		writeError(w, http.StatusConflict, "conflict", errMessage(err, "conflict"))
	case domain.KindUnauthorized:
		w.Header().Set("Connection", "close")
		writeError(w, http.StatusUnauthorized, "unauthorized", errMessage(err, "unauthorized"))
	case domain.KindCancelled:
		writeError(w, http.StatusServiceUnavailable, "cancelled", errMessage(err, "request cancelled"))
	case domain.KindParse, domain.KindIO:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func errMessage(err error, fallback string) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	return fallback
}

var (
	errInvalidRange        = errors.New("invalid range")
	errRangeNotSatisfiable = errors.New("range not satisfiable")
)

// parseByteRange parses a `Range: bytes=...` header value against a
// resource of the given size, per spec.md §6: "bytes=a-b", "bytes=a-", and
// "bytes=-n" are the only forms accepted; a multi-range value is rejected
// rather than partially honoured.
func parseByteRange(value string, size int64) (int64, int64, error) {
	if size <= 0 {
		return 0, 0, errRangeNotSatisfiable
	}

	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "bytes=") {
		return 0, 0, errInvalidRange
	}

	spec := strings.TrimSpace(value[len("bytes="):])
	if spec == "" || strings.Contains(spec, ",") {
		return 0, 0, errInvalidRange
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, errInvalidRange
	}
	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	if startStr == "" {
		if endStr == "" {
			return 0, 0, errInvalidRange
		}
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix <= 0 {
			return 0, 0, errInvalidRange
		}
		if suffix > size {
			suffix = size
		}
		return size - suffix, size - 1, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errInvalidRange
	}
	if start >= size {
		return 0, 0, errRangeNotSatisfiable
	}
	if endStr == "" {
		return start, size - 1, nil
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < 0 || end < start {
		return 0, 0, errInvalidRange
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}
