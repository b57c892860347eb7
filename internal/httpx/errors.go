package httpx

import (
	"net/http"

	"github.com/sundayezeilo/shortlinker/internal/errx"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
// Storage that cannot be read is a 503; storage that was read but is broken
// is a 500.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	case errx.Corrupt, errx.IO, errx.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps errx.Kind to error codes for JSON responses.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return "not_found"
	case errx.Invalid:
		return "invalid_input"
	case errx.Unavailable:
		return "storage_unavailable"
	case errx.Corrupt:
		return "storage_corrupt"
	case errx.IO:
		return "io_error"
	case errx.Internal:
		return "internal_error"
	default:
		return "internal_error"
	}
}
