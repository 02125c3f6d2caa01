package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
)

// maxCursorLength bounds opaque pagination cursors echoed back by clients.
const maxCursorLength = 256

// IntRange describes an optional bounded integer query parameter.
type IntRange struct {
	Default int
	Min     int
	Max     int
}

// QueryInt reads key from the query string, falling back to the default when
// it is absent.
func QueryInt(r *http.Request, key string, bounds IntRange) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return bounds.Default, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, key+" must be an integer").
			WithDetails(map[string]any{"field": key})
	}
	if n < bounds.Min || n > bounds.Max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").
			WithDetails(map[string]any{"field": key, "min": bounds.Min, "max": bounds.Max})
	}
	return n, nil
}

// QueryCursor returns the trimmed pagination cursor, rejecting oversized values.
func QueryCursor(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if len(raw) > maxCursorLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" is too long").
			WithDetails(map[string]any{"field": key, "max_length": maxCursorLength})
	}
	return raw, nil
}
