package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/pagination"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryCursor decodes the opaque cursor parameter. An absent cursor
// yields nil.
func ParseQueryCursor(r *http.Request, key string) (*pagination.Cursor, error) {
	cursor, err := pagination.ParseCursor(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").WithDetails(map[string]any{"field": key})
	}
	return cursor, nil
}

// ParseQueryDeltaKind reads an optional delta kind filter.
func ParseQueryDeltaKind(r *http.Request, key string) (enums.DeltaKind, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", nil
	}
	kind, err := enums.ParseDeltaKind(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind").WithDetails(map[string]any{"field": key})
	}
	return kind, nil
}
