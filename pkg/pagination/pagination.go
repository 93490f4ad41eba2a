package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when a limit is not provided.
	DefaultLimit = 100
	// MaxLimit caps both local change feed pages and platform connection
	// pages; the platform refuses `first` above 1000.
	MaxLimit = 1000
)

// Cursor is the position after the last row served from the change store.
// Rows are ordered by tracking version, then id.
type Cursor struct {
	TrackingVersion int64
	ID              uuid.UUID
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so callers can tell whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor renders an opaque, URL-safe cursor.
func EncodeCursor(cursor Cursor) string {
	payload := strconv.FormatInt(cursor.TrackingVersion, 10) + ":" + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor reverses EncodeCursor. A blank value means the first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	rawVersion, rawID, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil || version < 0 {
		return nil, fmt.Errorf("invalid cursor version %q", rawVersion)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{TrackingVersion: version, ID: id}, nil
}
