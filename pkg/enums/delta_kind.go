package enums

import (
	"fmt"
	"strings"
)

// DeltaKind names an entity family synced through change tracking.
type DeltaKind string

const (
	DeltaKindAdvertisers  DeltaKind = "advertisers"
	DeltaKindCreatives    DeltaKind = "creatives"
	DeltaKindTrackingTags DeltaKind = "tracking_tags"
	DeltaKindAdGroups     DeltaKind = "ad_groups"
)

var validDeltaKinds = []DeltaKind{
	DeltaKindAdvertisers,
	DeltaKindCreatives,
	DeltaKindTrackingTags,
	DeltaKindAdGroups,
}

// IsValid reports whether the value matches a known delta kind.
func (k DeltaKind) IsValid() bool {
	for _, candidate := range validDeltaKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDeltaKind converts the raw string to DeltaKind.
func ParseDeltaKind(value string) (DeltaKind, error) {
	kind := DeltaKind(strings.ToLower(strings.TrimSpace(value)))
	if kind.IsValid() {
		return kind, nil
	}
	return "", fmt.Errorf("invalid delta kind %q", value)
}
