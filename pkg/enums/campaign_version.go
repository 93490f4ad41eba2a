package enums

import (
	"fmt"
	"strings"
)

// CampaignVersion is the platform generation a campaign or its budget runs on.
// GraphQL reports upper-case values and REST reports title case; both parse
// to the same constant.
type CampaignVersion string

const (
	CampaignVersionKokai   CampaignVersion = "KOKAI"
	CampaignVersionSolimar CampaignVersion = "SOLIMAR"
)

var validCampaignVersions = []CampaignVersion{
	CampaignVersionKokai,
	CampaignVersionSolimar,
}

// IsValid reports whether the value matches a known campaign version.
func (v CampaignVersion) IsValid() bool {
	for _, candidate := range validCampaignVersions {
		if candidate == v {
			return true
		}
	}
	return false
}

// REST returns the title-case spelling the REST API expects.
func (v CampaignVersion) REST() string {
	switch v {
	case CampaignVersionKokai:
		return "Kokai"
	case CampaignVersionSolimar:
		return "Solimar"
	}
	return string(v)
}

// ParseCampaignVersion accepts either API spelling.
func ParseCampaignVersion(value string) (CampaignVersion, error) {
	normalized := CampaignVersion(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid campaign version %q", value)
}
