package enums

import (
	"fmt"
	"strings"
)

// ReportType is the programmatic tile report scope.
type ReportType string

const (
	ReportTypeAdGroup    ReportType = "AD_GROUP"
	ReportTypeCampaign   ReportType = "CAMPAIGN"
	ReportTypeAdvertiser ReportType = "ADVERTISER"
)

var validReportTypes = []ReportType{
	ReportTypeAdGroup,
	ReportTypeCampaign,
	ReportTypeAdvertiser,
}

// IsValid reports whether the value matches a known report type.
func (r ReportType) IsValid() bool {
	for _, candidate := range validReportTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReportType converts the raw string to ReportType. An empty value
// means AD_GROUP.
func ParseReportType(value string) (ReportType, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return ReportTypeAdGroup, nil
	}
	for _, candidate := range validReportTypes {
		if string(candidate) == trimmed {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report type %q", value)
}
