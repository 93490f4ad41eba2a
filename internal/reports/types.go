package reports

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

// Target is the entity a report runs against.
type Target struct {
	Type enums.ReportType `json:"type"`
	ID   string           `json:"id"`
}

// ResolveTarget picks the narrowest entity given: ad group, then campaign,
// then advertiser.
func ResolveTarget(adGroupID, campaignID, advertiserID string) (Target, error) {
	switch {
	case strings.TrimSpace(adGroupID) != "":
		return Target{Type: enums.ReportTypeAdGroup, ID: adGroupID}, nil
	case strings.TrimSpace(campaignID) != "":
		return Target{Type: enums.ReportTypeCampaign, ID: campaignID}, nil
	case strings.TrimSpace(advertiserID) != "":
		return Target{Type: enums.ReportTypeAdvertiser, ID: advertiserID}, nil
	}
	return Target{}, pkgerrors.New(pkgerrors.CodeValidation, "an ad group, campaign or advertiser id is required")
}

// MetadataEntry describes one report available on a tile.
type MetadataEntry struct {
	Available bool `json:"available"`
	// Schedule is kept as returned; its shape varies by tile.
	Schedule json.RawMessage `json:"schedule,omitempty"`
	Type     string          `json:"type"`
}

// Execution is an immediate report run.
type Execution struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	HasSampleData bool   `json:"hasSampleData"`
}

type executePayload struct {
	Data       *Execution      `json:"data"`
	UserErrors []ttd.UserError `json:"userErrors"`
}

// executeOperation is the mutation and report enum for a target type.
type executeOperation struct {
	mutation string
	enumType string
}

var executeOperations = map[enums.ReportType]executeOperation{
	enums.ReportTypeAdGroup:    {mutation: "adGroupReportExecute", enumType: "AdGroupReportType"},
	enums.ReportTypeCampaign:   {mutation: "campaignReportExecute", enumType: "CampaignReportType"},
	enums.ReportTypeAdvertiser: {mutation: "advertiserReportExecute", enumType: "AdvertiserReportType"},
}
