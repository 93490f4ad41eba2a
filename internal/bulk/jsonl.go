package bulk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
	"github.com/google/uuid"
)

const (
	flightDateLayout    = "2006-01-02 15:04:05"
	flightLeadTime      = 2 * time.Hour
	flightLength        = 60 * 24 * time.Hour
	defaultFlightBudget = 1000
)

type advertiserRef struct {
	ID string `json:"Id"`
}

type bulkFlight struct {
	BudgetInAdvertiserCurrency ttd.Amount `json:"BudgetInAdvertiserCurrency"`
	StartDateUTC               string     `json:"StartDateUtc"`
	EndDateUTC                 string     `json:"EndDateUtc"`
}

// bulkCampaign is one line of the bulk create upload.
type bulkCampaign struct {
	CampaignName string        `json:"CampaignName"`
	Advertiser   advertiserRef `json:"Advertiser"`
	TimeZoneID   string        `json:"TimeZoneId"`
	PacingMode   string        `json:"PacingMode"`
	Flights      []bulkFlight  `json:"Flights"`
}

// nameSuffix keeps bulk campaign names unique across runs.
var nameSuffix = func() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// BuildCampaignsJSONL renders count campaigns, one JSON object per line with
// no trailing newline. Every campaign gets a single flight that starts two
// hours after the current hour and runs for 60 days.
func BuildCampaignsJSONL(advertiserID string, count int, now time.Time) ([]byte, error) {
	if advertiserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advertiser id is required")
	}
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign count must be positive")
	}

	start := now.UTC().Truncate(time.Hour).Add(flightLeadTime)
	flight := bulkFlight{
		BudgetInAdvertiserCurrency: ttd.AmountFromInt(defaultFlightBudget),
		StartDateUTC:               start.Format(flightDateLayout),
		EndDateUTC:                 start.Add(flightLength).Format(flightDateLayout),
	}

	var buf bytes.Buffer
	for i := 1; i <= count; i++ {
		line, err := json.Marshal(bulkCampaign{
			CampaignName: fmt.Sprintf("Test_CampaignCreate_%d_%s", i, nameSuffix()),
			Advertiser:   advertiserRef{ID: advertiserID},
			TimeZoneID:   "Utc",
			PacingMode:   "PaceEvenly",
			Flights:      []bulkFlight{flight},
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode bulk campaign")
		}
		if i > 1 {
			buf.WriteByte('\n')
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}
