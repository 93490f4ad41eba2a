package budgets

import (
	"github.com/angelmondragon/ttd-workflows/internal/campaigns"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

// edges is a GraphQL connection read through edges{cursor node}.
type edges[T any] struct {
	TotalCount int `json:"totalCount"`
	Edges      []struct {
		Cursor string `json:"cursor"`
		Node   T      `json:"node"`
	} `json:"edges"`
}

func (e *edges[T]) nodes() []T {
	if e == nil {
		return nil
	}
	out := make([]T, 0, len(e.Edges))
	for _, edge := range e.Edges {
		out = append(out, edge.Node)
	}
	return out
}

// Settings is the budget configuration of a campaign.
type Settings struct {
	Total               *ttd.Amount    `json:"total"`
	PacingMode          string         `json:"pacingMode"`
	TimeZone            string         `json:"timeZone"`
	BudgetInImpressions *ttd.Long      `json:"budgetInImpressions"`
	Flights             []FlightBudget `json:"flights"`
}

// FlightBudget is one campaign flight and the ad group budgets inside it.
type FlightBudget struct {
	ID                              ttd.Long        `json:"id"`
	IsCurrent                       bool            `json:"isCurrent"`
	StartDateInclusiveUTC           ttd.Timestamp   `json:"startDateInclusiveUTC"`
	EndDateExclusiveUTC             *ttd.Timestamp  `json:"endDateExclusiveUTC,omitempty"`
	BudgetInAdvertiserCurrency      *ttd.Amount     `json:"budgetInAdvertiserCurrency"`
	BudgetInImpressions             *ttd.Long       `json:"budgetInImpressions"`
	DailyTargetInAdvertiserCurrency *ttd.Amount     `json:"dailyTargetInAdvertiserCurrency"`
	DailyTargetInImpressions        *ttd.Long       `json:"dailyTargetInImpressions"`
	AdGroupFlights                  []AdGroupBudget `json:"adGroupFlights"`
}

// AdGroupBudget is an ad group's share of a flight.
type AdGroupBudget struct {
	AdGroupID                        string      `json:"adGroupId"`
	BudgetInAdvertiserCurrency       *ttd.Amount `json:"budgetInAdvertiserCurrency"`
	BudgetInImpressions              *ttd.Long   `json:"budgetInImpressions"`
	DailyTargetInAdvertiserCurrency  *ttd.Amount `json:"dailyTargetInAdvertiserCurrency,omitempty"`
	MinimumSpendInAdvertiserCurrency *ttd.Amount `json:"minimumSpendInAdvertiserCurrency"`
}

type flightNode struct {
	FlightBudget
	AdGroupFlights *edges[AdGroupBudget] `json:"adGroupFlights"`
}

func (n flightNode) flatten() FlightBudget {
	out := n.FlightBudget
	out.AdGroupFlights = n.AdGroupFlights.nodes()
	return out
}

type campaignBudgetNode struct {
	Budget *struct {
		Total *ttd.Amount `json:"total"`
	} `json:"budget"`
	PacingMode          string             `json:"pacingMode"`
	TimeZone            string             `json:"timeZone"`
	BudgetInImpressions *ttd.Long          `json:"budgetInImpressions"`
	Flights             *edges[flightNode] `json:"flights"`
}

func (n campaignBudgetNode) settings() Settings {
	out := Settings{
		PacingMode:          n.PacingMode,
		TimeZone:            n.TimeZone,
		BudgetInImpressions: n.BudgetInImpressions,
	}
	if n.Budget != nil {
		out.Total = n.Budget.Total
	}
	for _, f := range n.Flights.nodes() {
		out.Flights = append(out.Flights, f.flatten())
	}
	return out
}

// MigrationFlight maps an existing campaign flight to the ad group flights
// Kokai budgeting would create for it.
type MigrationFlight struct {
	CampaignFlightID ttd.Long                 `json:"campaignFlightId"`
	AdGroupFlights   []AdGroupFlightMigration `json:"adGroupFlights"`
}

// AdGroupFlightMigration holds the proposed Kokai values for one ad group.
// Nil fields have no proposal and are left out of the upgrade.
type AdGroupFlightMigration struct {
	AdGroupID                        string      `json:"adGroupId"`
	BudgetInImpressions              *ttd.Long   `json:"budgetInImpressions"`
	CampaignFlightID                 *ttd.Long   `json:"campaignFlightId"`
	DailyTargetInAdvertiserCurrency  *ttd.Amount `json:"dailyTargetInAdvertiserCurrency"`
	DailyTargetInImpressions         *ttd.Long   `json:"dailyTargetInImpressions"`
	MinimumSpendInAdvertiserCurrency *ttd.Amount `json:"minimumSpendInAdvertiserCurrency"`
}

func (m AdGroupFlightMigration) literal() map[string]any {
	return map[string]any{
		"adGroupId":                        m.AdGroupID,
		"budgetInImpressions":              m.BudgetInImpressions,
		"campaignFlightId":                 m.CampaignFlightID,
		"dailyTargetInAdvertiserCurrency":  m.DailyTargetInAdvertiserCurrency,
		"dailyTargetInImpressions":         m.DailyTargetInImpressions,
		"minimumSpendInAdvertiserCurrency": m.MinimumSpendInAdvertiserCurrency,
	}
}

type migrationCampaignFlight struct {
	AdGroupFlights         []AdGroupFlightMigration `json:"adGroupFlights"`
	OriginalCampaignFlight *struct {
		ID ttd.Long `json:"id"`
	} `json:"originalCampaignFlight"`
}

// UpgradeResult is the campaign budget after moving it to Kokai.
type UpgradeResult struct {
	PacingMode string         `json:"pacingMode"`
	Flights    []FlightBudget `json:"flights"`
}

// Metadata is what a budget update needs to know about a campaign.
type Metadata struct {
	CampaignID       string                `json:"campaignId"`
	BudgetingVersion enums.CampaignVersion `json:"budgetingVersion"`
	CurrentFlight    campaigns.Flight      `json:"currentFlight"`
}

// IsKokai reports whether the campaign budgets on Kokai.
func (m Metadata) IsKokai() bool {
	return m.BudgetingVersion == enums.CampaignVersionKokai
}

type campaignFlightUpdate struct {
	CampaignFlightID           ttd.Long   `json:"CampaignFlightId"`
	BudgetInAdvertiserCurrency ttd.Amount `json:"BudgetInAdvertiserCurrency"`
}

type adGroupQueryRequest struct {
	CampaignID     string `json:"CampaignId"`
	PageSize       int    `json:"PageSize"`
	PageStartIndex int    `json:"PageStartIndex"`
}

type adGroupRef struct {
	AdGroupID string `json:"AdGroupId"`
}

type adGroupBudgetUpdate struct {
	AdGroupID     string `json:"AdGroupId"`
	RTBAttributes struct {
		BudgetSettings struct {
			AdGroupFlights []campaignFlightUpdate `json:"AdGroupFlights"`
		} `json:"BudgetSettings"`
	} `json:"RTBAttributes"`
}
