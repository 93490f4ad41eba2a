package campaigns

import (
	"time"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
	"github.com/shopspring/decimal"
)

// restDateLayout is the zone-less format the campaign endpoints accept.
const restDateLayout = "2006-01-02T15:04:05"

// Campaign is the REST v3 campaign resource, reduced to what workflows read.
type Campaign struct {
	CampaignID       string        `json:"CampaignId"`
	CampaignName     string        `json:"CampaignName"`
	AdvertiserID     string        `json:"AdvertiserId"`
	Version          string        `json:"Version"`
	BudgetingVersion string        `json:"BudgetingVersion,omitempty"`
	Budget           *ttd.Money    `json:"Budget,omitempty"`
	StartDate        ttd.Timestamp `json:"StartDate"`
	EndDate          ttd.Timestamp `json:"EndDate"`
	PacingMode       string        `json:"PacingMode,omitempty"`
	Flights          []Flight      `json:"CampaignFlights"`
}

// Flight is one REST campaign flight. A nil end means open-ended.
type Flight struct {
	CampaignFlightID           ttd.Long       `json:"CampaignFlightId"`
	StartDateInclusiveUTC      ttd.Timestamp  `json:"StartDateInclusiveUTC"`
	EndDateExclusiveUTC        *ttd.Timestamp `json:"EndDateExclusiveUTC"`
	BudgetInAdvertiserCurrency *ttd.Amount    `json:"BudgetInAdvertiserCurrency,omitempty"`
}

// ActiveAt reports whether the flight runs at now: it has a start strictly
// before now and has not yet ended.
func (f Flight) ActiveAt(now time.Time) bool {
	if f.StartDateInclusiveUTC.IsZero() || !f.StartDateInclusiveUTC.Before(now) {
		return false
	}
	return f.EndDateExclusiveUTC == nil || f.EndDateExclusiveUTC.IsZero() || f.EndDateExclusiveUTC.After(now)
}

// CurrentFlight returns the first flight active at now.
func (c Campaign) CurrentFlight(now time.Time) (Flight, bool) {
	for _, f := range c.Flights {
		if f.ActiveAt(now) {
			return f, true
		}
	}
	return Flight{}, false
}

// Versions pairs the campaign generation with its budgeting engine.
type Versions struct {
	Version          enums.CampaignVersion `json:"version"`
	BudgetingVersion enums.CampaignVersion `json:"budgeting_version"`
}

// Summary is the GraphQL campaign(id){id name version} projection.
type Summary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// UpgradeDetails is what an upgraded campaign should now report.
type UpgradeDetails struct {
	IsMarketplaceEnabledByDefault bool   `json:"isMarketplaceEnabledByDefault"`
	Version                       string `json:"version"`
	SeedID                        string `json:"seedId,omitempty"`
}

// CreateCampaignInput describes a campaign created over REST.
type CreateCampaignInput struct {
	AdvertiserID   string                `json:"advertiser_id" validate:"required"`
	Name           string                `json:"name" validate:"required"`
	Version        enums.CampaignVersion `json:"version" validate:"required"`
	Budget         decimal.Decimal       `json:"budget" validate:"positive_decimal"`
	CurrencyCode   string                `json:"currency_code" validate:"required,len=3"`
	StartDate      time.Time             `json:"start_date" validate:"required"`
	EndDate        time.Time             `json:"end_date" validate:"required,gtfield=StartDate"`
	PacingMode     string                `json:"pacing_mode" validate:"required"`
	PrimaryChannel string                `json:"primary_channel" validate:"required"`
	SeedID         string                `json:"seed_id"`
}

// CreatedCampaign is the subset of the create response workflows verify.
type CreatedCampaign struct {
	CampaignID string     `json:"CampaignId"`
	Version    string     `json:"Version"`
	Budget     *ttd.Money `json:"Budget"`
}

// CreateAdGroupInput describes an ad group attached to a campaign.
type CreateAdGroupInput struct {
	CampaignID         string          `json:"campaign_id" validate:"required"`
	Name               string          `json:"name" validate:"required"`
	ChannelID          string          `json:"channel_id"`
	IndustryCategoryID int64           `json:"industry_category_id" validate:"gt=0"`
	CategoryID         int64           `json:"category_id" validate:"gt=0"`
	FunnelLocation     string          `json:"funnel_location" validate:"required"`
	BaseBidCPM         decimal.Decimal `json:"base_bid_cpm" validate:"positive_decimal"`
	MaxBidCPM          decimal.Decimal `json:"max_bid_cpm" validate:"positive_decimal"`
	CPAGoal            decimal.Decimal `json:"cpa_goal" validate:"positive_decimal"`
}

// CreatedAdGroup is the subset of the ad group create response.
type CreatedAdGroup struct {
	AdGroupID string `json:"AdGroupId"`
	IsEnabled bool   `json:"IsEnabled"`
}

// DefaultCampaignInput fills the knobs the sample campaign always used.
// The flight starts tomorrow (UTC midnight) and runs for 60 days.
func DefaultCampaignInput(advertiserID, seedID string, budget decimal.Decimal, now time.Time) CreateCampaignInput {
	start := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return CreateCampaignInput{
		AdvertiserID:   advertiserID,
		Name:           "New Kokai API Test Campaign",
		Version:        enums.CampaignVersionKokai,
		Budget:         budget,
		CurrencyCode:   "USD",
		StartDate:      start,
		EndDate:        start.Add(60*24*time.Hour - time.Minute),
		PacingMode:     "PaceAhead",
		PrimaryChannel: "Video",
		SeedID:         seedID,
	}
}

// DefaultAdGroupInput is the "Strategy 1" ad group of the sample workflows.
func DefaultAdGroupInput(campaignID, channelID string) CreateAdGroupInput {
	return CreateAdGroupInput{
		CampaignID:         campaignID,
		Name:               "Strategy 1",
		ChannelID:          channelID,
		IndustryCategoryID: 292,
		CategoryID:         8311,
		FunnelLocation:     "Awareness",
		BaseBidCPM:         decimal.NewFromInt(1),
		MaxBidCPM:          decimal.NewFromInt(5),
		CPAGoal:            decimal.RequireFromString("0.2"),
	}
}

type createCampaignRequest struct {
	AdvertiserID                       string          `json:"AdvertiserId"`
	CampaignName                       string          `json:"CampaignName"`
	Version                            string          `json:"Version"`
	Budget                             ttd.Money       `json:"Budget"`
	StartDate                          string          `json:"StartDate"`
	EndDate                            string          `json:"EndDate"`
	PacingMode                         string          `json:"PacingMode"`
	CampaignConversionReportingColumns []string        `json:"CampaignConversionReportingColumns"`
	PrimaryGoal                        map[string]bool `json:"PrimaryGoal"`
	PrimaryChannel                     string          `json:"PrimaryChannel"`
	IncludeDefaultsFromAdvertiser      bool            `json:"IncludeDefaultsFromAdvertiser"`
	SeedID                             string          `json:"SeedId,omitempty"`
}

type adGroupCategory struct {
	CategoryID int64 `json:"CategoryId"`
}

type crossDeviceVendor struct {
	CrossDeviceVendorID   int64  `json:"CrossDeviceVendorId"`
	CrossDeviceVendorName string `json:"CrossDeviceVendorName"`
}

type rtbAttributes struct {
	ROIGoal struct {
		CPAInAdvertiserCurrency ttd.Money `json:"CPAInAdvertiserCurrency"`
	} `json:"ROIGoal"`
	AudienceTargeting struct {
		CrossDeviceVendorListForAudience []crossDeviceVendor `json:"CrossDeviceVendorListForAudience"`
	} `json:"AudienceTargeting"`
	BaseBidCPM  ttd.Money `json:"BaseBidCPM"`
	MaxBidCPM   ttd.Money `json:"MaxBidCPM"`
	CreativeIDs []string  `json:"CreativeIds"`
}

type createAdGroupRequest struct {
	CampaignID                string          `json:"CampaignId"`
	AdGroupName               string          `json:"AdGroupName"`
	IndustryCategoryID        int64           `json:"IndustryCategoryId"`
	AdGroupCategory           adGroupCategory `json:"AdGroupCategory"`
	IsEnabled                 bool            `json:"IsEnabled"`
	PredictiveClearingEnabled bool            `json:"PredictiveClearingEnabled"`
	FunnelLocation            string          `json:"FunnelLocation"`
	ChannelID                 string          `json:"ChannelId,omitempty"`
	RTBAttributes             rtbAttributes   `json:"RTBAttributes"`
}
