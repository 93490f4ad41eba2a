package campaigns

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
	"github.com/angelmondragon/ttd-workflows/pkg/validate"
)

const (
	campaignQuery = `
query GetCampaign($campaignId: ID!) {
  campaign(id: $campaignId) {
    id
    name
    version
  }
}`

	campaignVersionsQuery = `
query Campaign($campaignId: ID!) {
  campaign(id: $campaignId) {
    version
    budgetMigrationStatus {
      currentBudgetingVersion
    }
  }
}`

	upgradeCandidateQuery = `
query GetCampaignUpgradeCandidate($campaignId: ID!) {
  campaign(id: $campaignId) {
    id
    version
  }
}`

	upgradeMutation = `
mutation UpgradeCampaignCandidate($campaignId: String!, $seedId: String) {
  campaignVersionUpgrade(input: {
    campaigns: [
      {
        campaignId: $campaignId
        seedId: $seedId
      }
    ]
  }) {
    data {
      wasUpgraded
    }
    userErrors {
      field
      message
    }
  }
}`

	upgradeDetailsQuery = `
query VerifyUpgradeData($campaignId: ID!) {
  campaign(id: $campaignId) {
    isMarketplaceEnabledByDefault
    version
    seed {
      id
    }
  }
}`
)

// platform is the subset of the platform client campaigns use.
type platform interface {
	REST(ctx context.Context, method, path string, body, out any) error
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error
}

// ServiceParams groups dependencies for the campaign service.
type ServiceParams struct {
	Client platform
	Logger *logger.Logger
}

// Service reads, creates and upgrades campaigns.
type Service interface {
	Get(ctx context.Context, campaignID string) (Campaign, error)
	Summary(ctx context.Context, campaignID string) (Summary, error)
	Create(ctx context.Context, input CreateCampaignInput) (CreatedCampaign, error)
	CreateAdGroup(ctx context.Context, input CreateAdGroupInput) (CreatedAdGroup, error)
	Versions(ctx context.Context, campaignID string) (Versions, error)
	VersionsREST(ctx context.Context, campaignID string) (Versions, error)
	IsEligibleForUpgrade(ctx context.Context, campaignID string) (bool, error)
	UpgradeToKokai(ctx context.Context, campaignID, seedID string) (bool, error)
	UpgradeDetails(ctx context.Context, campaignID string) (UpgradeDetails, error)
}

type service struct {
	client platform
	logg   *logger.Logger
}

// NewService builds a campaign service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform client is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{client: params.Client, logg: logg}, nil
}

func requireID(kind, id string) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, kind+" id is required")
	}
	return nil
}

// Get loads a campaign over REST.
func (s *service) Get(ctx context.Context, campaignID string) (Campaign, error) {
	if err := requireID("campaign", campaignID); err != nil {
		return Campaign{}, err
	}
	var campaign Campaign
	if err := s.client.REST(ctx, http.MethodGet, "campaign/"+url.PathEscape(campaignID), nil, &campaign); err != nil {
		return Campaign{}, err
	}
	return campaign, nil
}

// Summary loads id, name and version over GraphQL.
func (s *service) Summary(ctx context.Context, campaignID string) (Summary, error) {
	if err := requireID("campaign", campaignID); err != nil {
		return Summary{}, err
	}
	var resp struct {
		Campaign *Summary `json:"campaign"`
	}
	if err := s.client.GraphQL(ctx, campaignQuery, map[string]any{"campaignId": campaignID}, &resp); err != nil {
		return Summary{}, err
	}
	if resp.Campaign == nil {
		return Summary{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("campaign %s not found", campaignID))
	}
	return *resp.Campaign, nil
}

// Create posts a new campaign. The response must echo the ID, version and
// budget or the create is treated as failed.
func (s *service) Create(ctx context.Context, input CreateCampaignInput) (CreatedCampaign, error) {
	if err := validate.Struct(input); err != nil {
		return CreatedCampaign{}, err
	}
	body := createCampaignRequest{
		AdvertiserID:                       input.AdvertiserID,
		CampaignName:                       input.Name,
		Version:                            input.Version.REST(),
		Budget:                             ttd.Money{Amount: ttd.NewAmount(input.Budget), CurrencyCode: input.CurrencyCode},
		StartDate:                          input.StartDate.UTC().Format(restDateLayout),
		EndDate:                            input.EndDate.UTC().Format(restDateLayout),
		PacingMode:                         input.PacingMode,
		CampaignConversionReportingColumns: []string{},
		PrimaryGoal:                        map[string]bool{"MaximizeReach": true},
		PrimaryChannel:                     input.PrimaryChannel,
		IncludeDefaultsFromAdvertiser:      true,
		SeedID:                             input.SeedID,
	}

	var created CreatedCampaign
	if err := s.client.REST(ctx, http.MethodPost, "campaign", body, &created); err != nil {
		return CreatedCampaign{}, err
	}
	if created.CampaignID == "" || created.Version == "" || created.Budget == nil {
		return CreatedCampaign{}, pkgerrors.New(pkgerrors.CodeDependency, "campaign create response missing CampaignId, Version or Budget")
	}

	ctx = s.logg.WithCampaignID(ctx, created.CampaignID)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"version": created.Version,
		"budget":  created.Budget.Amount.String(),
	})
	s.logg.Info(ctx, "campaign created")
	return created, nil
}

// CreateAdGroup attaches an enabled ad group to a campaign.
func (s *service) CreateAdGroup(ctx context.Context, input CreateAdGroupInput) (CreatedAdGroup, error) {
	if err := validate.Struct(input); err != nil {
		return CreatedAdGroup{}, err
	}
	body := createAdGroupRequest{
		CampaignID:                input.CampaignID,
		AdGroupName:               input.Name,
		IndustryCategoryID:        input.IndustryCategoryID,
		AdGroupCategory:           adGroupCategory{CategoryID: input.CategoryID},
		IsEnabled:                 true,
		PredictiveClearingEnabled: true,
		FunnelLocation:            input.FunnelLocation,
		ChannelID:                 input.ChannelID,
	}
	body.RTBAttributes.ROIGoal.CPAInAdvertiserCurrency = ttd.USD(ttd.NewAmount(input.CPAGoal))
	body.RTBAttributes.AudienceTargeting.CrossDeviceVendorListForAudience = []crossDeviceVendor{
		{CrossDeviceVendorID: 11, CrossDeviceVendorName: "Identity Alliance"},
	}
	body.RTBAttributes.BaseBidCPM = ttd.USD(ttd.NewAmount(input.BaseBidCPM))
	body.RTBAttributes.MaxBidCPM = ttd.USD(ttd.NewAmount(input.MaxBidCPM))
	body.RTBAttributes.CreativeIDs = []string{}

	var created CreatedAdGroup
	if err := s.client.REST(ctx, http.MethodPost, "adgroup", body, &created); err != nil {
		return CreatedAdGroup{}, err
	}
	if created.AdGroupID == "" {
		return CreatedAdGroup{}, pkgerrors.New(pkgerrors.CodeDependency, "ad group create response missing AdGroupId")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"ad_group_id": created.AdGroupID,
		"is_enabled":  created.IsEnabled,
	}), "ad group created")
	return created, nil
}

// Versions reads the campaign and budgeting versions over GraphQL.
func (s *service) Versions(ctx context.Context, campaignID string) (Versions, error) {
	if err := requireID("campaign", campaignID); err != nil {
		return Versions{}, err
	}
	var resp struct {
		Campaign *struct {
			Version               string `json:"version"`
			BudgetMigrationStatus *struct {
				CurrentBudgetingVersion string `json:"currentBudgetingVersion"`
			} `json:"budgetMigrationStatus"`
		} `json:"campaign"`
	}
	if err := s.client.GraphQL(ctx, campaignVersionsQuery, map[string]any{"campaignId": campaignID}, &resp); err != nil {
		return Versions{}, err
	}
	if resp.Campaign == nil {
		return Versions{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("campaign %s not found", campaignID))
	}
	version, err := enums.ParseCampaignVersion(resp.Campaign.Version)
	if err != nil {
		return Versions{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "campaign version")
	}
	budgeting := enums.CampaignVersionSolimar
	if status := resp.Campaign.BudgetMigrationStatus; status != nil && status.CurrentBudgetingVersion != "" {
		if budgeting, err = enums.ParseCampaignVersion(status.CurrentBudgetingVersion); err != nil {
			return Versions{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "budgeting version")
		}
	}
	return Versions{Version: version, BudgetingVersion: budgeting}, nil
}

// VersionsREST reads the same pair over REST. Campaigns that never moved
// budgets omit BudgetingVersion, which means Solimar.
func (s *service) VersionsREST(ctx context.Context, campaignID string) (Versions, error) {
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return Versions{}, err
	}
	version, err := enums.ParseCampaignVersion(campaign.Version)
	if err != nil {
		return Versions{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "campaign version")
	}
	budgeting := enums.CampaignVersionSolimar
	if campaign.BudgetingVersion != "" {
		if budgeting, err = enums.ParseCampaignVersion(campaign.BudgetingVersion); err != nil {
			return Versions{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "budgeting version")
		}
	}
	return Versions{Version: version, BudgetingVersion: budgeting}, nil
}

// IsEligibleForUpgrade reports whether the campaign is not yet on Kokai.
func (s *service) IsEligibleForUpgrade(ctx context.Context, campaignID string) (bool, error) {
	if err := requireID("campaign", campaignID); err != nil {
		return false, err
	}
	var resp struct {
		Campaign *struct {
			ID      string `json:"id"`
			Version string `json:"version"`
		} `json:"campaign"`
	}
	if err := s.client.GraphQL(ctx, upgradeCandidateQuery, map[string]any{"campaignId": campaignID}, &resp); err != nil {
		return false, err
	}
	if resp.Campaign == nil {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("campaign %s not found", campaignID))
	}
	return resp.Campaign.Version != string(enums.CampaignVersionKokai), nil
}

// UpgradeToKokai moves the campaign to Kokai. seedID is sent only when set.
func (s *service) UpgradeToKokai(ctx context.Context, campaignID, seedID string) (bool, error) {
	if err := requireID("campaign", campaignID); err != nil {
		return false, err
	}
	variables := map[string]any{"campaignId": campaignID}
	if seedID != "" {
		variables["seedId"] = seedID
	}
	var resp struct {
		CampaignVersionUpgrade struct {
			Data []struct {
				WasUpgraded bool `json:"wasUpgraded"`
			} `json:"data"`
			UserErrors []ttd.UserError `json:"userErrors"`
		} `json:"campaignVersionUpgrade"`
	}
	if err := s.client.GraphQL(ctx, upgradeMutation, variables, &resp); err != nil {
		return false, err
	}
	payload := resp.CampaignVersionUpgrade
	if err := ttd.CheckUserErrors("campaignVersionUpgrade", payload.UserErrors); err != nil {
		return false, err
	}
	return len(payload.Data) > 0 && payload.Data[0].WasUpgraded, nil
}

// UpgradeDetails reads the fields an upgrade is expected to change.
func (s *service) UpgradeDetails(ctx context.Context, campaignID string) (UpgradeDetails, error) {
	if err := requireID("campaign", campaignID); err != nil {
		return UpgradeDetails{}, err
	}
	var resp struct {
		Campaign *struct {
			IsMarketplaceEnabledByDefault bool   `json:"isMarketplaceEnabledByDefault"`
			Version                       string `json:"version"`
			Seed                          *struct {
				ID string `json:"id"`
			} `json:"seed"`
		} `json:"campaign"`
	}
	if err := s.client.GraphQL(ctx, upgradeDetailsQuery, map[string]any{"campaignId": campaignID}, &resp); err != nil {
		return UpgradeDetails{}, err
	}
	if resp.Campaign == nil {
		return UpgradeDetails{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("campaign %s not found", campaignID))
	}
	details := UpgradeDetails{
		IsMarketplaceEnabledByDefault: resp.Campaign.IsMarketplaceEnabledByDefault,
		Version:                       resp.Campaign.Version,
	}
	if resp.Campaign.Seed != nil {
		details.SeedID = resp.Campaign.Seed.ID
	}
	return details, nil
}
