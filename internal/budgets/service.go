package budgets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ttd-workflows/internal/campaigns"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/pagination"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

// adGroupPageSize is large enough that one page holds every ad group of a
// campaign.
const adGroupPageSize = 10000

const (
	budgetSettingsQuery = `
query Campaign($campaignId: ID!) {
  campaign(id: $campaignId) {
    budget {
      total
    }
    pacingMode
    timeZone
    budgetInImpressions
    flights {
      totalCount
      edges {
        cursor
        node {
          budgetInAdvertiserCurrency
          budgetInImpressions
          dailyTargetInAdvertiserCurrency
          dailyTargetInImpressions
          id
          isCurrent
          startDateInclusiveUTC
          adGroupFlights {
            totalCount
            edges {
              cursor
              node {
                adGroupId
                budgetInAdvertiserCurrency
                budgetInImpressions
                minimumSpendInAdvertiserCurrency
              }
            }
          }
        }
      }
    }
  }
}`

	migrationStatusQuery = `
query GetCampaignBudgetMigrationStatus($campaignId: ID!) {
  campaign(id: $campaignId) {
    id
    budgetMigrationStatus(targetBudgetingVersion: KOKAI) {
      migrationData {
        campaignFlights {
          adGroupFlights {
            adGroupId
            budgetInImpressions
            campaignFlightId
            dailyTargetInAdvertiserCurrency
            dailyTargetInImpressions
            minimumSpendInAdvertiserCurrency
          }
          originalCampaignFlight {
            id
          }
        }
      }
    }
  }
}`

	// %s is the campaignFlights input list.
	upgradeMutationTemplate = `
mutation UpgradeCampaignBudgetToKokai($campaignId: ID!) {
  campaignBudgetSettingsUpdate(
    input: {
      campaignId: $campaignId
      budgetingVersion: KOKAI
      campaignFlights: %s
    }
  ) {
    data {
      campaign {
        pacingMode
        flights {
          edges {
            node {
              budgetInAdvertiserCurrency
              dailyTargetInAdvertiserCurrency
              startDateInclusiveUTC
              endDateExclusiveUTC
              id
              adGroupFlights {
                edges {
                  node {
                    adGroupId
                    dailyTargetInAdvertiserCurrency
                    minimumSpendInAdvertiserCurrency
                  }
                }
              }
            }
          }
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}`

	kokaiBudgetMutation = `
mutation UpdateKokaiBudgetSettings($campaignId: ID!, $currentFlightId: Long!, $budget: Decimal!) {
  campaignBudgetSettingsUpdate(
    input: {
      campaignId: $campaignId
      campaignFlights: [
        {
          campaignFlightId: $currentFlightId
          budgetInAdvertiserCurrency: $budget
        }
      ]
    }
  ) {
    data {
      wasBudgetUpdated
    }
    userErrors {
      field
      message
    }
  }
}`
)

type platform interface {
	REST(ctx context.Context, method, path string, body, out any) error
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error
}

// ServiceParams groups dependencies for the budget service.
type ServiceParams struct {
	Client    platform
	Campaigns campaigns.Service
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service reads and changes campaign budgets.
type Service interface {
	Get(ctx context.Context, campaignID string) (Settings, error)
	MigrationData(ctx context.Context, campaignID string) ([]MigrationFlight, error)
	UpgradeToKokai(ctx context.Context, campaignID string, flights []MigrationFlight) (UpgradeResult, error)
	Metadata(ctx context.Context, campaignID string) (Metadata, error)
	UpdateSolimar(ctx context.Context, meta Metadata, budget decimal.Decimal) error
	UpdateKokai(ctx context.Context, meta Metadata, budget decimal.Decimal) (bool, error)
	Update(ctx context.Context, campaignID string, budget decimal.Decimal) (Metadata, error)
}

type service struct {
	client    platform
	campaigns campaigns.Service
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform client is required")
	}
	if params.Campaigns == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign service is required")
	}
	svc := &service{
		client:    params.Client,
		campaigns: params.Campaigns,
		logg:      params.Logger,
		now:       params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Get loads the budget settings with every flight and ad group flight.
func (s *service) Get(ctx context.Context, campaignID string) (Settings, error) {
	if campaignID == "" {
		return Settings{}, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	var resp struct {
		Campaign *campaignBudgetNode `json:"campaign"`
	}
	if err := s.client.GraphQL(ctx, budgetSettingsQuery, map[string]any{"campaignId": campaignID}, &resp); err != nil {
		return Settings{}, err
	}
	if resp.Campaign == nil {
		return Settings{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("campaign %s not found", campaignID))
	}
	return resp.Campaign.settings(), nil
}

// MigrationData returns the ad group flights Kokai budgeting proposes for
// each existing campaign flight.
func (s *service) MigrationData(ctx context.Context, campaignID string) ([]MigrationFlight, error) {
	if campaignID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	var resp struct {
		Campaign *struct {
			ID                    string `json:"id"`
			BudgetMigrationStatus *struct {
				MigrationData *struct {
					CampaignFlights []migrationCampaignFlight `json:"campaignFlights"`
				} `json:"migrationData"`
			} `json:"budgetMigrationStatus"`
		} `json:"campaign"`
	}
	if err := s.client.GraphQL(ctx, migrationStatusQuery, map[string]any{"campaignId": campaignID}, &resp); err != nil {
		return nil, err
	}
	c := resp.Campaign
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("campaign %s not found", campaignID))
	}
	if c.BudgetMigrationStatus == nil || c.BudgetMigrationStatus.MigrationData == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "budget migration status returned no migration data")
	}

	flights := make([]MigrationFlight, 0, len(c.BudgetMigrationStatus.MigrationData.CampaignFlights))
	for i, f := range c.BudgetMigrationStatus.MigrationData.CampaignFlights {
		if f.OriginalCampaignFlight == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("migration flight %d has no original campaign flight", i))
		}
		flights = append(flights, MigrationFlight{
			CampaignFlightID: f.OriginalCampaignFlight.ID,
			AdGroupFlights:   f.AdGroupFlights,
		})
	}
	return flights, nil
}

// UpgradeToKokai moves the campaign budget to Kokai using the migration
// data. Ad group flight fields without a value are omitted.
func (s *service) UpgradeToKokai(ctx context.Context, campaignID string, flights []MigrationFlight) (UpgradeResult, error) {
	if campaignID == "" {
		return UpgradeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	input := make([]map[string]any, 0, len(flights))
	for _, f := range flights {
		adGroups := make([]map[string]any, 0, len(f.AdGroupFlights))
		for _, ag := range f.AdGroupFlights {
			adGroups = append(adGroups, ag.literal())
		}
		input = append(input, map[string]any{
			"campaignFlightId": f.CampaignFlightID,
			"adGroupFlights":   adGroups,
		})
	}
	literal, err := ttd.InputLiteral(input)
	if err != nil {
		return UpgradeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render campaign flights")
	}

	var resp struct {
		CampaignBudgetSettingsUpdate struct {
			Data *struct {
				Campaign *struct {
					PacingMode string             `json:"pacingMode"`
					Flights    *edges[flightNode] `json:"flights"`
				} `json:"campaign"`
			} `json:"data"`
			UserErrors []ttd.UserError `json:"userErrors"`
		} `json:"campaignBudgetSettingsUpdate"`
	}
	mutation := fmt.Sprintf(upgradeMutationTemplate, literal)
	if err := s.client.GraphQL(ctx, mutation, map[string]any{"campaignId": campaignID}, &resp); err != nil {
		return UpgradeResult{}, err
	}
	payload := resp.CampaignBudgetSettingsUpdate
	if err := ttd.CheckUserErrors("campaignBudgetSettingsUpdate", payload.UserErrors); err != nil {
		return UpgradeResult{}, err
	}
	if payload.Data == nil || payload.Data.Campaign == nil {
		return UpgradeResult{}, pkgerrors.New(pkgerrors.CodeDependency, "campaignBudgetSettingsUpdate returned no campaign")
	}

	out := UpgradeResult{PacingMode: payload.Data.Campaign.PacingMode}
	for _, f := range payload.Data.Campaign.Flights.nodes() {
		out.Flights = append(out.Flights, f.flatten())
	}
	return out, nil
}

// Metadata reads the budgeting version and the flight running now. A
// campaign without a running flight cannot take a budget update.
func (s *service) Metadata(ctx context.Context, campaignID string) (Metadata, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return Metadata{}, err
	}
	meta := Metadata{CampaignID: campaignID, BudgetingVersion: enums.CampaignVersionSolimar}
	if v, err := enums.ParseCampaignVersion(campaign.BudgetingVersion); err == nil {
		meta.BudgetingVersion = v
	}

	flight, ok := campaign.CurrentFlight(s.now())
	if !ok {
		return meta, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("campaign %s has no flight running now", campaignID))
	}
	meta.CurrentFlight = flight
	return meta, nil
}

// UpdateSolimar sets the flight budget, then gives every ad group of the
// campaign the same flight budget. Ad group failures do not stop the loop;
// they are returned together once every ad group was tried.
func (s *service) UpdateSolimar(ctx context.Context, meta Metadata, budget decimal.Decimal) error {
	ctx = s.logg.WithCampaignID(ctx, meta.CampaignID)
	flight := campaignFlightUpdate{
		CampaignFlightID:           meta.CurrentFlight.CampaignFlightID,
		BudgetInAdvertiserCurrency: ttd.NewAmount(budget),
	}
	if err := s.client.REST(ctx, http.MethodPut, "campaignflight", flight, nil); err != nil {
		return fmt.Errorf("update campaign flight %s: %w", flight.CampaignFlightID, err)
	}
	s.logg.Info(s.logg.WithField(ctx, "campaign_flight_id", flight.CampaignFlightID), "campaign flight budget updated")

	var page pagination.OffsetPage[adGroupRef]
	query := adGroupQueryRequest{CampaignID: meta.CampaignID, PageSize: adGroupPageSize}
	if err := s.client.REST(ctx, http.MethodPost, "adgroup/query/campaign", query, &page); err != nil {
		return fmt.Errorf("list ad groups: %w", err)
	}

	var (
		errs   error
		failed []string
	)
	for _, ref := range page.Result {
		update := adGroupBudgetUpdate{AdGroupID: ref.AdGroupID}
		update.RTBAttributes.BudgetSettings.AdGroupFlights = []campaignFlightUpdate{flight}
		if err := s.client.REST(ctx, http.MethodPut, "adgroup", update, nil); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"ad_group_id": ref.AdGroupID, "error": err.Error()}), "ad group budget update failed")
			errs = multierr.Append(errs, fmt.Errorf("ad group %s: %w", ref.AdGroupID, err))
			failed = append(failed, ref.AdGroupID)
			continue
		}
		s.logg.Info(s.logg.WithField(ctx, "ad_group_id", ref.AdGroupID), "ad group budget updated")
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs,
			fmt.Sprintf("%d of %d ad group budgets failed", len(failed), len(page.Result))).
			WithDetails(map[string]any{"ad_group_ids": failed})
	}
	return nil
}

// UpdateKokai sets the current flight budget; Kokai spreads it over the ad
// groups itself.
func (s *service) UpdateKokai(ctx context.Context, meta Metadata, budget decimal.Decimal) (bool, error) {
	vars := map[string]any{
		"campaignId":      meta.CampaignID,
		"currentFlightId": meta.CurrentFlight.CampaignFlightID,
		"budget":          ttd.NewAmount(budget),
	}
	var resp struct {
		CampaignBudgetSettingsUpdate struct {
			Data *struct {
				WasBudgetUpdated bool `json:"wasBudgetUpdated"`
			} `json:"data"`
			UserErrors []ttd.UserError `json:"userErrors"`
		} `json:"campaignBudgetSettingsUpdate"`
	}
	if err := s.client.GraphQL(ctx, kokaiBudgetMutation, vars, &resp); err != nil {
		return false, err
	}
	payload := resp.CampaignBudgetSettingsUpdate
	if err := ttd.CheckUserErrors("campaignBudgetSettingsUpdate", payload.UserErrors); err != nil {
		return false, err
	}
	return payload.Data != nil && payload.Data.WasBudgetUpdated, nil
}

// Update applies budget to the current flight through whichever engine the
// campaign budgets on.
func (s *service) Update(ctx context.Context, campaignID string, budget decimal.Decimal) (Metadata, error) {
	if !budget.IsPositive() {
		return Metadata{}, pkgerrors.New(pkgerrors.CodeValidation, "budget must be positive")
	}
	meta, err := s.Metadata(ctx, campaignID)
	if err != nil {
		return meta, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"campaign_id":       campaignID,
		"budgeting_version": meta.BudgetingVersion,
	})

	if !meta.IsKokai() {
		return meta, s.UpdateSolimar(ctx, meta, budget)
	}
	updated, err := s.UpdateKokai(ctx, meta, budget)
	if err != nil {
		return meta, err
	}
	if !updated {
		return meta, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("campaign %s budget was not updated", campaignID))
	}
	s.logg.Info(ctx, "kokai campaign budget updated")
	return meta, nil
}
