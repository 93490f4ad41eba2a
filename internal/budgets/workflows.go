package budgets

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ttd-workflows/internal/campaigns"
	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const (
	WorkflowGet               = "budget-get"
	WorkflowUpgradeKokai      = "budget-upgrade-kokai"
	WorkflowUpdate            = "budget-update"
	WorkflowCreateKokaiBudget = "campaign-create-kokai-budget"
)

// WorkflowParams carries the IDs and knobs the budget workflows act on.
type WorkflowParams struct {
	Service      Service
	Campaigns    campaigns.Service
	Logger       *logger.Logger
	Printer      *workflows.Printer
	AdvertiserID string
	CampaignID   string
	SeedID       string
	Budget       decimal.Decimal
	Now          func() time.Time
}

func NewWorkflows(params WorkflowParams) ([]workflows.Workflow, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("budget service required")
	}
	if params.Campaigns == nil {
		return nil, fmt.Errorf("campaign service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return []workflows.Workflow{
		workflows.Func{
			WorkflowName: WorkflowGet,
			Summary:      "print a campaign's budget settings with flights and ad group flights",
			Fn:           func(ctx context.Context) error { return runGet(ctx, params) },
		},
		workflows.Func{
			WorkflowName: WorkflowUpgradeKokai,
			Summary:      "move a campaign's budget settings to Kokai using its migration data",
			Fn:           func(ctx context.Context) error { return runUpgrade(ctx, params, params.CampaignID) },
		},
		workflows.Func{
			WorkflowName: WorkflowUpdate,
			Summary:      "set the budget of the campaign's current flight on Kokai or Solimar",
			Fn:           func(ctx context.Context) error { return runUpdate(ctx, params) },
		},
		workflows.Func{
			WorkflowName: WorkflowCreateKokaiBudget,
			Summary:      "create a Kokai campaign and ad group, then move its budget to Kokai",
			Fn:           func(ctx context.Context) error { return runCreateKokaiBudget(ctx, params) },
		},
	}, nil
}

func runGet(ctx context.Context, p WorkflowParams) error {
	ctx = p.Logger.WithCampaignID(ctx, p.CampaignID)
	settings, err := p.Service.Get(ctx, p.CampaignID)
	if err != nil {
		return err
	}
	p.Printer.Print("budget settings", settings)
	return nil
}

func runUpgrade(ctx context.Context, p WorkflowParams, campaignID string) error {
	ctx = p.Logger.WithCampaignID(ctx, campaignID)
	flights, err := p.Service.MigrationData(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("read budget migration data: %w", err)
	}
	for _, f := range flights {
		p.Logger.Info(p.Logger.WithFields(ctx, map[string]any{
			"campaign_flight_id": f.CampaignFlightID,
			"ad_group_flights":   len(f.AdGroupFlights),
		}), "budget migration data loaded")
	}
	p.Printer.Print("migration data", flights)

	result, err := p.Service.UpgradeToKokai(ctx, campaignID, flights)
	if err != nil {
		return fmt.Errorf("upgrade budget to kokai: %w", err)
	}
	p.Logger.Info(ctx, "campaign budget settings upgraded to kokai")
	p.Printer.Print("upgraded budget", result)
	return nil
}

func runUpdate(ctx context.Context, p WorkflowParams) error {
	ctx = p.Logger.WithCampaignID(ctx, p.CampaignID)
	meta, err := p.Service.Update(ctx, p.CampaignID, p.Budget)
	if err != nil {
		return err
	}
	p.Printer.Print("budget updated", map[string]any{
		"campaign_id":        meta.CampaignID,
		"budgeting_version":  meta.BudgetingVersion,
		"campaign_flight_id": meta.CurrentFlight.CampaignFlightID,
		"budget":             p.Budget.String(),
	})
	return nil
}

func runCreateKokaiBudget(ctx context.Context, p WorkflowParams) error {
	ctx = p.Logger.WithAdvertiserID(ctx, p.AdvertiserID)
	created, err := p.Campaigns.Create(ctx, campaigns.DefaultCampaignInput(p.AdvertiserID, p.SeedID, p.Budget, p.Now()))
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	p.Printer.Print("created campaign", created)

	adGroup, err := p.Campaigns.CreateAdGroup(ctx, campaigns.DefaultAdGroupInput(created.CampaignID, ""))
	if err != nil {
		return fmt.Errorf("create ad group: %w", err)
	}
	p.Printer.Print("created ad group", adGroup)

	if err := runUpgrade(ctx, p, created.CampaignID); err != nil {
		return err
	}

	versions, err := p.Campaigns.VersionsREST(ctx, created.CampaignID)
	if err != nil {
		return fmt.Errorf("read campaign versions: %w", err)
	}
	p.Printer.Print("campaign versions", versions)
	return nil
}
