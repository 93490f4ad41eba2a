package campaigns

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	WorkflowGetREST       = "campaign-get-rest"
	WorkflowGetGraphQL    = "campaign-get-graphql"
	WorkflowCreateREST    = "campaign-create-rest"
	WorkflowCreateGraphQL = "campaign-create-graphql"
	WorkflowUpgradeKokai  = "campaign-upgrade-kokai"
)

// WorkflowParams carries the IDs and knobs the campaign workflows act on.
type WorkflowParams struct {
	Service      Service
	Logger       *logger.Logger
	Printer      *workflows.Printer
	AdvertiserID string
	CampaignID   string
	SeedID       string
	Budget       decimal.Decimal
	Now          func() time.Time
}

// NewWorkflows returns the campaign workflows in display order.
func NewWorkflows(params WorkflowParams) ([]workflows.Workflow, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("campaign service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return []workflows.Workflow{
		&getWorkflow{params: params},
		&getWorkflow{params: params, graphql: true},
		&createWorkflow{params: params},
		&createWorkflow{params: params, graphql: true},
		&upgradeWorkflow{params: params},
	}, nil
}

type getWorkflow struct {
	params  WorkflowParams
	graphql bool
}

func (w *getWorkflow) Name() string {
	if w.graphql {
		return WorkflowGetGraphQL
	}
	return WorkflowGetREST
}

func (w *getWorkflow) Description() string {
	if w.graphql {
		return "query a campaign's id, name and version over GraphQL"
	}
	return "fetch a campaign over REST"
}

func (w *getWorkflow) Run(ctx context.Context) error {
	ctx = w.params.Logger.WithCampaignID(ctx, w.params.CampaignID)
	if w.graphql {
		summary, err := w.params.Service.Summary(ctx, w.params.CampaignID)
		if err != nil {
			return err
		}
		w.params.Printer.Print("campaign", summary)
		return nil
	}
	campaign, err := w.params.Service.Get(ctx, w.params.CampaignID)
	if err != nil {
		return err
	}
	w.params.Printer.Print("campaign", campaign)
	return nil
}

// createWorkflow creates a Kokai campaign with one ad group, then reads back
// its versions over REST or GraphQL.
type createWorkflow struct {
	params  WorkflowParams
	graphql bool
}

func (w *createWorkflow) Name() string {
	if w.graphql {
		return WorkflowCreateGraphQL
	}
	return WorkflowCreateREST
}

func (w *createWorkflow) Description() string {
	return "create a Kokai campaign and ad group, then verify its versions"
}

func (w *createWorkflow) Run(ctx context.Context) error {
	p := w.params
	ctx = p.Logger.WithAdvertiserID(ctx, p.AdvertiserID)

	created, err := p.Service.Create(ctx, DefaultCampaignInput(p.AdvertiserID, p.SeedID, p.Budget, p.Now()))
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	p.Printer.Print("created campaign", created)

	channel := ""
	if w.graphql {
		channel = "Video"
	}
	adGroup, err := p.Service.CreateAdGroup(ctx, DefaultAdGroupInput(created.CampaignID, channel))
	if err != nil {
		return fmt.Errorf("create ad group: %w", err)
	}
	p.Printer.Print("created ad group", adGroup)

	var versions Versions
	if w.graphql {
		versions, err = p.Service.Versions(ctx, created.CampaignID)
	} else {
		versions, err = p.Service.VersionsREST(ctx, created.CampaignID)
	}
	if err != nil {
		return fmt.Errorf("read campaign versions: %w", err)
	}
	p.Printer.Print("campaign versions", versions)
	return nil
}

type upgradeWorkflow struct {
	params WorkflowParams
}

func (w *upgradeWorkflow) Name() string { return WorkflowUpgradeKokai }

func (w *upgradeWorkflow) Description() string {
	return "upgrade a Solimar campaign to Kokai and print the upgraded fields"
}

func (w *upgradeWorkflow) Run(ctx context.Context) error {
	p := w.params
	ctx = p.Logger.WithCampaignID(ctx, p.CampaignID)

	eligible, err := p.Service.IsEligibleForUpgrade(ctx, p.CampaignID)
	if err != nil {
		return err
	}
	if !eligible {
		p.Logger.Info(ctx, "campaign is not eligible for upgrade to kokai")
		return nil
	}

	upgraded, err := p.Service.UpgradeToKokai(ctx, p.CampaignID, p.SeedID)
	if err != nil {
		return err
	}
	if !upgraded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("campaign %s was not upgraded", p.CampaignID))
	}
	p.Logger.Info(ctx, "campaign upgraded to kokai")

	details, err := p.Service.UpgradeDetails(ctx, p.CampaignID)
	if err != nil {
		return err
	}
	p.Printer.Print("upgraded campaign", details)
	return nil
}
