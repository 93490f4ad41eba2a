package delta

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const (
	WorkflowAdGroupBudgets = "delta-adgroup-budgets"
	WorkflowAdvertisers    = "delta-advertisers"
	WorkflowCreatives      = "delta-creatives"
	WorkflowTrackingTags   = "delta-tracking-tags"
)

// WorkflowNameFor maps an entity kind to its sync workflow.
func WorkflowNameFor(kind enums.DeltaKind) (string, bool) {
	switch kind {
	case enums.DeltaKindAdvertisers:
		return WorkflowAdvertisers, true
	case enums.DeltaKindCreatives:
		return WorkflowCreatives, true
	case enums.DeltaKindTrackingTags:
		return WorkflowTrackingTags, true
	case enums.DeltaKindAdGroups:
		return WorkflowAdGroupBudgets, true
	default:
		return "", false
	}
}

// WorkflowParams configures the delta workflows.
type WorkflowParams struct {
	Syncer       *Syncer
	Logger       *logger.Logger
	Printer      *workflows.Printer
	PartnerID    string
	AdvertiserID string
}

// NewWorkflows returns the ad group budget delta and the three entity syncs.
func NewWorkflows(params WorkflowParams) ([]workflows.Workflow, error) {
	if params.Syncer == nil {
		return nil, fmt.Errorf("delta syncer required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return []workflows.Workflow{
		&adGroupBudgetsWorkflow{params: params},
		&entityWorkflow{params: params, name: WorkflowAdvertisers, kind: enums.DeltaKindAdvertisers},
		&entityWorkflow{params: params, name: WorkflowCreatives, kind: enums.DeltaKindCreatives},
		&entityWorkflow{params: params, name: WorkflowTrackingTags, kind: enums.DeltaKindTrackingTags},
	}, nil
}

type adGroupBudgetsWorkflow struct {
	params WorkflowParams
}

func (w *adGroupBudgetsWorkflow) Name() string { return WorkflowAdGroupBudgets }

func (w *adGroupBudgetsWorkflow) Description() string {
	return "list changed ad groups and split their budgets by Kokai and Solimar campaigns"
}

func (w *adGroupBudgetsWorkflow) Run(ctx context.Context) error {
	p := w.params
	result, err := p.Syncer.SyncAdGroupBudgets(ctx, p.AdvertiserID)
	if err != nil {
		return err
	}
	p.Printer.Print("Kokai ad group budgets", result.Budgets.Kokai)
	p.Printer.Print("Solimar ad group budgets", result.Budgets.Solimar)
	p.Printer.Printf("Next change tracking version: %d", result.NextVersion)
	return nil
}

type entityWorkflow struct {
	params WorkflowParams
	name   string
	kind   enums.DeltaKind
}

func (w *entityWorkflow) Name() string { return w.name }

func (w *entityWorkflow) Description() string {
	return fmt.Sprintf("sync %s changed since the last checkpoint", w.kind)
}

func (w *entityWorkflow) Run(ctx context.Context) error {
	p := w.params
	result, err := p.Syncer.SyncEntities(ctx, w.kind, p.PartnerID)
	if err != nil {
		return err
	}
	p.Printer.Printf("Next minimum change tracking version: %d", result.NextVersion)
	p.Printer.Printf("Changed %s count: %d", w.kind, len(result.Changes))
	return nil
}
