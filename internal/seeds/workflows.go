package seeds

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const WorkflowCreate = "seed-create"

// WorkflowParams carries the knobs of the seed workflow.
type WorkflowParams struct {
	Service      Service
	Logger       *logger.Logger
	Printer      *workflows.Printer
	AdvertiserID string
	Name         string
	// Rename, when set, renames the seed after it became the default.
	Rename string
	// Limit is how many first-party segments the seed starts with.
	Limit int
	// Alternatives, when positive, replaces the starting segments with the
	// ones found after them.
	Alternatives int
}

func NewWorkflows(params WorkflowParams) ([]workflows.Workflow, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("seed service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return []workflows.Workflow{
		workflows.Func{
			WorkflowName: WorkflowCreate,
			Summary:      "create a seed from first-party data and make it the advertiser default",
			Fn:           func(ctx context.Context) error { return runCreate(ctx, params) },
		},
	}, nil
}

func runCreate(ctx context.Context, p WorkflowParams) error {
	ctx = p.Logger.WithAdvertiserID(ctx, p.AdvertiserID)

	segments, err := p.Service.FirstPartyData(ctx, p.AdvertiserID, 0, p.Limit)
	if err != nil {
		return err
	}
	seedID, err := p.Service.Create(ctx, CreateInput{
		AdvertiserID:      p.AdvertiserID,
		Name:              p.Name,
		FirstPartyDataIDs: IDs(segments),
	})
	if err != nil {
		return fmt.Errorf("create seed: %w", err)
	}
	ctx = p.Logger.WithField(ctx, "seed_id", seedID)
	p.Logger.Info(ctx, "seed created")
	p.Printer.Printf("Successfully created the seed with id %s", seedID)

	defaultID, err := p.Service.SetAdvertiserDefault(ctx, p.AdvertiserID, seedID)
	if err != nil {
		return fmt.Errorf("set default seed: %w", err)
	}
	p.Printer.Print("default seed", map[string]string{"id": defaultID})

	update := UpdateInput{SeedID: seedID}
	if p.Alternatives > 0 {
		// Start past the first page so the replacement IDs differ.
		alternates, err := p.Service.FirstPartyData(ctx, p.AdvertiserID, p.Limit+1, p.Alternatives)
		if err != nil {
			return err
		}
		update.FirstPartyDataIDs = IDs(alternates)
	}
	if p.Rename != "" {
		update.Name = &p.Rename
	}
	if !update.Changed() {
		return nil
	}
	if _, err := p.Service.Update(ctx, update); err != nil {
		return fmt.Errorf("update seed: %w", err)
	}
	p.Logger.Info(ctx, "seed updated")
	p.Printer.Print("updated seed", update)
	return nil
}
