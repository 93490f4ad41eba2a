package cloning

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const (
	WorkflowCloneREST    = "campaign-clone-rest"
	WorkflowCloneGraphQL = "campaign-clone-graphql"
)

// WorkflowParams carries the source campaign and clone names.
type WorkflowParams struct {
	Service        Service
	Logger         *logger.Logger
	Printer        *workflows.Printer
	CampaignID     string
	CloneNames     []string
	UpgradeToKokai bool
}

// NewWorkflows returns the REST and GraphQL clone workflows.
func NewWorkflows(params WorkflowParams) ([]workflows.Workflow, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("clone service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return []workflows.Workflow{
		&restWorkflow{params: params},
		&graphQLWorkflow{params: params},
	}, nil
}

type restWorkflow struct {
	params WorkflowParams
}

func (w *restWorkflow) Name() string { return WorkflowCloneREST }

func (w *restWorkflow) Description() string {
	return "clone a campaign once per name over REST, optionally upgrading clones to Kokai"
}

func (w *restWorkflow) Run(ctx context.Context) error {
	p := w.params
	ctx = p.Logger.WithCampaignID(ctx, p.CampaignID)

	jobIDs, err := p.Service.CloneREST(ctx, p.CampaignID, p.CloneNames, p.UpgradeToKokai)
	if err != nil {
		return err
	}
	cloned, err := p.Service.PollRESTJobs(ctx, jobIDs)
	if err != nil {
		return err
	}
	return w.report(ctx, cloned)
}

func (w *restWorkflow) report(ctx context.Context, cloned []string) error {
	verified, err := w.params.Service.Verify(ctx, cloned)
	if err != nil {
		return err
	}
	upgrade := "were not"
	if w.params.UpgradeToKokai {
		upgrade = "were"
	}
	w.params.Printer.Printf("%d clones were created; clones %s elected to be upgraded", len(verified), upgrade)
	w.params.Printer.Print("clones", verified)
	return nil
}

type graphQLWorkflow struct {
	params WorkflowParams
}

func (w *graphQLWorkflow) Name() string { return WorkflowCloneGraphQL }

func (w *graphQLWorkflow) Description() string {
	return "clone a campaign with one GraphQL job and verify the clones"
}

func (w *graphQLWorkflow) Run(ctx context.Context) error {
	p := w.params
	ctx = p.Logger.WithCampaignID(ctx, p.CampaignID)

	jobID, err := p.Service.CloneGraphQL(ctx, p.CampaignID, p.CloneNames)
	if err != nil {
		return err
	}
	cloned, err := p.Service.PollGraphQLJob(ctx, jobID)
	if err != nil {
		return err
	}
	verified, err := p.Service.Verify(ctx, cloned)
	if err != nil {
		return err
	}
	p.Printer.Printf("%d clones were created", len(verified))
	p.Printer.Print("clones", verified)
	return nil
}
