package main

import (
	"fmt"

	"github.com/angelmondragon/ttd-workflows/internal/budgets"
	"github.com/angelmondragon/ttd-workflows/internal/bulk"
	"github.com/angelmondragon/ttd-workflows/internal/campaigns"
	"github.com/angelmondragon/ttd-workflows/internal/cloning"
	"github.com/angelmondragon/ttd-workflows/internal/delta"
	"github.com/angelmondragon/ttd-workflows/internal/reports"
	"github.com/angelmondragon/ttd-workflows/internal/seeds"
	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/config"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

type registryParams struct {
	Config      *config.Config
	Client      *ttd.Client
	Logger      *logger.Logger
	Printer     *workflows.Printer
	Checkpoints delta.CheckpointStore
}

// buildRegistry wires every service against one platform client and
// registers their workflows in display order.
func buildRegistry(p registryParams) (*workflows.Registry, error) {
	cfg := p.Config
	wf := cfg.Workflow

	campaignSvc, err := campaigns.NewService(campaigns.ServiceParams{Client: p.Client, Logger: p.Logger})
	if err != nil {
		return nil, fmt.Errorf("campaign service: %w", err)
	}
	cloneSvc, err := cloning.NewService(cloning.ServiceParams{
		Client:   p.Client,
		Logger:   p.Logger,
		Interval: cfg.Polling.CloneInterval,
		MaxWait:  cfg.Polling.CloneMaxWait,
	})
	if err != nil {
		return nil, fmt.Errorf("clone service: %w", err)
	}
	bulkSvc, err := bulk.NewService(bulk.ServiceParams{
		Client:   p.Client,
		Logger:   p.Logger,
		Interval: cfg.Polling.BulkInterval,
		MaxWait:  cfg.Polling.BulkMaxWait,
	})
	if err != nil {
		return nil, fmt.Errorf("bulk service: %w", err)
	}
	budgetSvc, err := budgets.NewService(budgets.ServiceParams{Client: p.Client, Campaigns: campaignSvc, Logger: p.Logger})
	if err != nil {
		return nil, fmt.Errorf("budget service: %w", err)
	}
	seedSvc, err := seeds.NewService(seeds.ServiceParams{Client: p.Client, Logger: p.Logger})
	if err != nil {
		return nil, fmt.Errorf("seed service: %w", err)
	}
	reportSvc, err := reports.NewService(reports.ServiceParams{Client: p.Client, Logger: p.Logger})
	if err != nil {
		return nil, fmt.Errorf("report service: %w", err)
	}
	deltaSvc, err := delta.NewService(delta.ServiceParams{
		Client:    p.Client,
		Logger:    p.Logger,
		ChunkSize: cfg.Delta.AdvertiserChunkSize,
		PageSize:  cfg.Delta.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("delta service: %w", err)
	}
	syncer, err := delta.NewSyncer(delta.SyncerParams{
		Service:             deltaSvc,
		Checkpoints:         p.Checkpoints,
		Logger:              p.Logger,
		StartingVersion:     cfg.Delta.StartingVersion,
		AdGroupStartVersion: cfg.Delta.AdGroupLastVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("delta syncer: %w", err)
	}

	var all []workflows.Workflow
	add := func(items []workflows.Workflow, err error) error {
		if err != nil {
			return err
		}
		all = append(all, items...)
		return nil
	}

	if err := add(campaigns.NewWorkflows(campaigns.WorkflowParams{
		Service:      campaignSvc,
		Logger:       p.Logger,
		Printer:      p.Printer,
		AdvertiserID: wf.AdvertiserID,
		CampaignID:   wf.CampaignID,
		SeedID:       wf.SeedID,
		Budget:       wf.CampaignBudget,
	})); err != nil {
		return nil, err
	}
	if err := add(cloning.NewWorkflows(cloning.WorkflowParams{
		Service:        cloneSvc,
		Logger:         p.Logger,
		Printer:        p.Printer,
		CampaignID:     wf.CampaignID,
		CloneNames:     wf.CloneNames,
		UpgradeToKokai: wf.UpgradeClonesToKokai,
	})); err != nil {
		return nil, err
	}
	bulkCreate, err := bulk.NewWorkflow(bulk.WorkflowParams{
		Service:      bulkSvc,
		Logger:       p.Logger,
		Printer:      p.Printer,
		AdvertiserID: wf.AdvertiserID,
		Count:        wf.BulkCount,
	})
	if err := add([]workflows.Workflow{bulkCreate}, err); err != nil {
		return nil, err
	}
	if err := add(budgets.NewWorkflows(budgets.WorkflowParams{
		Service:      budgetSvc,
		Campaigns:    campaignSvc,
		Logger:       p.Logger,
		Printer:      p.Printer,
		AdvertiserID: wf.AdvertiserID,
		CampaignID:   wf.CampaignID,
		SeedID:       wf.SeedID,
		Budget:       wf.CampaignBudget,
	})); err != nil {
		return nil, err
	}
	if err := add(seeds.NewWorkflows(seeds.WorkflowParams{
		Service:      seedSvc,
		Logger:       p.Logger,
		Printer:      p.Printer,
		AdvertiserID: wf.AdvertiserID,
		Name:         wf.SeedName,
		Rename:       wf.SeedRename,
		Limit:        wf.FirstPartyLimit,
		Alternatives: wf.AlternativeFirstPartyIDs,
	})); err != nil {
		return nil, err
	}
	if err := add(reports.NewWorkflows(reports.WorkflowParams{
		Service:      reportSvc,
		Logger:       p.Logger,
		Printer:      p.Printer,
		AdGroupID:    wf.AdGroupID,
		CampaignID:   wf.CampaignID,
		AdvertiserID: wf.AdvertiserID,
		Tile:         wf.ReportTile,
		ReportType:   wf.ReportType,
		OutputPath:   wf.ReportOutput,
	})); err != nil {
		return nil, err
	}
	if err := add(delta.NewWorkflows(delta.WorkflowParams{
		Syncer:       syncer,
		Logger:       p.Logger,
		Printer:      p.Printer,
		PartnerID:    wf.PartnerID,
		AdvertiserID: wf.AdvertiserID,
	})); err != nil {
		return nil, err
	}

	return workflows.NewRegistry(all...)
}
