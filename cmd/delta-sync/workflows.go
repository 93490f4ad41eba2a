package main

import (
	"fmt"

	"github.com/angelmondragon/ttd-workflows/internal/delta"
	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/config"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

// buildRegistry returns the delta workflows selected by TTD_DELTA_KINDS, in
// the configured order.
func buildRegistry(cfg *config.Config, client *ttd.Client, logg *logger.Logger, checkpoints delta.CheckpointStore, recorder delta.Recorder, exporters ...delta.Exporter) (*workflows.Registry, error) {
	names, err := scheduledWorkflows(cfg.Delta.Kinds)
	if err != nil {
		return nil, err
	}

	svc, err := delta.NewService(delta.ServiceParams{
		Client:    client,
		Logger:    logg,
		ChunkSize: cfg.Delta.AdvertiserChunkSize,
		PageSize:  cfg.Delta.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("delta service: %w", err)
	}
	syncer, err := delta.NewSyncer(delta.SyncerParams{
		Service:             svc,
		Checkpoints:         checkpoints,
		Recorder:            recorder,
		Exporters:           exporters,
		Logger:              logg,
		StartingVersion:     cfg.Delta.StartingVersion,
		AdGroupStartVersion: cfg.Delta.AdGroupLastVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("delta syncer: %w", err)
	}
	items, err := delta.NewWorkflows(delta.WorkflowParams{
		Syncer:       syncer,
		Logger:       logg,
		PartnerID:    cfg.Workflow.PartnerID,
		AdvertiserID: cfg.Workflow.AdvertiserID,
	})
	if err != nil {
		return nil, err
	}
	all, err := workflows.NewRegistry(items...)
	if err != nil {
		return nil, err
	}
	return all.Subset(names...)
}

func scheduledWorkflows(kinds []string) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for _, raw := range kinds {
		kind, err := enums.ParseDeltaKind(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "TTD_DELTA_KINDS")
		}
		name, ok := delta.WorkflowNameFor(kind)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "TTD_DELTA_KINDS selects no workflows")
	}
	return names, nil
}
