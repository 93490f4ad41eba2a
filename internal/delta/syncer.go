package delta

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

// SyncerParams wires a Syncer. Recorder is optional.
type SyncerParams struct {
	Service     Service
	Checkpoints CheckpointStore
	Recorder    Recorder
	// Exporters receive every committed pass before its checkpoint is saved.
	Exporters []Exporter
	Logger    *logger.Logger

	// StartingVersion applies to entity streams without a checkpoint; 0
	// starts from the platform's minimum version.
	StartingVersion int64
	// AdGroupStartVersion applies to the ad group stream without a
	// checkpoint; nil asks the platform for its current version first.
	AdGroupStartVersion *int64
}

// Syncer runs delta passes resuming from stored checkpoints, records the
// changes and advances the checkpoint once everything is stored.
type Syncer struct {
	svc          Service
	checkpoints  CheckpointStore
	recorder     Recorder
	exporters    []Exporter
	logg         *logger.Logger
	start        int64
	adGroupStart *int64
}

func NewSyncer(params SyncerParams) (*Syncer, error) {
	if params.Service == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta service is required")
	}
	s := &Syncer{
		svc:          params.Service,
		checkpoints:  params.Checkpoints,
		recorder:     params.Recorder,
		exporters:    params.Exporters,
		logg:         params.Logger,
		start:        params.StartingVersion,
		adGroupStart: params.AdGroupStartVersion,
	}
	if s.checkpoints == nil {
		s.checkpoints = NewMemoryCheckpoints()
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	return s, nil
}

// SyncEntities runs one pass of an entity stream for a partner.
func (s *Syncer) SyncEntities(ctx context.Context, kind enums.DeltaKind, partnerID string) (SyncResult, error) {
	start := s.start
	stored, ok, err := s.checkpoints.Load(ctx, kind, partnerID)
	if err != nil {
		return SyncResult{}, err
	}
	if ok {
		start = stored
	}

	result, err := s.svc.Stream(ctx, kind, partnerID, start)
	if err != nil {
		return result, err
	}
	if err := s.commit(ctx, kind, partnerID, &result); err != nil {
		return result, err
	}
	return result, nil
}

// AdGroupSync is one pass of the ad group delta with the changed budgets.
type AdGroupSync struct {
	SyncResult
	Budgets BudgetSplit `json:"budgets"`
}

// SyncAdGroupBudgets lists ad groups changed since the checkpoint and reads
// their current flight budgets.
func (s *Syncer) SyncAdGroupBudgets(ctx context.Context, advertiserID string) (AdGroupSync, error) {
	kind := enums.DeltaKindAdGroups
	ctx = s.logg.WithAdvertiserID(ctx, advertiserID)

	var start int64
	stored, ok, err := s.checkpoints.Load(ctx, kind, advertiserID)
	if err != nil {
		return AdGroupSync{}, err
	}
	switch {
	case ok:
		start = stored
	case s.adGroupStart != nil:
		start = *s.adGroupStart
	default:
		current, err := s.svc.AdGroupDelta(ctx, advertiserID, nil)
		if err != nil {
			return AdGroupSync{}, err
		}
		start = int64(current.LastChangeTrackingVersion)
		s.logg.Info(s.logg.WithField(ctx, "version", start), "no ad group checkpoint; starting from current version")
	}

	delta, err := s.svc.AdGroupDelta(ctx, advertiserID, &start)
	if err != nil {
		return AdGroupSync{}, err
	}
	out := AdGroupSync{SyncResult: SyncResult{
		Kind:         kind,
		Scope:        advertiserID,
		StartVersion: start,
		NextVersion:  int64(delta.LastChangeTrackingVersion),
	}}
	s.logg.Info(s.logg.WithField(ctx, "changed_ad_groups", len(delta.ElementIDs)), "ad group delta loaded")

	out.Budgets, err = s.svc.AdGroupBudgets(ctx, delta.ElementIDs)
	if err != nil {
		return out, err
	}
	for _, group := range [][]AdGroupBudget{out.Budgets.Kokai, out.Budgets.Solimar} {
		for _, budget := range group {
			payload, err := json.Marshal(budget)
			if err != nil {
				return out, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode ad group budget")
			}
			out.Changes = append(out.Changes, Change{
				Kind:     kind,
				EntityID: budget.AdGroupID,
				ParentID: advertiserID,
				Payload:  payload,
			})
		}
	}
	if err := s.commit(ctx, kind, advertiserID, &out.SyncResult); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Syncer) commit(ctx context.Context, kind enums.DeltaKind, scope string, result *SyncResult) error {
	// every change in a pass shares NextVersion, so only the newest read of
	// an entity may be stored or exported
	result.Changes = latestChanges(result.Changes)
	if s.recorder != nil {
		recorded, err := s.recorder.Record(ctx, result.NextVersion, result.Changes)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("record %s changes", kind))
		}
		result.Recorded = recorded
	}
	for _, exp := range s.exporters {
		if exp == nil {
			continue
		}
		if err := exp.Export(ctx, *result); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("export %s changes", kind))
		}
	}
	if err := s.checkpoints.Save(ctx, kind, scope, result.NextVersion); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("save %s checkpoint", kind))
	}
	return nil
}
