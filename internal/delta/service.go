package delta

import (
	"context"
	"fmt"
	"net/http"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/pagination"
)

const (
	defaultChunkSize = 100
	defaultPageSize  = 1000
)

type platform interface {
	REST(ctx context.Context, method, path string, body, out any) error
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error
}

// ServiceParams groups dependencies for the delta service.
type ServiceParams struct {
	Client    platform
	Logger    *logger.Logger
	ChunkSize int
	PageSize  int
}

// Service reads change-tracking deltas from the platform.
type Service interface {
	AdGroupDelta(ctx context.Context, advertiserID string, lastVersion *int64) (AdGroupDelta, error)
	AdGroupBudgets(ctx context.Context, adGroupIDs []string) (BudgetSplit, error)
	AdvertiserIDs(ctx context.Context, partnerID string) ([]string, error)
	MinimumVersion(ctx context.Context, kind enums.DeltaKind, ids []string) (int64, error)
	Stream(ctx context.Context, kind enums.DeltaKind, scope string, start int64) (SyncResult, error)
}

type service struct {
	client    platform
	logg      *logger.Logger
	chunkSize int
	pageSize  int
}

// NewService builds a delta service. Advertiser IDs are queried in chunks
// of 100 and listed 1000 per page unless configured otherwise.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform client is required")
	}
	svc := &service{
		client:    params.Client,
		logg:      params.Logger,
		chunkSize: params.ChunkSize,
		pageSize:  pagination.NormalizeLimit(params.PageSize),
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.chunkSize <= 0 {
		svc.chunkSize = defaultChunkSize
	}
	if params.PageSize <= 0 {
		svc.pageSize = defaultPageSize
	}
	return svc, nil
}

// AdGroupDelta lists ad groups changed since lastVersion. A nil version
// asks for the current version only.
func (s *service) AdGroupDelta(ctx context.Context, advertiserID string, lastVersion *int64) (AdGroupDelta, error) {
	if advertiserID == "" {
		return AdGroupDelta{}, pkgerrors.New(pkgerrors.CodeValidation, "advertiser id is required")
	}
	body := adGroupDeltaRequest{
		AdvertiserID:              advertiserID,
		LastChangeTrackingVersion: lastVersion,
	}
	var out AdGroupDelta
	if err := s.client.REST(ctx, http.MethodPost, adGroupDeltaPath, body, &out); err != nil {
		return AdGroupDelta{}, pkgerrors.Wrap(pkgerrors.CodeOf(err), err, fmt.Sprintf("ad group delta for advertiser %s", advertiserID))
	}
	return out, nil
}

// AdGroupBudgets pages through the changed ad groups and splits them by the
// budgeting version of their campaigns. Anything not on Kokai is Solimar.
func (s *service) AdGroupBudgets(ctx context.Context, adGroupIDs []string) (BudgetSplit, error) {
	var split BudgetSplit
	if len(adGroupIDs) == 0 {
		return split, nil
	}
	nodes, err := pagination.Collect(ctx, func(ctx context.Context, after string) (pagination.Connection[adGroupBudgetNode], error) {
		var resp struct {
			AdGroups *pagination.Connection[adGroupBudgetNode] `json:"adGroups"`
		}
		vars := map[string]any{"ids": adGroupIDs, "first": s.pageSize, "after": nullable(after)}
		if err := s.client.GraphQL(ctx, adGroupBudgetsQuery, vars, &resp); err != nil {
			return pagination.Connection[adGroupBudgetNode]{}, err
		}
		if resp.AdGroups == nil {
			return pagination.Connection[adGroupBudgetNode]{}, pkgerrors.New(pkgerrors.CodeDependency, "adGroups returned no connection")
		}
		return *resp.AdGroups, nil
	})
	if err != nil {
		return split, err
	}
	for _, node := range nodes {
		budget := node.toBudget()
		if budget.BudgetingVersion == string(enums.CampaignVersionKokai) {
			split.Kokai = append(split.Kokai, budget)
		} else {
			split.Solimar = append(split.Solimar, budget)
		}
	}
	return split, nil
}

// AdvertiserIDs lists every advertiser under a partner.
func (s *service) AdvertiserIDs(ctx context.Context, partnerID string) ([]string, error) {
	if partnerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id is required")
	}
	type node struct {
		ID string `json:"id"`
	}
	nodes, err := pagination.Collect(ctx, func(ctx context.Context, after string) (pagination.Connection[node], error) {
		var resp struct {
			Advertisers *pagination.Connection[node] `json:"advertisers"`
		}
		vars := map[string]any{"partnerId": partnerID, "first": s.pageSize, "after": nullable(after)}
		if err := s.client.GraphQL(ctx, partnerAdvertisersQuery, vars, &resp); err != nil {
			return pagination.Connection[node]{}, err
		}
		if resp.Advertisers == nil {
			return pagination.Connection[node]{}, pkgerrors.New(pkgerrors.CodeDependency, "advertisers returned no connection")
		}
		s.logg.Debug(s.logg.WithField(ctx, "page_size", len(resp.Advertisers.Nodes)), "advertiser page loaded")
		return *resp.Advertisers, nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// MinimumVersion returns the earliest tracking version the platform still
// serves for the stream.
func (s *service) MinimumVersion(ctx context.Context, kind enums.DeltaKind, ids []string) (int64, error) {
	q, ok := streamQueries[kind]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no delta stream for kind %q", kind))
	}
	payload, err := s.fetch(ctx, q, q.minimumVersion, map[string]any{"ids": ids})
	if err != nil {
		return 0, err
	}
	return int64(payload.CurrentMinimumTrackingVersion), nil
}

// Stream reads every change of kind since start. Advertisers are scoped by
// partner; creatives and tracking tags by the partner's advertisers, in
// chunks. A start of 0 begins at the current minimum tracking version.
// NextVersion is the largest final version reported across chunks.
func (s *service) Stream(ctx context.Context, kind enums.DeltaKind, scope string, start int64) (SyncResult, error) {
	q, ok := streamQueries[kind]
	if !ok {
		return SyncResult{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no delta stream for kind %q", kind))
	}
	if scope == "" {
		return SyncResult{}, pkgerrors.New(pkgerrors.CodeValidation, "partner id is required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"delta_kind": kind, "scope": scope})

	ids := []string{scope}
	if kind != enums.DeltaKindAdvertisers {
		listed, err := s.AdvertiserIDs(ctx, scope)
		if err != nil {
			return SyncResult{}, err
		}
		ids = listed
	}
	result := SyncResult{Kind: kind, Scope: scope, StartVersion: start, NextVersion: start}
	if len(ids) == 0 {
		s.logg.Warn(ctx, "no advertisers to sync")
		return result, nil
	}

	if start == 0 {
		minimum, err := s.MinimumVersion(ctx, kind, ids[:1])
		if err != nil {
			return result, err
		}
		result.StartVersion = minimum
		result.NextVersion = minimum
	}
	s.logg.Info(s.logg.WithField(ctx, "start_version", result.StartVersion), "delta sync starting")

	for i, chunk := range pagination.Chunk(ids, s.chunkSize) {
		final, changes, err := s.drainChunk(ctx, kind, q, chunk, result.StartVersion)
		if err != nil {
			return result, fmt.Errorf("chunk %d: %w", i, err)
		}
		result.Changes = append(result.Changes, changes...)
		if final > result.NextVersion {
			result.NextVersion = final
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"next_version": result.NextVersion,
		"changes":      len(result.Changes),
	}), "delta sync finished")
	return result, nil
}

// drainChunk follows nextChangeTrackingVersion while moreAvailable holds.
func (s *service) drainChunk(ctx context.Context, kind enums.DeltaKind, q streamQuery, ids []string, version int64) (int64, []Change, error) {
	var changes []Change
	for {
		if err := ctx.Err(); err != nil {
			return version, changes, err
		}
		payload, err := s.fetch(ctx, q, q.page, map[string]any{"changeTrackingVersion": version, "ids": ids})
		if err != nil {
			return version, changes, err
		}
		for _, raw := range payload.items() {
			change, err := changeFromRaw(kind, raw)
			if err != nil {
				return version, changes, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode changed entity")
			}
			changes = append(changes, change)
		}
		next := int64(payload.NextChangeTrackingVersion)
		if !payload.MoreAvailable {
			return next, changes, nil
		}
		if next <= version {
			return version, changes, pkgerrors.New(pkgerrors.CodeDependency,
				fmt.Sprintf("%s reported more changes without advancing past version %d", q.field, version))
		}
		version = next
	}
}

func (s *service) fetch(ctx context.Context, q streamQuery, query string, vars map[string]any) (deltaPayload, error) {
	var resp map[string]*deltaPayload
	if err := s.client.GraphQL(ctx, query, vars, &resp); err != nil {
		return deltaPayload{}, err
	}
	payload := resp[q.field]
	if payload == nil {
		return deltaPayload{}, pkgerrors.New(pkgerrors.CodeDependency, q.field+" returned no data")
	}
	return *payload, nil
}

func nullable(cursor string) any {
	if cursor == "" {
		return nil
	}
	return cursor
}
