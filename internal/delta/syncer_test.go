package delta

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd/ttdtest"
)

type stubRecorder struct {
	version int64
	changes []Change
}

func (s *stubRecorder) Record(_ context.Context, version int64, changes []Change) (int64, error) {
	s.version = version
	s.changes = append(s.changes, changes...)
	return int64(len(changes)), nil
}

func TestSyncEntitiesResumesFromCheckpoint(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("nextChangeTrackingVersion",
		deltaPage("advertiserDelta", "advertisers", 90, false, map[string]any{"id": "a1", "name": "One"}))
	checkpoints := NewMemoryCheckpoints()
	require.NoError(t, checkpoints.Save(context.Background(), enums.DeltaKindAdvertisers, "p1", 77))
	recorder := &stubRecorder{}

	syncer, err := NewSyncer(SyncerParams{
		Service:         newTestService(t, fake, 0),
		Checkpoints:     checkpoints,
		Recorder:        recorder,
		StartingVersion: 5,
	})
	require.NoError(t, err)

	result, err := syncer.SyncEntities(context.Background(), enums.DeltaKindAdvertisers, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 77, result.StartVersion)
	assert.EqualValues(t, 90, result.NextVersion)
	assert.EqualValues(t, 1, result.Recorded)
	assert.EqualValues(t, 77, fake.Calls()[0].Variables["changeTrackingVersion"])

	assert.EqualValues(t, 90, recorder.version)
	require.Len(t, recorder.changes, 1)

	stored, ok, err := checkpoints.Load(context.Background(), enums.DeltaKindAdvertisers, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 90, stored)
}

func TestSyncEntitiesKeepsNewestChangePerEntity(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("nextChangeTrackingVersion", ttdtest.Sequence(
		deltaPage("advertiserDelta", "advertisers", 85, true, map[string]any{"id": "a1", "name": "Old"}),
		deltaPage("advertiserDelta", "advertisers", 90, false,
			map[string]any{"id": "a2", "name": "Two"},
			map[string]any{"id": "a1", "name": "New"}),
	))
	recorder := &stubRecorder{}
	exporter := &stubExporter{}
	syncer, err := NewSyncer(SyncerParams{
		Service:         newTestService(t, fake, 0),
		Checkpoints:     NewMemoryCheckpoints(),
		Recorder:        recorder,
		Exporters:       []Exporter{exporter},
		StartingVersion: 5,
	})
	require.NoError(t, err)

	result, err := syncer.SyncEntities(context.Background(), enums.DeltaKindAdvertisers, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 90, result.NextVersion)

	require.Len(t, recorder.changes, 2)
	assert.Equal(t, "a1", recorder.changes[0].EntityID)
	assert.Equal(t, "New", recorder.changes[0].Name)
	assert.Equal(t, "a2", recorder.changes[1].EntityID)

	require.Len(t, exporter.results, 1)
	require.Len(t, exporter.results[0].Changes, 2)
	assert.JSONEq(t, `{"id":"a1","name":"New"}`, string(exporter.results[0].Changes[0].Payload))
}

func TestSyncEntitiesLeavesCheckpointOnFailure(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("nextChangeTrackingVersion", ttdtest.Errors("boom"))
	checkpoints := NewMemoryCheckpoints()
	syncer, err := NewSyncer(SyncerParams{Service: newTestService(t, fake, 0), Checkpoints: checkpoints, StartingVersion: 5})
	require.NoError(t, err)

	_, err = syncer.SyncEntities(context.Background(), enums.DeltaKindAdvertisers, "p1")
	require.Error(t, err)
	_, ok, err := checkpoints.Load(context.Background(), enums.DeltaKindAdvertisers, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncAdGroupBudgetsBootstrapsThenResumes(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodPost, adGroupDeltaPath, ttdtest.Sequence(
			ttdtest.JSON(http.StatusOK, map[string]any{"ElementIds": []string{}, "LastChangeTrackingVersion": 100}),
			ttdtest.JSON(http.StatusOK, map[string]any{"ElementIds": []string{"ag1"}, "LastChangeTrackingVersion": 104}),
			ttdtest.JSON(http.StatusOK, map[string]any{"ElementIds": []string{}, "LastChangeTrackingVersion": 104}),
		)).
		OnGraphQL("adGroups", ttdtest.Data(map[string]any{"adGroups": map[string]any{
			"nodes": []map[string]any{{
				"id":       "ag1",
				"budget":   map[string]any{"currentFlightBudget": 250},
				"campaign": map[string]any{"budgetMigrationStatus": map[string]any{"currentBudgetingVersion": "KOKAI"}},
			}},
			"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
		}}))

	db := newTestDB(t)
	syncer, err := NewSyncer(SyncerParams{
		Service:     newTestService(t, fake, 0),
		Checkpoints: NewGormCheckpoints(db),
		Recorder:    NewRepository(db),
	})
	require.NoError(t, err)

	first, err := syncer.SyncAdGroupBudgets(context.Background(), "adv1")
	require.NoError(t, err)
	assert.EqualValues(t, 100, first.StartVersion)
	assert.EqualValues(t, 104, first.NextVersion)
	require.Len(t, first.Budgets.Kokai, 1)
	assert.Equal(t, "250", first.Budgets.Kokai[0].Budget.String())
	assert.EqualValues(t, 1, first.Recorded)

	calls := fake.CallsTo("POST " + adGroupDeltaPath)
	require.Len(t, calls, 2)
	assert.Nil(t, calls[0].JSONBody()["LastChangeTrackingVersion"])
	assert.EqualValues(t, 100, calls[1].JSONBody()["LastChangeTrackingVersion"])

	second, err := syncer.SyncAdGroupBudgets(context.Background(), "adv1")
	require.NoError(t, err)
	assert.EqualValues(t, 104, second.StartVersion)
	assert.Empty(t, second.Budgets.Kokai)

	calls = fake.CallsTo("POST " + adGroupDeltaPath)
	require.Len(t, calls, 3)
	assert.EqualValues(t, 104, calls[2].JSONBody()["LastChangeTrackingVersion"])
	assert.Len(t, fake.CallsTo("adGroups"), 1)
}

func TestSyncAdGroupBudgetsUsesConfiguredStart(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodPost, adGroupDeltaPath,
		ttdtest.JSON(http.StatusOK, map[string]any{"ElementIds": []string{}, "LastChangeTrackingVersion": 61}))
	start := int64(60)
	syncer, err := NewSyncer(SyncerParams{Service: newTestService(t, fake, 0), AdGroupStartVersion: &start})
	require.NoError(t, err)

	result, err := syncer.SyncAdGroupBudgets(context.Background(), "adv1")
	require.NoError(t, err)
	assert.EqualValues(t, 61, result.NextVersion)
	require.Len(t, fake.Calls(), 1)
	assert.EqualValues(t, 60, fake.Calls()[0].JSONBody()["LastChangeTrackingVersion"])
}

func TestWorkflowsRunEntitySync(t *testing.T) {
	fake := ttdtest.New(t).
		OnGraphQL("advertisers(where", advertiserPages([]string{"a1"})).
		OnGraphQL("currentMinimumTrackingVersion", ttdtest.Data(map[string]any{
			"trackingTagDelta": map[string]any{"currentMinimumTrackingVersion": 3},
		})).
		OnGraphQL("nextChangeTrackingVersion", deltaPage("trackingTagDelta", "trackingTags", 8, false,
			map[string]any{"id": "tt1", "name": "Pixel", "type": "IMAGE", "isArchived": false, "advertiser": map[string]any{"id": "a1"}}))

	syncer, err := NewSyncer(SyncerParams{Service: newTestService(t, fake, 0)})
	require.NoError(t, err)
	var out bytes.Buffer
	items, err := NewWorkflows(WorkflowParams{Syncer: syncer, Printer: workflows.NewPrinter(&out), PartnerID: "p1"})
	require.NoError(t, err)

	registry, err := workflows.NewRegistry(items...)
	require.NoError(t, err)
	assert.Equal(t, []string{WorkflowAdGroupBudgets, WorkflowAdvertisers, WorkflowCreatives, WorkflowTrackingTags}, registry.Names())

	wf, ok := registry.Lookup(WorkflowTrackingTags)
	require.True(t, ok)
	require.NoError(t, wf.Run(context.Background()))
	assert.Contains(t, out.String(), "Next minimum change tracking version: 8")
	assert.Contains(t, out.String(), "Changed tracking_tags count: 1")
}

func TestWorkflowNameFor(t *testing.T) {
	name, ok := WorkflowNameFor(enums.DeltaKindCreatives)
	assert.True(t, ok)
	assert.Equal(t, WorkflowCreatives, name)
	_, ok = WorkflowNameFor("campaigns")
	assert.False(t, ok)
}
