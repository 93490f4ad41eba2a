package seeds

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd/ttdtest"
)

func newTestService(t *testing.T, fake *ttdtest.Fake) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Client: fake.Client()})
	require.NoError(t, err)
	return svc
}

func firstParty(ids ...int) ttdtest.Handler {
	result := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		result = append(result, map[string]any{"FirstPartyDataId": id, "Name": "segment"})
	}
	return ttdtest.JSON(http.StatusOK, map[string]any{"Result": result, "ResultCount": len(ids)})
}

func seedData(op string) ttdtest.Handler {
	return ttdtest.Data(map[string]any{op: map[string]any{"data": map[string]any{"id": "seed-1"}, "userErrors": []any{}}})
}

func defaultSeed() ttdtest.Handler {
	return ttdtest.Data(map[string]any{"advertiserSetDefaultSeed": map[string]any{
		"data":       map[string]any{"defaultSeed": map[string]any{"id": "seed-1"}},
		"userErrors": []any{},
	}})
}

func TestFirstPartyDataPage(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodPost, firstPartyPath, firstParty(11, 12))
	svc := newTestService(t, fake)

	entries, err := svc.FirstPartyData(context.Background(), "adv1", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "12"}, IDs(entries))
	assert.JSONEq(t, `{"AdvertiserId":"adv1","PageStartIndex":4,"PageSize":2}`, string(fake.Calls()[0].Body))
}

func TestFirstPartyDataRejectsEmptyPage(t *testing.T) {
	svc := newTestService(t, ttdtest.New(t))
	_, err := svc.FirstPartyData(context.Background(), "adv1", 0, 0)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateSendsEmptyListForNoSegments(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("seedCreate", seedData("seedCreate"))
	svc := newTestService(t, fake)

	id, err := svc.Create(context.Background(), CreateInput{AdvertiserID: "adv1", Name: "Seed"})
	require.NoError(t, err)
	assert.Equal(t, "seed-1", id)
	assert.Equal(t, []any{}, fake.Calls()[0].Variables["firstPartyDataInclusionIds"])
}

func TestCreateUserErrors(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("seedCreate", ttdtest.Data(map[string]any{"seedCreate": map[string]any{
		"data":       nil,
		"userErrors": []map[string]any{{"field": []string{"input", "name"}, "message": "name taken"}},
	}}))
	svc := newTestService(t, fake)

	_, err := svc.Create(context.Background(), CreateInput{AdvertiserID: "adv1", Name: "Seed"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUserError, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "name taken")
}

func TestUpdateRenameKeepsSegments(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("seedUpdate", seedData("seedUpdate"))
	svc := newTestService(t, fake)
	name := "Renamed"

	_, err := svc.Update(context.Background(), UpdateInput{SeedID: "seed-1", Name: &name})
	require.NoError(t, err)
	call := fake.Calls()[0]
	assert.NotContains(t, call.Query, "targetingData")
	assert.Equal(t, map[string]any{"id": "seed-1", "name": "Renamed"}, call.Variables)
}

func TestUpdateWithoutChanges(t *testing.T) {
	svc := newTestService(t, ttdtest.New(t))
	_, err := svc.Update(context.Background(), UpdateInput{SeedID: "seed-1"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSeedCreateWorkflow(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodPost, firstPartyPath, ttdtest.Sequence(firstParty(1, 2, 3), firstParty(9))).
		OnGraphQL("seedCreate", seedData("seedCreate")).
		OnGraphQL("advertiserSetDefaultSeed", defaultSeed()).
		OnGraphQL("seedUpdate", seedData("seedUpdate"))

	var out bytes.Buffer
	items, err := NewWorkflows(WorkflowParams{
		Service:      newTestService(t, fake),
		Printer:      workflows.NewPrinter(&out),
		AdvertiserID: "adv1",
		Name:         "Seed",
		Rename:       "Seed v2",
		Limit:        3,
		Alternatives: 1,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, items[0].Run(context.Background()))

	pages := fake.CallsTo("POST " + firstPartyPath)
	require.Len(t, pages, 2)
	assert.EqualValues(t, 4, pages[1].JSONBody()["PageStartIndex"])
	assert.EqualValues(t, 1, pages[1].JSONBody()["PageSize"])

	created := fake.CallsTo("seedCreate")[0].Variables
	assert.Equal(t, []any{"1", "2", "3"}, created["firstPartyDataInclusionIds"])

	updated := fake.CallsTo("seedUpdate")[0].Variables
	assert.Equal(t, []any{"9"}, updated["firstPartyDataInclusionIds"])
	assert.Equal(t, "Seed v2", updated["name"])
	assert.Contains(t, out.String(), "Successfully created the seed with id seed-1")
}

func TestSeedCreateWorkflowSkipsNoopUpdate(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodPost, firstPartyPath, firstParty(1)).
		OnGraphQL("seedCreate", seedData("seedCreate")).
		OnGraphQL("advertiserSetDefaultSeed", defaultSeed())

	items, err := NewWorkflows(WorkflowParams{
		Service:      newTestService(t, fake),
		AdvertiserID: "adv1",
		Name:         "Seed",
		Limit:        1,
	})
	require.NoError(t, err)
	require.NoError(t, items[0].Run(context.Background()))
	assert.Empty(t, fake.CallsTo("seedUpdate"))
	assert.Len(t, fake.CallsTo("POST "+firstPartyPath), 1)
}
