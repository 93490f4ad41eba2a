package budgets

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ttd-workflows/internal/campaigns"
	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd/ttdtest"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, fake *ttdtest.Fake) (Service, campaigns.Service) {
	t.Helper()
	client := fake.Client()
	campaignSvc, err := campaigns.NewService(campaigns.ServiceParams{Client: client})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Client:    client,
		Campaigns: campaignSvc,
		Now:       func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc, campaignSvc
}

func restCampaign(budgetingVersion string, flights ...map[string]any) ttdtest.Handler {
	return ttdtest.JSON(http.StatusOK, map[string]any{
		"CampaignId":       "c1",
		"Version":          "Kokai",
		"BudgetingVersion": budgetingVersion,
		"CampaignFlights":  flights,
	})
}

var (
	endedFlight   = map[string]any{"CampaignFlightId": 40, "StartDateInclusiveUTC": "2025-01-01T00:00:00", "EndDateExclusiveUTC": "2025-02-01T00:00:00"}
	runningFlight = map[string]any{"CampaignFlightId": 42, "StartDateInclusiveUTC": "2025-02-01T00:00:00", "EndDateExclusiveUTC": nil}
	futureFlight  = map[string]any{"CampaignFlightId": 44, "StartDateInclusiveUTC": "2025-06-01T00:00:00"}
)

func migrationData() ttdtest.Handler {
	return ttdtest.Data(map[string]any{"campaign": map[string]any{
		"id": "c1",
		"budgetMigrationStatus": map[string]any{"migrationData": map[string]any{"campaignFlights": []map[string]any{{
			"originalCampaignFlight": map[string]any{"id": 7},
			"adGroupFlights": []map[string]any{{
				"adGroupId":                        "ag1",
				"budgetInImpressions":              nil,
				"campaignFlightId":                 55,
				"dailyTargetInAdvertiserCurrency":  nil,
				"dailyTargetInImpressions":         nil,
				"minimumSpendInAdvertiserCurrency": 12.5,
			}},
		}}}},
	}})
}

func upgradeResponse() ttdtest.Handler {
	return ttdtest.Data(map[string]any{"campaignBudgetSettingsUpdate": map[string]any{
		"data": map[string]any{"campaign": map[string]any{
			"pacingMode": "PACE_AHEAD",
			"flights": map[string]any{"edges": []map[string]any{{"node": map[string]any{
				"id":                         7,
				"budgetInAdvertiserCurrency": 1000,
				"startDateInclusiveUTC":      "2025-02-01T00:00:00Z",
				"adGroupFlights": map[string]any{"edges": []map[string]any{{"node": map[string]any{
					"adGroupId":                        "ag1",
					"minimumSpendInAdvertiserCurrency": 12.5,
				}}}},
			}}}},
		}},
		"userErrors": []any{},
	}})
}

func TestGetFlattensFlights(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("budgetInImpressions", ttdtest.Data(map[string]any{"campaign": map[string]any{
		"budget":              map[string]any{"total": 5000},
		"pacingMode":          "PACE_EVENLY",
		"timeZone":            "UTC",
		"budgetInImpressions": nil,
		"flights": map[string]any{"totalCount": 1, "edges": []map[string]any{{"cursor": "x", "node": map[string]any{
			"id":                         "9",
			"isCurrent":                  true,
			"budgetInAdvertiserCurrency": 5000,
			"startDateInclusiveUTC":      "2025-02-01T00:00:00",
			"adGroupFlights": map[string]any{"totalCount": 2, "edges": []map[string]any{
				{"cursor": "a", "node": map[string]any{"adGroupId": "ag1", "budgetInAdvertiserCurrency": 3000}},
				{"cursor": "b", "node": map[string]any{"adGroupId": "ag2", "budgetInAdvertiserCurrency": 2000}},
			}},
		}}}},
	}}))
	svc, _ := newTestService(t, fake)

	settings, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "5000", settings.Total.String())
	assert.Nil(t, settings.BudgetInImpressions)
	require.Len(t, settings.Flights, 1)
	flight := settings.Flights[0]
	assert.EqualValues(t, 9, flight.ID)
	assert.True(t, flight.IsCurrent)
	require.Len(t, flight.AdGroupFlights, 2)
	assert.Equal(t, "ag2", flight.AdGroupFlights[1].AdGroupID)
	assert.Equal(t, map[string]any{"campaignId": "c1"}, fake.Calls()[0].Variables)
}

func TestGetMissingCampaign(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("budgetInImpressions", ttdtest.Data(map[string]any{"campaign": nil}))
	svc, _ := newTestService(t, fake)
	_, err := svc.Get(context.Background(), "c1")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestUpgradeToKokaiOmitsMissingValues(t *testing.T) {
	fake := ttdtest.New(t).
		OnGraphQL("migrationData", migrationData()).
		OnGraphQL("UpgradeCampaignBudgetToKokai", upgradeResponse())
	svc, _ := newTestService(t, fake)
	ctx := context.Background()

	flights, err := svc.MigrationData(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.EqualValues(t, 7, flights[0].CampaignFlightID)
	require.Len(t, flights[0].AdGroupFlights, 1)
	assert.Nil(t, flights[0].AdGroupFlights[0].BudgetInImpressions)

	result, err := svc.UpgradeToKokai(ctx, "c1", flights)
	require.NoError(t, err)
	assert.Equal(t, "PACE_AHEAD", result.PacingMode)
	require.Len(t, result.Flights, 1)
	assert.Equal(t, "ag1", result.Flights[0].AdGroupFlights[0].AdGroupID)

	call := fake.CallsTo("UpgradeCampaignBudgetToKokai")[0]
	assert.Contains(t, call.Query,
		`campaignFlights: [{adGroupFlights: [{adGroupId: "ag1", campaignFlightId: 55, minimumSpendInAdvertiserCurrency: 12.5}], campaignFlightId: 7}]`)
	assert.Contains(t, call.Query, "budgetingVersion: KOKAI")
	assert.Equal(t, map[string]any{"campaignId": "c1"}, call.Variables)
}

func TestUpgradeToKokaiUserErrors(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("UpgradeCampaignBudgetToKokai", ttdtest.Data(map[string]any{
		"campaignBudgetSettingsUpdate": map[string]any{
			"data":       nil,
			"userErrors": []map[string]any{{"field": []string{"input", "campaignFlights"}, "message": "flight is locked"}},
		},
	}))
	svc, _ := newTestService(t, fake)
	_, err := svc.UpgradeToKokai(context.Background(), "c1", nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUserError, pkgerrors.CodeOf(err))
	assert.Contains(t, fake.Calls()[0].Query, "campaignFlights: []")
}

func TestMigrationDataWithoutOriginalFlight(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("migrationData", ttdtest.Data(map[string]any{"campaign": map[string]any{
		"id": "c1",
		"budgetMigrationStatus": map[string]any{"migrationData": map[string]any{"campaignFlights": []map[string]any{
			{"adGroupFlights": []any{}},
		}}},
	}}))
	svc, _ := newTestService(t, fake)
	_, err := svc.MigrationData(context.Background(), "c1")
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestMetadataPicksRunningFlight(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodGet, "campaign/c1", restCampaign("Kokai", endedFlight, runningFlight, futureFlight))
	svc, _ := newTestService(t, fake)

	meta, err := svc.Metadata(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, meta.IsKokai())
	assert.EqualValues(t, 42, meta.CurrentFlight.CampaignFlightID)
}

func TestMetadataWithoutRunningFlight(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodGet, "campaign/c1", restCampaign("", endedFlight, futureFlight))
	svc, _ := newTestService(t, fake)

	meta, err := svc.Metadata(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.CampaignVersionSolimar, meta.BudgetingVersion)
}

func TestUpdateKokaiSendsFlightBudget(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodGet, "campaign/c1", restCampaign("Kokai", runningFlight)).
		OnGraphQL("UpdateKokaiBudgetSettings", ttdtest.Data(map[string]any{
			"campaignBudgetSettingsUpdate": map[string]any{"data": map[string]any{"wasBudgetUpdated": true}, "userErrors": []any{}},
		}))
	svc, _ := newTestService(t, fake)

	meta, err := svc.Update(context.Background(), "c1", decimal.NewFromInt(2500))
	require.NoError(t, err)
	assert.True(t, meta.IsKokai())

	vars := fake.CallsTo("UpdateKokaiBudgetSettings")[0].Variables
	assert.Equal(t, "c1", vars["campaignId"])
	assert.EqualValues(t, 42, vars["currentFlightId"])
	assert.EqualValues(t, 2500, vars["budget"])
	assert.Empty(t, fake.CallsTo("PUT campaignflight"))
}

func TestUpdateKokaiNotApplied(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodGet, "campaign/c1", restCampaign("Kokai", runningFlight)).
		OnGraphQL("UpdateKokaiBudgetSettings", ttdtest.Data(map[string]any{
			"campaignBudgetSettingsUpdate": map[string]any{"data": map[string]any{"wasBudgetUpdated": false}},
		}))
	svc, _ := newTestService(t, fake)
	_, err := svc.Update(context.Background(), "c1", decimal.NewFromInt(10))
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestUpdateSolimarContinuesPastAdGroupFailures(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodGet, "campaign/c1", restCampaign("Solimar", runningFlight)).
		OnREST(http.MethodPut, "campaignflight", ttdtest.JSON(http.StatusOK, map[string]any{})).
		OnREST(http.MethodPost, "adgroup/query/campaign", ttdtest.JSON(http.StatusOK, map[string]any{
			"Result":      []map[string]any{{"AdGroupId": "ag1"}, {"AdGroupId": "ag2"}, {"AdGroupId": "ag3"}},
			"ResultCount": 3,
		})).
		OnREST(http.MethodPut, "adgroup", func(c ttdtest.Call) (int, string) {
			if c.JSONBody()["AdGroupId"] == "ag2" {
				return http.StatusBadRequest, `{"Message":"Budget exceeds campaign flight"}`
			}
			return http.StatusOK, `{}`
		})
	svc, _ := newTestService(t, fake)

	_, err := svc.Update(context.Background(), "c1", decimal.NewFromInt(2500))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, map[string]any{"ad_group_ids": []string{"ag2"}}, typed.Details())
	assert.Contains(t, err.Error(), "Budget exceeds campaign flight")

	assert.JSONEq(t, `{"CampaignFlightId":42,"BudgetInAdvertiserCurrency":2500}`, string(fake.CallsTo("PUT campaignflight")[0].Body))
	assert.JSONEq(t, `{"CampaignId":"c1","PageSize":10000,"PageStartIndex":0}`, string(fake.CallsTo("POST adgroup/query/campaign")[0].Body))
	puts := fake.CallsTo("PUT adgroup")
	require.Len(t, puts, 3)
	assert.JSONEq(t,
		`{"AdGroupId":"ag3","RTBAttributes":{"BudgetSettings":{"AdGroupFlights":[{"CampaignFlightId":42,"BudgetInAdvertiserCurrency":2500}]}}}`,
		string(puts[2].Body))
}

func TestUpdateRejectsNonPositiveBudget(t *testing.T) {
	svc, _ := newTestService(t, ttdtest.New(t))
	_, err := svc.Update(context.Background(), "c1", decimal.Zero)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateKokaiBudgetWorkflow(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodPost, "campaign", ttdtest.JSON(http.StatusOK, map[string]any{
			"CampaignId": "c1", "Version": "Kokai", "Budget": map[string]any{"Amount": 2000, "CurrencyCode": "USD"},
		})).
		OnREST(http.MethodPost, "adgroup", ttdtest.JSON(http.StatusOK, map[string]any{"AdGroupId": "ag1", "IsEnabled": true})).
		OnGraphQL("migrationData", migrationData()).
		OnGraphQL("UpgradeCampaignBudgetToKokai", upgradeResponse()).
		OnREST(http.MethodGet, "campaign/c1", restCampaign("Kokai", runningFlight))
	svc, campaignSvc := newTestService(t, fake)

	var out bytes.Buffer
	items, err := NewWorkflows(WorkflowParams{
		Service:      svc,
		Campaigns:    campaignSvc,
		Printer:      workflows.NewPrinter(&out),
		AdvertiserID: "adv1",
		SeedID:       "seed1",
		Budget:       decimal.NewFromInt(2000),
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)
	registry, err := workflows.NewRegistry(items...)
	require.NoError(t, err)

	wf, ok := registry.Lookup(WorkflowCreateKokaiBudget)
	require.True(t, ok)
	require.NoError(t, wf.Run(context.Background()))

	body := fake.CallsTo("POST campaign")[0].JSONBody()
	assert.Equal(t, "seed1", body["SeedId"])
	assert.Equal(t, "c1", fake.CallsTo("POST adgroup")[0].JSONBody()["CampaignId"])
	assert.Len(t, fake.CallsTo("UpgradeCampaignBudgetToKokai"), 1)

	var versions struct {
		Version          string `json:"version"`
		BudgetingVersion string `json:"budgeting_version"`
	}
	printed := out.String()
	idx := bytes.LastIndex([]byte(printed), []byte("campaign versions:\n"))
	require.GreaterOrEqual(t, idx, 0)
	require.NoError(t, json.Unmarshal([]byte(printed[idx+len("campaign versions:\n"):]), &versions))
	assert.Equal(t, "KOKAI", versions.BudgetingVersion)
}
