package campaigns

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd/ttdtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, fake *ttdtest.Fake) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Client: fake.Client()})
	require.NoError(t, err)
	return svc
}

func TestGetDecodesCampaignAndFlights(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodGet, "campaign/c1", ttdtest.JSON(http.StatusOK, map[string]any{
		"CampaignId":   "c1",
		"CampaignName": "Spring",
		"Version":      "Kokai",
		"Budget":       map[string]any{"Amount": 2000.5, "CurrencyCode": "USD"},
		"CampaignFlights": []map[string]any{
			{"CampaignFlightId": 11, "StartDateInclusiveUTC": "2026-01-01T00:00:00", "EndDateExclusiveUTC": nil},
		},
	}))

	campaign, err := newTestService(t, fake).Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Spring", campaign.CampaignName)
	require.NotNil(t, campaign.Budget)
	assert.Equal(t, "2000.5", campaign.Budget.Amount.String())
	require.Len(t, campaign.Flights, 1)
	assert.Nil(t, campaign.Flights[0].EndDateExclusiveUTC)

	call := fake.CallsTo("GET campaign/c1")
	require.Len(t, call, 1)
	assert.Equal(t, "test-token", call[0].Header.Get("TTD-Auth"))
}

func TestGetRequiresID(t *testing.T) {
	_, err := newTestService(t, ttdtest.New(t)).Get(context.Background(), "")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestGetSurfacesRESTMessage(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodGet, "campaign/nope", ttdtest.JSON(http.StatusNotFound, map[string]any{"Message": "Campaign not found"}))
	_, err := newTestService(t, fake).Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "Campaign not found")
}

func TestCurrentFlight(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	flight := func(id int64, start time.Time, end *time.Time) Flight {
		f := Flight{CampaignFlightID: ttd.Long(id)}
		f.StartDateInclusiveUTC.Time = start
		if end != nil {
			f.EndDateExclusiveUTC = &ttd.Timestamp{Time: *end}
		}
		return f
	}

	campaign := Campaign{Flights: []Flight{
		flight(1, past, &past),
		flight(2, future, nil),
		flight(3, past, &future),
		flight(4, past, nil),
	}}
	current, ok := campaign.CurrentFlight(now)
	require.True(t, ok)
	assert.EqualValues(t, 3, current.CampaignFlightID)

	// start must be strictly before now
	_, ok = Campaign{Flights: []Flight{flight(5, now, nil)}}.CurrentFlight(now)
	assert.False(t, ok)

	// a flight without a start date is never current
	current, ok = Campaign{Flights: []Flight{
		flight(6, time.Time{}, &future),
		flight(7, past, nil),
	}}.CurrentFlight(now)
	require.True(t, ok)
	assert.EqualValues(t, 7, current.CampaignFlightID)
}

func TestCreateSendsKokaiBodyAndRequiresEcho(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodPost, "campaign", ttdtest.JSON(http.StatusOK, map[string]any{
		"CampaignId": "new-1",
		"Version":    "Kokai",
		"Budget":     map[string]any{"Amount": 1200000, "CurrencyCode": "USD"},
	}))
	now := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)
	input := DefaultCampaignInput("adv-1", "seed-1", decimal.NewFromInt(1200000), now)

	created, err := newTestService(t, fake).Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "new-1", created.CampaignID)

	body := fake.CallsTo("POST campaign")[0].JSONBody()
	assert.Equal(t, "adv-1", body["AdvertiserId"])
	assert.Equal(t, "Kokai", body["Version"])
	assert.Equal(t, "seed-1", body["SeedId"])
	assert.Equal(t, "2026-05-11T00:00:00", body["StartDate"])
	assert.Equal(t, "2026-07-09T23:59:00", body["EndDate"])
	assert.Equal(t, []any{}, body["CampaignConversionReportingColumns"])
	assert.Equal(t, map[string]any{"Amount": float64(1200000), "CurrencyCode": "USD"}, body["Budget"])
	assert.Equal(t, true, body["IncludeDefaultsFromAdvertiser"])
}

func TestCreateRejectsIncompleteResponse(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodPost, "campaign", ttdtest.JSON(http.StatusOK, map[string]any{"CampaignId": "new-1"}))
	input := DefaultCampaignInput("adv-1", "", decimal.NewFromInt(10), time.Now())
	_, err := newTestService(t, fake).Create(context.Background(), input)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestCreateValidatesInput(t *testing.T) {
	fake := ttdtest.New(t)
	input := DefaultCampaignInput("", "", decimal.Zero, time.Now())
	input.EndDate = input.StartDate.Add(-time.Hour)

	_, err := newTestService(t, fake).Create(context.Background(), input)
	require.Error(t, err)
	e := pkgerrors.As(err)
	require.NotNil(t, e)
	details, ok := e.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "advertiser_id")
	assert.Contains(t, details, "budget")
	assert.Contains(t, details, "end_date")
	assert.Empty(t, fake.Calls())
}

func TestCreateAdGroupOmitsEmptyChannel(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodPost, "adgroup", ttdtest.JSON(http.StatusOK, map[string]any{"AdGroupId": "ag-1", "IsEnabled": true}))
	svc := newTestService(t, fake)

	created, err := svc.CreateAdGroup(context.Background(), DefaultAdGroupInput("c1", ""))
	require.NoError(t, err)
	assert.True(t, created.IsEnabled)
	body := fake.Calls()[0].JSONBody()
	assert.NotContains(t, body, "ChannelId")
	rtb := body["RTBAttributes"].(map[string]any)
	assert.Equal(t, map[string]any{"Amount": 5.0, "CurrencyCode": "USD"}, rtb["MaxBidCPM"])

	_, err = svc.CreateAdGroup(context.Background(), DefaultAdGroupInput("c1", "Video"))
	require.NoError(t, err)
	assert.Equal(t, "Video", fake.Calls()[1].JSONBody()["ChannelId"])
}

func TestVersionsRESTDefaultsToSolimar(t *testing.T) {
	fake := ttdtest.New(t).OnREST(http.MethodGet, "campaign/c1", ttdtest.JSON(http.StatusOK, map[string]any{"CampaignId": "c1", "Version": "Kokai"}))
	versions, err := newTestService(t, fake).VersionsREST(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, Versions{Version: enums.CampaignVersionKokai, BudgetingVersion: enums.CampaignVersionSolimar}, versions)
}

func TestVersionsGraphQL(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("budgetMigrationStatus", ttdtest.Data(map[string]any{
		"campaign": map[string]any{
			"version":               "KOKAI",
			"budgetMigrationStatus": map[string]any{"currentBudgetingVersion": "KOKAI"},
		},
	}))
	versions, err := newTestService(t, fake).Versions(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, enums.CampaignVersionKokai, versions.BudgetingVersion)
	assert.Equal(t, map[string]any{"campaignId": "c1"}, fake.Calls()[0].Variables)
}

func TestUpgradeSendsSeedOnlyWhenSet(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("campaignVersionUpgrade", ttdtest.Data(map[string]any{
		"campaignVersionUpgrade": map[string]any{
			"data":       []map[string]any{{"wasUpgraded": true}},
			"userErrors": []any{},
		},
	}))
	svc := newTestService(t, fake)

	ok, err := svc.UpgradeToKokai(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, fake.Calls()[0].Variables, "seedId")

	_, err = svc.UpgradeToKokai(context.Background(), "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", fake.Calls()[1].Variables["seedId"])
}

func TestUpgradeUserErrors(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("campaignVersionUpgrade", ttdtest.Data(map[string]any{
		"campaignVersionUpgrade": map[string]any{
			"data":       []map[string]any{{"wasUpgraded": false}},
			"userErrors": []map[string]any{{"field": []string{"campaigns", "0", "seedId"}, "message": "seed required"}},
		},
	}))
	_, err := newTestService(t, fake).UpgradeToKokai(context.Background(), "c1", "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUserError, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "campaigns.0.seedId: seed required")
}

func TestUpgradeWorkflowSkipsKokaiCampaign(t *testing.T) {
	fake := ttdtest.New(t).OnGraphQL("GetCampaignUpgradeCandidate", ttdtest.Data(map[string]any{
		"campaign": map[string]any{"id": "c1", "version": "KOKAI"},
	}))
	wfs, err := NewWorkflows(WorkflowParams{Service: newTestService(t, fake), CampaignID: "c1"})
	require.NoError(t, err)

	require.NoError(t, findWorkflow(t, wfs, WorkflowUpgradeKokai).Run(context.Background()))
	assert.Len(t, fake.Calls(), 1)
}

func TestUpgradeWorkflowPrintsDetails(t *testing.T) {
	fake := ttdtest.New(t).
		OnGraphQL("GetCampaignUpgradeCandidate", ttdtest.Data(map[string]any{
			"campaign": map[string]any{"id": "c1", "version": "SOLIMAR"},
		})).
		OnGraphQL("campaignVersionUpgrade", ttdtest.Data(map[string]any{
			"campaignVersionUpgrade": map[string]any{"data": []map[string]any{{"wasUpgraded": true}}},
		})).
		OnGraphQL("VerifyUpgradeData", ttdtest.Data(map[string]any{
			"campaign": map[string]any{"isMarketplaceEnabledByDefault": true, "version": "KOKAI", "seed": map[string]any{"id": "s9"}},
		}))
	var out bytes.Buffer
	wfs, err := NewWorkflows(WorkflowParams{
		Service:    newTestService(t, fake),
		Printer:    workflows.NewPrinter(&out),
		CampaignID: "c1",
	})
	require.NoError(t, err)

	require.NoError(t, findWorkflow(t, wfs, WorkflowUpgradeKokai).Run(context.Background()))
	assert.Contains(t, out.String(), `"seedId": "s9"`)
}

func TestCreateWorkflowGraphQLVerifiesVersions(t *testing.T) {
	fake := ttdtest.New(t).
		OnREST(http.MethodPost, "campaign", ttdtest.JSON(http.StatusOK, map[string]any{
			"CampaignId": "new-1", "Version": "Kokai", "Budget": map[string]any{"Amount": 10, "CurrencyCode": "USD"},
		})).
		OnREST(http.MethodPost, "adgroup", ttdtest.JSON(http.StatusOK, map[string]any{"AdGroupId": "ag-1", "IsEnabled": true})).
		OnGraphQL("budgetMigrationStatus", ttdtest.Data(map[string]any{
			"campaign": map[string]any{"version": "KOKAI", "budgetMigrationStatus": map[string]any{"currentBudgetingVersion": "KOKAI"}},
		}))
	wfs, err := NewWorkflows(WorkflowParams{
		Service:      newTestService(t, fake),
		AdvertiserID: "adv-1",
		Budget:       decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	require.NoError(t, findWorkflow(t, wfs, WorkflowCreateGraphQL).Run(context.Background()))
	assert.Equal(t, "Video", fake.CallsTo("POST adgroup")[0].JSONBody()["ChannelId"])
	assert.Len(t, fake.CallsTo("budgetMigrationStatus"), 1)
}

func findWorkflow(t *testing.T, wfs []workflows.Workflow, name string) workflows.Workflow {
	t.Helper()
	for _, wf := range wfs {
		if wf.Name() == name {
			return wf
		}
	}
	t.Fatalf("workflow %s not registered", name)
	return nil
}
