package seeds

import (
	"context"
	"fmt"
	"net/http"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/pagination"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
	"github.com/angelmondragon/ttd-workflows/pkg/validate"
)

const (
	firstPartyPath = "dmp/firstparty/advertiser"

	seedCreateMutation = `
mutation SeedCreate($advertiserId: ID!, $name: String!, $firstPartyDataInclusionIds: [ID!]) {
  seedCreate(input: {
    advertiserId: $advertiserId
    name: $name
    targetingData: {
      firstPartyDataInclusionIds: $firstPartyDataInclusionIds
    }
  }) {
    data {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

	setDefaultSeedMutation = `
mutation AdvertiserSetDefaultSeed($advertiserId: ID!, $seedId: ID!) {
  advertiserSetDefaultSeed(input: { advertiserId: $advertiserId, seedId: $seedId }) {
    data {
      defaultSeed {
        id
      }
    }
    userErrors {
      field
      message
    }
  }
}`

	seedUpdateWithTargeting = `
mutation SeedUpdate($id: ID!, $name: String, $firstPartyDataInclusionIds: [ID!]) {
  seedUpdate(input: {
    id: $id
    name: $name
    targetingData: { firstPartyDataInclusionIds: $firstPartyDataInclusionIds }
  }) {
    data {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

	seedRename = `
mutation SeedUpdate($id: ID!, $name: String) {
  seedUpdate(input: {
    id: $id
    name: $name
  }) {
    data {
      id
    }
    userErrors {
      field
      message
    }
  }
}`
)

type platform interface {
	REST(ctx context.Context, method, path string, body, out any) error
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error
}

// ServiceParams groups dependencies for the seed service.
type ServiceParams struct {
	Client platform
	Logger *logger.Logger
}

// Service manages advertiser seeds and the first-party data they include.
type Service interface {
	FirstPartyData(ctx context.Context, advertiserID string, start, size int) ([]FirstPartyData, error)
	Create(ctx context.Context, input CreateInput) (string, error)
	SetAdvertiserDefault(ctx context.Context, advertiserID, seedID string) (string, error)
	Update(ctx context.Context, input UpdateInput) (string, error)
}

type service struct {
	client platform
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform client is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{client: params.Client, logg: logg}, nil
}

// FirstPartyData reads one offset page of the advertiser's segments.
func (s *service) FirstPartyData(ctx context.Context, advertiserID string, start, size int) ([]FirstPartyData, error) {
	query := firstPartyQuery{AdvertiserID: advertiserID, PageStartIndex: start, PageSize: size}
	if err := validate.Struct(query); err != nil {
		return nil, err
	}
	var page pagination.OffsetPage[FirstPartyData]
	if err := s.client.REST(ctx, http.MethodPost, firstPartyPath, query, &page); err != nil {
		return nil, fmt.Errorf("first-party data for advertiser %s: %w", advertiserID, err)
	}
	return page.Result, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (string, error) {
	if err := validate.Struct(input); err != nil {
		return "", err
	}
	ids := input.FirstPartyDataIDs
	if ids == nil {
		ids = []string{}
	}
	var resp struct {
		SeedCreate seedPayload `json:"seedCreate"`
	}
	vars := map[string]any{
		"advertiserId":               input.AdvertiserID,
		"name":                       input.Name,
		"firstPartyDataInclusionIds": ids,
	}
	if err := s.client.GraphQL(ctx, seedCreateMutation, vars, &resp); err != nil {
		return "", err
	}
	return seedID("seedCreate", resp.SeedCreate)
}

// SetAdvertiserDefault makes seedID the advertiser's default seed and
// returns the default the platform now reports.
func (s *service) SetAdvertiserDefault(ctx context.Context, advertiserID, seedID string) (string, error) {
	if advertiserID == "" || seedID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "advertiser id and seed id are required")
	}
	var resp struct {
		AdvertiserSetDefaultSeed struct {
			Data *struct {
				DefaultSeed *struct {
					ID string `json:"id"`
				} `json:"defaultSeed"`
			} `json:"data"`
			UserErrors []ttd.UserError `json:"userErrors"`
		} `json:"advertiserSetDefaultSeed"`
	}
	vars := map[string]any{"advertiserId": advertiserID, "seedId": seedID}
	if err := s.client.GraphQL(ctx, setDefaultSeedMutation, vars, &resp); err != nil {
		return "", err
	}
	payload := resp.AdvertiserSetDefaultSeed
	if err := ttd.CheckUserErrors("advertiserSetDefaultSeed", payload.UserErrors); err != nil {
		return "", err
	}
	if payload.Data == nil || payload.Data.DefaultSeed == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "advertiserSetDefaultSeed returned no default seed")
	}
	return payload.Data.DefaultSeed.ID, nil
}

// Update sends only the fields input carries. Leaving the targeting data
// out keeps the seed's current segments.
func (s *service) Update(ctx context.Context, input UpdateInput) (string, error) {
	if err := validate.Struct(input); err != nil {
		return "", err
	}
	if !input.Changed() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "seed update carries no changes")
	}
	vars := map[string]any{"id": input.SeedID, "name": input.Name}
	mutation := seedRename
	if input.FirstPartyDataIDs != nil {
		mutation = seedUpdateWithTargeting
		vars["firstPartyDataInclusionIds"] = input.FirstPartyDataIDs
	}
	var resp struct {
		SeedUpdate seedPayload `json:"seedUpdate"`
	}
	if err := s.client.GraphQL(ctx, mutation, vars, &resp); err != nil {
		return "", err
	}
	return seedID("seedUpdate", resp.SeedUpdate)
}

func seedID(op string, payload seedPayload) (string, error) {
	if err := ttd.CheckUserErrors(op, payload.UserErrors); err != nil {
		return "", err
	}
	if payload.Data == nil || payload.Data.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, op+" returned no seed id")
	}
	return payload.Data.ID, nil
}
