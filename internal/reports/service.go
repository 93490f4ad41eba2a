package reports

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

const (
	metadataQuery = `
query ProgrammaticTileReportMetadata($adGroupId: ID, $campaignId: ID, $advertiserId: ID, $tile: ID!) {
  programmaticTileReportMetadata(input: {
    adGroupId: $adGroupId
    campaignId: $campaignId
    advertiserId: $advertiserId
    tile: $tile
  }) {
    data {
      available
      schedule
      type
    }
    userErrors {
      field
      message
    }
  }
}`

	// First %s is the report enum type, the others the mutation field.
	executeTemplate = `
mutation ExecuteReport($entityId: ID!, $reportType: %s!) {
  %s(input: { id: $entityId, report: $reportType }) {
    data {
      id
      url
      hasSampleData
    }
    userErrors {
      field
      message
    }
  }
}`
)

type platform interface {
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// ServiceParams groups dependencies for the report service.
type ServiceParams struct {
	Client platform
	Logger *logger.Logger
}

// Service reads report metadata and runs immediate reports.
type Service interface {
	Metadata(ctx context.Context, target Target, tile string) ([]MetadataEntry, error)
	Execute(ctx context.Context, target Target, reportType string) (Execution, error)
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
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

// Metadata lists the reports a tile offers for the target.
func (s *service) Metadata(ctx context.Context, target Target, tile string) ([]MetadataEntry, error) {
	if strings.TrimSpace(tile) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report tile is required")
	}
	vars := map[string]any{
		"adGroupId":    nil,
		"campaignId":   nil,
		"advertiserId": nil,
		"tile":         tile,
	}
	switch target.Type {
	case enums.ReportTypeAdGroup:
		vars["adGroupId"] = target.ID
	case enums.ReportTypeCampaign:
		vars["campaignId"] = target.ID
	case enums.ReportTypeAdvertiser:
		vars["advertiserId"] = target.ID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown report target %q", target.Type))
	}

	var resp struct {
		Metadata struct {
			Data       []MetadataEntry `json:"data"`
			UserErrors []ttd.UserError `json:"userErrors"`
		} `json:"programmaticTileReportMetadata"`
	}
	if err := s.client.GraphQL(ctx, metadataQuery, vars, &resp); err != nil {
		return nil, err
	}
	if err := ttd.CheckUserErrors("programmaticTileReportMetadata", resp.Metadata.UserErrors); err != nil {
		return nil, err
	}
	return resp.Metadata.Data, nil
}

// Execute runs reportType against the target now. An empty report type
// runs the ad group report.
func (s *service) Execute(ctx context.Context, target Target, reportType string) (Execution, error) {
	op, ok := executeOperations[target.Type]
	if !ok {
		return Execution{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown report target %q", target.Type))
	}
	if target.ID == "" {
		return Execution{}, pkgerrors.New(pkgerrors.CodeValidation, "report target id is required")
	}
	reportType = strings.ToUpper(strings.TrimSpace(reportType))
	if reportType == "" {
		reportType = string(enums.ReportTypeAdGroup)
	}

	mutation := fmt.Sprintf(executeTemplate, op.enumType, op.mutation)
	vars := map[string]any{"entityId": target.ID, "reportType": reportType}
	var resp map[string]executePayload
	if err := s.client.GraphQL(ctx, mutation, vars, &resp); err != nil {
		return Execution{}, err
	}
	payload, ok := resp[op.mutation]
	if !ok {
		return Execution{}, pkgerrors.New(pkgerrors.CodeDependency, op.mutation+" missing from response")
	}
	if err := ttd.CheckUserErrors(op.mutation, payload.UserErrors); err != nil {
		return Execution{}, err
	}
	if payload.Data == nil {
		return Execution{}, pkgerrors.New(pkgerrors.CodeDependency, op.mutation+" returned no report")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"report_id":   payload.Data.ID,
		"report_type": reportType,
		"target_type": target.Type,
		"target_id":   target.ID,
	}), "report executed")
	return *payload.Data, nil
}

func (s *service) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	if url == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "report url is required")
	}
	return s.client.Download(ctx, url, w)
}
