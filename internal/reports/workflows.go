package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const (
	WorkflowMetadata = "report-metadata"
	WorkflowExecute  = "report-execute"
)

// WorkflowParams carries the report target and output settings.
type WorkflowParams struct {
	Service      Service
	Logger       *logger.Logger
	Printer      *workflows.Printer
	AdGroupID    string
	CampaignID   string
	AdvertiserID string
	Tile         string
	ReportType   string
	// OutputPath, when set, receives the executed report.
	OutputPath string
}

func NewWorkflows(params WorkflowParams) ([]workflows.Workflow, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("report service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return []workflows.Workflow{
		workflows.Func{
			WorkflowName: WorkflowMetadata,
			Summary:      "list the reports a tile offers for an ad group, campaign or advertiser",
			Fn:           func(ctx context.Context) error { return runMetadata(ctx, params) },
		},
		workflows.Func{
			WorkflowName: WorkflowExecute,
			Summary:      "run an immediate report and optionally download it",
			Fn:           func(ctx context.Context) error { return runExecute(ctx, params) },
		},
	}, nil
}

func runMetadata(ctx context.Context, p WorkflowParams) error {
	target, err := ResolveTarget(p.AdGroupID, p.CampaignID, p.AdvertiserID)
	if err != nil {
		return err
	}
	entries, err := p.Service.Metadata(ctx, target, p.Tile)
	if err != nil {
		return fmt.Errorf("query report metadata: %w", err)
	}
	p.Printer.Print("report metadata", entries)
	return nil
}

func runExecute(ctx context.Context, p WorkflowParams) error {
	target, err := ResolveTarget(p.AdGroupID, p.CampaignID, p.AdvertiserID)
	if err != nil {
		return err
	}
	execution, err := p.Service.Execute(ctx, target, p.ReportType)
	if err != nil {
		return fmt.Errorf("execute report: %w", err)
	}
	p.Printer.Print("report", execution)

	if p.OutputPath == "" || execution.URL == "" {
		return nil
	}
	n, err := download(ctx, p.Service, execution.URL, p.OutputPath)
	if err != nil {
		return fmt.Errorf("download report %s: %w", execution.ID, err)
	}
	p.Logger.Info(p.Logger.WithFields(ctx, map[string]any{"path": p.OutputPath, "bytes": n}), "report downloaded")
	p.Printer.Printf("Report written to %s (%d bytes)", p.OutputPath, n)
	return nil
}

// download writes to a sibling temp file first so a failed transfer never
// leaves a partial report at path.
func download(ctx context.Context, svc Service, url, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := svc.Download(ctx, url, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	return n, os.Rename(tmp.Name(), path)
}
