package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const WorkflowBulkCreate = "campaign-bulk-create"

// WorkflowParams configures the bulk create workflow.
type WorkflowParams struct {
	Service      Service
	Logger       *logger.Logger
	Printer      *workflows.Printer
	AdvertiserID string
	Count        int
	Now          func() time.Time
}

type createWorkflow struct {
	params WorkflowParams
}

// NewWorkflow returns the bulk campaign create workflow.
func NewWorkflow(params WorkflowParams) (workflows.Workflow, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("bulk service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &createWorkflow{params: params}, nil
}

func (w *createWorkflow) Name() string { return WorkflowBulkCreate }

func (w *createWorkflow) Description() string {
	return "upload a JSONL file of campaigns and create them with one bulk job"
}

func (w *createWorkflow) Run(ctx context.Context) error {
	p := w.params
	ctx = p.Logger.WithAdvertiserID(ctx, p.AdvertiserID)

	contents, err := BuildCampaignsJSONL(p.AdvertiserID, p.Count, p.Now())
	if err != nil {
		return err
	}
	upload, err := p.Service.RequestUpload(ctx)
	if err != nil {
		return fmt.Errorf("request upload: %w", err)
	}
	if err := p.Service.Upload(ctx, upload.UploadURL, contents); err != nil {
		return fmt.Errorf("upload campaigns file: %w", err)
	}
	p.Logger.Info(p.Logger.WithField(ctx, "file_id", upload.ID), "campaigns file uploaded")

	jobID, err := p.Service.Submit(ctx, p.AdvertiserID, upload.ID)
	if err != nil {
		return fmt.Errorf("submit bulk job: %w", err)
	}
	progress, err := p.Service.Monitor(ctx, jobID)
	if err != nil {
		return err
	}
	p.Printer.Print("bulk job", map[string]any{"job_id": jobID, "status": progress.JobStatus, "campaigns": p.Count})
	return nil
}
