package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/poll"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

const (
	defaultInterval = 30 * time.Second
	defaultMaxWait  = 30 * time.Minute
)

const fileUploadMutation = `
mutation {
  fileUpload {
    id
    uploadUrl
  }
}`

const bulkCreateCampaignsMutation = `
mutation BulkCampaignCreation($advertiserId: ID!, $uploadId: ID!) {
  bulkCreateCampaigns(input: {advertiserId: $advertiserId, fileId: $uploadId}) {
    data {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const jobProgressQuery = `
query GetBulkJobProgress($jobId: ID!) {
  jobProgress(id: $jobId) {
    jobStatus
    validationErrors
  }
}`

type platform interface {
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error
	Upload(ctx context.Context, uploadURL string, contents []byte) error
}

// FileUpload is a staged file slot with its presigned URL.
type FileUpload struct {
	ID        string `json:"id"`
	UploadURL string `json:"uploadUrl"`
}

// JobProgress is the state of a bulk job. ValidationErrors is passed
// through untouched; its shape varies by failure.
type JobProgress struct {
	JobStatus        enums.BulkJobStatus `json:"jobStatus"`
	ValidationErrors json.RawMessage     `json:"validationErrors,omitempty"`
}

// ServiceParams groups dependencies for the bulk service.
type ServiceParams struct {
	Client   platform
	Logger   *logger.Logger
	Interval time.Duration
	MaxWait  time.Duration
}

// Service drives the bulk campaign create flow.
type Service interface {
	RequestUpload(ctx context.Context) (FileUpload, error)
	Upload(ctx context.Context, uploadURL string, contents []byte) error
	Submit(ctx context.Context, advertiserID, fileID string) (string, error)
	Progress(ctx context.Context, jobID string) (JobProgress, error)
	Monitor(ctx context.Context, jobID string) (JobProgress, error)
}

type service struct {
	client   platform
	logg     *logger.Logger
	interval time.Duration
	maxWait  time.Duration
}

// NewService builds a bulk service. Interval and MaxWait default to 30s and
// 30m.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform client is required")
	}
	svc := &service{
		client:   params.Client,
		logg:     params.Logger,
		interval: params.Interval,
		maxWait:  params.MaxWait,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	if svc.maxWait <= 0 {
		svc.maxWait = defaultMaxWait
	}
	return svc, nil
}

// RequestUpload reserves a file slot.
func (s *service) RequestUpload(ctx context.Context) (FileUpload, error) {
	var resp struct {
		FileUpload *FileUpload `json:"fileUpload"`
	}
	if err := s.client.GraphQL(ctx, fileUploadMutation, nil, &resp); err != nil {
		return FileUpload{}, err
	}
	if resp.FileUpload == nil || resp.FileUpload.ID == "" || resp.FileUpload.UploadURL == "" {
		return FileUpload{}, pkgerrors.New(pkgerrors.CodeDependency, "fileUpload returned no id or upload url")
	}
	return *resp.FileUpload, nil
}

func (s *service) Upload(ctx context.Context, uploadURL string, contents []byte) error {
	return s.client.Upload(ctx, uploadURL, contents)
}

// Submit starts the bulk create job for an uploaded file.
func (s *service) Submit(ctx context.Context, advertiserID, fileID string) (string, error) {
	if advertiserID == "" || fileID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "advertiser id and file id are required")
	}
	var resp struct {
		BulkCreateCampaigns struct {
			Data *struct {
				ID string `json:"id"`
			} `json:"data"`
			UserErrors []ttd.UserError `json:"userErrors"`
		} `json:"bulkCreateCampaigns"`
	}
	vars := map[string]any{"advertiserId": advertiserID, "uploadId": fileID}
	if err := s.client.GraphQL(ctx, bulkCreateCampaignsMutation, vars, &resp); err != nil {
		return "", err
	}
	payload := resp.BulkCreateCampaigns
	if err := ttd.CheckUserErrors("bulkCreateCampaigns", payload.UserErrors); err != nil {
		return "", err
	}
	if payload.Data == nil || payload.Data.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "bulkCreateCampaigns returned no job id")
	}
	return payload.Data.ID, nil
}

// Progress reads the job status once.
func (s *service) Progress(ctx context.Context, jobID string) (JobProgress, error) {
	var resp struct {
		JobProgress *JobProgress `json:"jobProgress"`
	}
	if err := s.client.GraphQL(ctx, jobProgressQuery, map[string]any{"jobId": jobID}, &resp); err != nil {
		return JobProgress{}, err
	}
	if resp.JobProgress == nil {
		return JobProgress{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("bulk job %s not found", jobID))
	}
	return *resp.JobProgress, nil
}

// Monitor waits one interval before every read while the job is in
// progress. ERROR maps to JOB_FAILED and VALIDATION_FAILURE to
// VALIDATION_ERROR carrying the validation errors.
func (s *service) Monitor(ctx context.Context, jobID string) (JobProgress, error) {
	ctx = s.logg.WithJobID(ctx, jobID)
	var last JobProgress
	err := poll.Until(ctx, poll.Options{
		Interval:   s.interval,
		MaxWait:    s.maxWait,
		DelayFirst: true,
		Name:       "bulk job " + jobID,
	}, func(ctx context.Context) (bool, error) {
		progress, err := s.Progress(ctx, jobID)
		if err != nil {
			return false, err
		}
		last = progress
		if !progress.JobStatus.IsTerminal() {
			s.logg.Info(s.logg.WithField(ctx, "status", progress.JobStatus), "bulk job still running")
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return last, err
	}

	switch last.JobStatus {
	case enums.BulkJobStatusComplete:
		s.logg.Info(ctx, "bulk campaign creation succeeded")
		return last, nil
	case enums.BulkJobStatusError:
		return last, pkgerrors.New(pkgerrors.CodeJobFailed, "bulk job hit an internal error; submit it again")
	default:
		return last, pkgerrors.New(pkgerrors.CodeValidation, "bulk job rejected invalid data in the uploaded file").
			WithDetails(last.ValidationErrors)
	}
}
