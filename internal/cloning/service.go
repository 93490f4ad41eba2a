package cloning

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/poll"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval = 10 * time.Second
	defaultMaxWait  = 600 * time.Second

	// statusConcurrency bounds parallel status reads within one REST round.
	statusConcurrency = 4
	// maxStatusFailures is how many consecutive failed status reads drop a
	// REST job from the poll.
	maxStatusFailures = 3
)

const (
	cloneMutation = `
mutation CloneCampaign($campaignId: String!, $numberOfClones: Int!, $cloneNames: [String!]!) {
  campaignClonesCreate(input: {
    campaignCloneData: [
      {
        campaignId: $campaignId
        numberOfClones: $numberOfClones
        cloneNames: $cloneNames
      }
    ]
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

	cloneProgressQuery = `
query GetCloneCampaignProgress($jobId: Long!) {
  campaignCloneProgress(id: $jobId) {
    status
    jobs {
      nodes {
        status
        cloneInfo {
          campaignClone {
            id
          }
        }
      }
    }
  }
}`

	verifyClonesQuery = `
query VerifyCloneCampaignsAreKokai($campaignIds: [String!]!) {
  campaigns(where: { id: { in: $campaignIds } }) {
    nodes {
      id
      version
      budgetMigrationStatus {
        currentBudgetingVersion
      }
    }
  }
}`
)

type platform interface {
	REST(ctx context.Context, method, path string, body, out any) error
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error
}

// ServiceParams groups dependencies for the clone service.
type ServiceParams struct {
	Client   platform
	Logger   *logger.Logger
	Interval time.Duration
	MaxWait  time.Duration
}

// Service submits campaign clone jobs and waits for them.
type Service interface {
	CloneREST(ctx context.Context, campaignID string, names []string, upgradeToKokai bool) ([]ttd.Long, error)
	PollRESTJobs(ctx context.Context, jobIDs []ttd.Long) ([]string, error)
	CloneGraphQL(ctx context.Context, campaignID string, names []string) (ttd.Long, error)
	PollGraphQLJob(ctx context.Context, jobID ttd.Long) ([]string, error)
	Verify(ctx context.Context, campaignIDs []string) ([]VerifiedClone, error)
}

type service struct {
	client   platform
	logg     *logger.Logger
	interval time.Duration
	maxWait  time.Duration
}

// NewService builds a clone service. Interval and MaxWait default to 10s
// and 10m.
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

func validateCloneArgs(campaignID string, names []string) error {
	if campaignID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	if len(names) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one clone name is required")
	}
	for i, name := range names {
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("clone name %d is empty", i))
		}
	}
	return nil
}

// CloneREST submits one clone per name and returns the reference IDs in
// name order.
func (s *service) CloneREST(ctx context.Context, campaignID string, names []string, upgradeToKokai bool) ([]ttd.Long, error) {
	if err := validateCloneArgs(campaignID, names); err != nil {
		return nil, err
	}
	ctx = s.logg.WithCampaignID(ctx, campaignID)

	jobIDs := make([]ttd.Long, 0, len(names))
	for _, name := range names {
		body := restCloneRequest{CampaignID: campaignID, CampaignName: name}
		if upgradeToKokai {
			body.Version = enums.CampaignVersionKokai.REST()
		}
		var resp restCloneResponse
		if err := s.client.REST(ctx, http.MethodPost, "campaign/clone", body, &resp); err != nil {
			return jobIDs, fmt.Errorf("clone %q: %w", name, err)
		}
		if resp.ReferenceID == nil {
			return jobIDs, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("clone %q: response missing ReferenceId", name))
		}
		jobIDs = append(jobIDs, *resp.ReferenceID)
		s.logg.Info(s.logg.WithJobID(ctx, resp.ReferenceID.String()), "campaign submitted for cloning")
	}
	return jobIDs, nil
}

type restJob struct {
	status   enums.RESTCloneStatus
	failures int
}

// PollRESTJobs reads every in-flight job's status each round until none is
// in progress. Completed jobs contribute their campaign ID; failed jobs are
// logged and dropped.
func (s *service) PollRESTJobs(ctx context.Context, jobIDs []ttd.Long) ([]string, error) {
	jobs := make(map[ttd.Long]*restJob, len(jobIDs))
	order := make([]ttd.Long, 0, len(jobIDs))
	for _, id := range jobIDs {
		if _, dup := jobs[id]; dup {
			continue
		}
		jobs[id] = &restJob{status: enums.RESTCloneStatusInProgress}
		order = append(order, id)
	}

	var (
		mu     sync.Mutex
		cloned []string
	)
	err := poll.Until(ctx, poll.Options{Interval: s.interval, MaxWait: s.maxWait, Name: "campaign clone jobs"}, func(ctx context.Context) (bool, error) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(statusConcurrency)
		for _, id := range order {
			job := jobs[id]
			if job.status != enums.RESTCloneStatusInProgress {
				continue
			}
			g.Go(func() error {
				var status restCloneStatus
				err := s.client.REST(gctx, http.MethodGet, "campaign/clone/status/"+id.String(), nil, &status)

				mu.Lock()
				defer mu.Unlock()
				jobCtx := s.logg.WithJobID(ctx, id.String())
				if err != nil {
					job.failures++
					s.logg.Warn(s.logg.WithField(jobCtx, "error", err.Error()), "polling clone job status failed")
					if job.failures >= maxStatusFailures {
						job.status = enums.RESTCloneStatusFailed
					}
					return nil
				}
				job.failures = 0
				job.status = status.Status
				switch status.Status {
				case enums.RESTCloneStatusCompleted:
					cloned = append(cloned, status.CampaignID)
				case enums.RESTCloneStatusFailed:
					s.logg.Warn(jobCtx, "cloning job did not succeed")
				case enums.RESTCloneStatusInProgress:
				default:
					// unknown statuses keep the job in flight
					job.status = enums.RESTCloneStatusInProgress
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return false, err
		}

		inFlight := 0
		for _, job := range jobs {
			if job.status == enums.RESTCloneStatusInProgress {
				inFlight++
			}
		}
		if inFlight > 0 {
			s.logg.Info(s.logg.WithField(ctx, "in_flight", inFlight), "clone jobs still in progress")
		}
		return inFlight == 0, nil
	})
	if err != nil {
		return cloned, err
	}
	return cloned, nil
}

// CloneGraphQL submits a single job creating one clone per name.
func (s *service) CloneGraphQL(ctx context.Context, campaignID string, names []string) (ttd.Long, error) {
	if err := validateCloneArgs(campaignID, names); err != nil {
		return 0, err
	}
	var resp struct {
		CampaignClonesCreate struct {
			Data []struct {
				ID ttd.Long `json:"id"`
			} `json:"data"`
			UserErrors []ttd.UserError `json:"userErrors"`
		} `json:"campaignClonesCreate"`
	}
	variables := map[string]any{
		"campaignId":     campaignID,
		"numberOfClones": len(names),
		"cloneNames":     names,
	}
	if err := s.client.GraphQL(ctx, cloneMutation, variables, &resp); err != nil {
		return 0, err
	}
	payload := resp.CampaignClonesCreate
	if err := ttd.CheckUserErrors("campaignClonesCreate", payload.UserErrors); err != nil {
		return 0, err
	}
	if len(payload.Data) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "campaignClonesCreate returned no job")
	}
	jobID := payload.Data[0].ID
	s.logg.Info(s.logg.WithJobID(s.logg.WithCampaignID(ctx, campaignID), jobID.String()), "campaign submitted for cloning")
	return jobID, nil
}

// PollGraphQLJob waits for a clone job. COMPLETED yields every clone,
// FAILED yields only the clones that completed, IGNORED is an error.
func (s *service) PollGraphQLJob(ctx context.Context, jobID ttd.Long) ([]string, error) {
	ctx = s.logg.WithJobID(ctx, jobID.String())
	var cloned []string
	err := poll.Until(ctx, poll.Options{Interval: s.interval, MaxWait: s.maxWait, Name: "campaign clone job " + jobID.String()}, func(ctx context.Context) (bool, error) {
		var resp struct {
			CampaignCloneProgress *cloneProgress `json:"campaignCloneProgress"`
		}
		if err := s.client.GraphQL(ctx, cloneProgressQuery, map[string]any{"jobId": jobID}, &resp); err != nil {
			return false, err
		}
		progress := resp.CampaignCloneProgress
		if progress == nil {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("clone job %s not found", jobID))
		}

		switch progress.Status {
		case enums.CloneJobStatusCompleted:
			for _, node := range progress.Jobs.Nodes {
				if id := node.cloneID(); id != "" {
					cloned = append(cloned, id)
				}
			}
			return true, nil
		case enums.CloneJobStatusFailed:
			for _, node := range progress.Jobs.Nodes {
				if id := node.cloneID(); node.Status == enums.CloneJobStatusCompleted && id != "" {
					cloned = append(cloned, id)
				}
			}
			s.logg.Warn(s.logg.WithField(ctx, "cloned_ids", cloned), "cloning job did not fully succeed")
			return true, nil
		case enums.CloneJobStatusIgnored:
			return false, pkgerrors.New(pkgerrors.CodeJobFailed, "the cloning job was ignored; submit it again")
		default:
			s.logg.Info(s.logg.WithField(ctx, "status", progress.Status), "clone job still running")
			return false, nil
		}
	})
	return cloned, err
}

// Verify reads version and budgeting version of each clone.
func (s *service) Verify(ctx context.Context, campaignIDs []string) ([]VerifiedClone, error) {
	if len(campaignIDs) == 0 {
		return nil, nil
	}
	var resp struct {
		Campaigns struct {
			Nodes []struct {
				ID                    string `json:"id"`
				Version               string `json:"version"`
				BudgetMigrationStatus *struct {
					CurrentBudgetingVersion string `json:"currentBudgetingVersion"`
				} `json:"budgetMigrationStatus"`
			} `json:"nodes"`
		} `json:"campaigns"`
	}
	if err := s.client.GraphQL(ctx, verifyClonesQuery, map[string]any{"campaignIds": campaignIDs}, &resp); err != nil {
		return nil, fmt.Errorf("verify clones: %w", err)
	}
	verified := make([]VerifiedClone, 0, len(resp.Campaigns.Nodes))
	for _, node := range resp.Campaigns.Nodes {
		clone := VerifiedClone{
			CampaignID: node.ID,
			IsKokai:    node.Version == string(enums.CampaignVersionKokai),
		}
		if node.BudgetMigrationStatus != nil {
			clone.IsKokaiBudget = node.BudgetMigrationStatus.CurrentBudgetingVersion == string(enums.CampaignVersionKokai)
		}
		verified = append(verified, clone)
	}
	return verified, nil
}
