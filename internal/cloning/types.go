package cloning

import (
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

// VerifiedClone reports what a cloned campaign ended up running on.
type VerifiedClone struct {
	CampaignID    string `json:"campaign_id"`
	IsKokai       bool   `json:"is_kokai"`
	IsKokaiBudget bool   `json:"is_kokai_budget"`
}

type restCloneRequest struct {
	CampaignID   string `json:"CampaignId"`
	CampaignName string `json:"CampaignName"`
	Version      string `json:"Version,omitempty"`
}

type restCloneResponse struct {
	ReferenceID *ttd.Long `json:"ReferenceId"`
}

type restCloneStatus struct {
	Status     enums.RESTCloneStatus `json:"Status"`
	CampaignID string                `json:"CampaignId"`
}

type cloneProgress struct {
	Status enums.CloneJobStatus `json:"status"`
	Jobs   struct {
		Nodes []cloneNode `json:"nodes"`
	} `json:"jobs"`
}

type cloneNode struct {
	Status    enums.CloneJobStatus `json:"status"`
	CloneInfo *struct {
		CampaignClone *struct {
			ID string `json:"id"`
		} `json:"campaignClone"`
	} `json:"cloneInfo"`
}

func (n cloneNode) cloneID() string {
	if n.CloneInfo == nil || n.CloneInfo.CampaignClone == nil {
		return ""
	}
	return n.CloneInfo.CampaignClone.ID
}
