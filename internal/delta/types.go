package delta

import (
	"encoding/json"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

// AdGroupDelta is the REST ad group change set for one advertiser.
type AdGroupDelta struct {
	ElementIDs                []string `json:"ElementIds"`
	LastChangeTrackingVersion ttd.Long `json:"LastChangeTrackingVersion"`
}

type adGroupDeltaRequest struct {
	AdvertiserID              string `json:"AdvertiserId"`
	LastChangeTrackingVersion *int64 `json:"LastChangeTrackingVersion"`
	IncludeTemplates          bool   `json:"IncludeTemplates"`
	ReturnEntireAdGroup       bool   `json:"ReturnEntireAdGroup"`
}

// AdGroupBudget is the current flight budget of a changed ad group together
// with the budgeting version of its campaign.
type AdGroupBudget struct {
	AdGroupID        string      `json:"adGroupId"`
	Budget           *ttd.Amount `json:"currentFlightBudget"`
	BudgetingVersion string      `json:"budgetingVersion"`
}

// BudgetSplit separates ad group budgets by campaign budgeting version.
type BudgetSplit struct {
	Kokai   []AdGroupBudget `json:"kokai"`
	Solimar []AdGroupBudget `json:"solimar"`
}

type adGroupBudgetNode struct {
	ID     string `json:"id"`
	Budget *struct {
		CurrentFlightBudget *ttd.Amount `json:"currentFlightBudget"`
	} `json:"budget"`
	Campaign *struct {
		BudgetMigrationStatus *struct {
			CurrentBudgetingVersion string `json:"currentBudgetingVersion"`
		} `json:"budgetMigrationStatus"`
	} `json:"campaign"`
}

func (n adGroupBudgetNode) toBudget() AdGroupBudget {
	out := AdGroupBudget{AdGroupID: n.ID}
	if n.Budget != nil {
		out.Budget = n.Budget.CurrentFlightBudget
	}
	if n.Campaign != nil && n.Campaign.BudgetMigrationStatus != nil {
		out.BudgetingVersion = n.Campaign.BudgetMigrationStatus.CurrentBudgetingVersion
	}
	return out
}

// Change is one changed entity from a delta stream. Payload keeps the
// entity exactly as the platform returned it.
type Change struct {
	Kind       enums.DeltaKind `json:"kind"`
	EntityID   string          `json:"entityId"`
	ParentID   string          `json:"parentId,omitempty"`
	Name       string          `json:"name,omitempty"`
	IsArchived bool            `json:"isArchived"`
	Payload    json.RawMessage `json:"payload"`
}

// latestChanges keeps one change per kind and entity. The last occurrence
// wins and takes the position of the first.
func latestChanges(changes []Change) []Change {
	type key struct {
		kind enums.DeltaKind
		id   string
	}
	index := make(map[key]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		k := key{c.Kind, c.EntityID}
		if i, ok := index[k]; ok {
			out[i] = c
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}

// SyncResult is the outcome of one delta pass.
type SyncResult struct {
	Kind         enums.DeltaKind `json:"kind"`
	Scope        string          `json:"scope"`
	StartVersion int64           `json:"startVersion"`
	NextVersion  int64           `json:"nextVersion"`
	Changes      []Change        `json:"-"`
	Recorded     int64           `json:"recorded"`
}

// entityRef is the subset of fields every delta entity shares.
type entityRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsArchived bool   `json:"isArchived"`
	Partner    *struct {
		ID string `json:"id"`
	} `json:"partner"`
	Advertiser *struct {
		ID string `json:"id"`
	} `json:"advertiser"`
}

func changeFromRaw(kind enums.DeltaKind, raw json.RawMessage) (Change, error) {
	var ref entityRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return Change{}, err
	}
	change := Change{
		Kind:       kind,
		EntityID:   ref.ID,
		Name:       ref.Name,
		IsArchived: ref.IsArchived,
		Payload:    raw,
	}
	switch {
	case ref.Advertiser != nil:
		change.ParentID = ref.Advertiser.ID
	case ref.Partner != nil:
		change.ParentID = ref.Partner.ID
	}
	return change, nil
}

// deltaPayload is the union of the entity delta responses; only the list
// matching the queried field is populated.
type deltaPayload struct {
	NextChangeTrackingVersion     ttd.Long          `json:"nextChangeTrackingVersion"`
	MoreAvailable                 bool              `json:"moreAvailable"`
	CurrentMinimumTrackingVersion ttd.Long          `json:"currentMinimumTrackingVersion"`
	Advertisers                   []json.RawMessage `json:"advertisers"`
	Creatives                     []json.RawMessage `json:"creatives"`
	TrackingTags                  []json.RawMessage `json:"trackingTags"`
}

func (p deltaPayload) items() []json.RawMessage {
	switch {
	case p.Advertisers != nil:
		return p.Advertisers
	case p.Creatives != nil:
		return p.Creatives
	default:
		return p.TrackingTags
	}
}
