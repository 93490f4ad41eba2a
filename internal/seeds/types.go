package seeds

import "github.com/angelmondragon/ttd-workflows/pkg/ttd"

// FirstPartyData is one advertiser first-party segment.
type FirstPartyData struct {
	FirstPartyDataID ttd.Long `json:"FirstPartyDataId"`
	Name             string   `json:"Name,omitempty"`
}

type firstPartyQuery struct {
	AdvertiserID   string `json:"AdvertiserId" validate:"required"`
	PageStartIndex int    `json:"PageStartIndex" validate:"gte=0"`
	PageSize       int    `json:"PageSize" validate:"gt=0"`
}

// CreateInput names a new seed and the segments it starts from.
type CreateInput struct {
	AdvertiserID      string   `json:"advertiser_id" validate:"required"`
	Name              string   `json:"name" validate:"required"`
	FirstPartyDataIDs []string `json:"first_party_data_ids"`
}

// UpdateInput changes a seed. Nil fields are left untouched; a non-nil
// FirstPartyDataIDs replaces the seed's inclusion list.
type UpdateInput struct {
	SeedID            string   `json:"seed_id" validate:"required"`
	Name              *string  `json:"name,omitempty"`
	FirstPartyDataIDs []string `json:"first_party_data_ids,omitempty"`
}

// Changed reports whether the update carries anything to send.
func (u UpdateInput) Changed() bool {
	return u.Name != nil || u.FirstPartyDataIDs != nil
}

type seedPayload struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
	UserErrors []ttd.UserError `json:"userErrors"`
}

// IDs renders first-party segment IDs the way GraphQL ID inputs expect them.
func IDs(entries []FirstPartyData) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.FirstPartyDataID.String())
	}
	return out
}
