package changes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/angelmondragon/ttd-workflows/api/responses"
	"github.com/angelmondragon/ttd-workflows/api/validators"
	"github.com/angelmondragon/ttd-workflows/internal/delta"
	"github.com/angelmondragon/ttd-workflows/pkg/db/models"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/pagination"
)

// Change is the public view of a recorded delta change.
type Change struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	EntityID        string          `json:"entity_id"`
	ParentID        string          `json:"parent_id,omitempty"`
	Name            string          `json:"name,omitempty"`
	IsArchived      bool            `json:"is_archived"`
	TrackingVersion int64           `json:"tracking_version"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       time.Time       `json:"created_at"`
}

func fromModel(m models.DeltaChange) Change {
	payload := json.RawMessage(m.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage("{}")
	}
	return Change{
		ID:              m.ID.String(),
		Kind:            string(m.Kind),
		EntityID:        m.EntityID,
		ParentID:        m.ParentID,
		Name:            m.Name,
		IsArchived:      m.IsArchived,
		TrackingVersion: m.TrackingVersion,
		Payload:         payload,
		CreatedAt:       m.CreatedAt.UTC(),
	}
}

// List serves GET /api/v1/delta/changes?kind=&limit=&cursor= in tracking
// version order.
func List(repo delta.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind, err := validators.ParseQueryDeltaKind(r, "kind")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		cursor, err := validators.ParseQueryCursor(r, "cursor")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, next, err := repo.List(ctx, delta.ListParams{Kind: kind, Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]Change, 0, len(rows))
		for _, row := range rows {
			out = append(out, fromModel(row))
		}
		var nextCursor string
		if next != nil {
			nextCursor = pagination.EncodeCursor(*next)
		}
		responses.WritePage(w, out, nextCursor)
	}
}
