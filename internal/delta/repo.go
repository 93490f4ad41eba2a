package delta

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ttd-workflows/pkg/db/models"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/pagination"
)

const recordBatchSize = 200

// Recorder persists the changes observed by a sync.
type Recorder interface {
	Record(ctx context.Context, version int64, changes []Change) (int64, error)
}

// Repository exposes persistence helpers for the local change store.
type Repository interface {
	Recorder
	List(ctx context.Context, params ListParams) ([]models.DeltaChange, *pagination.Cursor, error)
}

// ListParams filters the change feed. Rows come in tracking version order,
// then insert order: ids are time-ordered, so a row stored later at an
// already served version still sorts after the cursor.
type ListParams struct {
	Kind   enums.DeltaKind
	Limit  int
	Cursor *pagination.Cursor
}

type repositoryImpl struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns a change store bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db, now: time.Now}
}

// Record inserts the changes tagged with version. Within one call the last
// change per entity wins. A change already stored for the same kind, entity
// and version is skipped, so the returned count is the number of new rows.
func (r *repositoryImpl) Record(ctx context.Context, version int64, changes []Change) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	changes = latestChanges(changes)
	createdAt := r.now().UTC()
	rows := make([]models.DeltaChange, 0, len(changes))
	for _, c := range changes {
		payload := "{}"
		if len(c.Payload) > 0 && json.Valid(c.Payload) {
			payload = string(c.Payload)
		}
		rows = append(rows, models.DeltaChange{
			Kind:            c.Kind,
			EntityID:        c.EntityID,
			ParentID:        c.ParentID,
			Name:            c.Name,
			IsArchived:      c.IsArchived,
			TrackingVersion: version,
			Payload:         payload,
			CreatedAt:       createdAt,
		})
	}
	// one transaction per pass so a failed batch leaves nothing behind
	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, recordBatchSize)
		inserted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListParams) ([]models.DeltaChange, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.DeltaChange{})
	if params.Kind != "" {
		query = query.Where("kind = ?", params.Kind)
	}
	if params.Cursor != nil {
		query = query.Where("(tracking_version, id) > (?, ?)", params.Cursor.TrackingVersion, params.Cursor.ID)
	}

	var changes []models.DeltaChange
	if err := query.Order("tracking_version ASC, id ASC").Limit(limit).Find(&changes).Error; err != nil {
		return nil, nil, err
	}

	if len(changes) > normalized {
		last := changes[normalized-1]
		changes = changes[:normalized]
		return changes, &pagination.Cursor{TrackingVersion: last.TrackingVersion, ID: last.ID}, nil
	}
	return changes, nil, nil
}
