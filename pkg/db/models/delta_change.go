package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
)

// DeltaChange records one changed entity observed by a delta sync. The
// (kind, entity_id, tracking_version) triple is unique so replays are no-ops.
type DeltaChange struct {
	ID              uuid.UUID       `gorm:"column:id;type:varchar(36);primaryKey"`
	Kind            enums.DeltaKind `gorm:"column:kind;not null"`
	EntityID        string          `gorm:"column:entity_id;not null"`
	ParentID        string          `gorm:"column:parent_id;not null;default:''"`
	Name            string          `gorm:"column:name;not null;default:''"`
	IsArchived      bool            `gorm:"column:is_archived;not null;default:false"`
	TrackingVersion int64           `gorm:"column:tracking_version;not null"`
	Payload         string          `gorm:"column:payload;not null;default:'{}'"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (DeltaChange) TableName() string { return "delta_changes" }

// BeforeCreate assigns a time-ordered primary key; the change feed pages on
// (tracking_version, id). sqlite has no uuid default.
func (c *DeltaChange) BeforeCreate(*gorm.DB) error {
	if c.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}
