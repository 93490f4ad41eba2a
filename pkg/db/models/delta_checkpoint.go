package models

import (
	"time"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
)

// DeltaCheckpoint is the last change tracking version synced for a kind and
// scope (partner or advertiser ID).
type DeltaCheckpoint struct {
	Kind      enums.DeltaKind `gorm:"column:kind;primaryKey"`
	Scope     string          `gorm:"column:scope;primaryKey"`
	Version   int64           `gorm:"column:version;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (DeltaCheckpoint) TableName() string { return "delta_checkpoints" }
