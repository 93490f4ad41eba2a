package delta

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ttd-workflows/pkg/db/models"
	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	pkgredis "github.com/angelmondragon/ttd-workflows/pkg/redis"
)

// CheckpointStore remembers the next change tracking version per kind and
// scope so a later sync resumes where the last one stopped.
type CheckpointStore interface {
	Load(ctx context.Context, kind enums.DeltaKind, scope string) (int64, bool, error)
	Save(ctx context.Context, kind enums.DeltaKind, scope string, version int64) error
}

// MemoryCheckpoints keeps checkpoints for the life of the process.
type MemoryCheckpoints struct {
	mu       sync.Mutex
	versions map[string]int64
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{versions: map[string]int64{}}
}

func (m *MemoryCheckpoints) Load(_ context.Context, kind enums.DeltaKind, scope string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[string(kind)+"/"+scope]
	return v, ok, nil
}

func (m *MemoryCheckpoints) Save(_ context.Context, kind enums.DeltaKind, scope string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[string(kind)+"/"+scope] = version
	return nil
}

type checkpointKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CheckpointKey(kind, scope string) string
}

// RedisCheckpoints stores versions as plain integers under
// ttd:checkpoint:<kind>:<scope>, without expiry.
type RedisCheckpoints struct {
	kv checkpointKV
}

func NewRedisCheckpoints(kv checkpointKV) *RedisCheckpoints {
	return &RedisCheckpoints{kv: kv}
}

func (r *RedisCheckpoints) Load(ctx context.Context, kind enums.DeltaKind, scope string) (int64, bool, error) {
	raw, err := r.kv.Get(ctx, r.kv.CheckpointKey(string(kind), scope))
	if errors.Is(err, pkgredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint %s/%s is not a version: %w", kind, scope, err)
	}
	return v, true, nil
}

func (r *RedisCheckpoints) Save(ctx context.Context, kind enums.DeltaKind, scope string, version int64) error {
	if err := r.kv.Set(ctx, r.kv.CheckpointKey(string(kind), scope), strconv.FormatInt(version, 10), 0); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// GormCheckpoints stores versions in delta_checkpoints.
type GormCheckpoints struct {
	db *gorm.DB
}

func NewGormCheckpoints(db *gorm.DB) *GormCheckpoints {
	return &GormCheckpoints{db: db}
}

func (g *GormCheckpoints) Load(ctx context.Context, kind enums.DeltaKind, scope string) (int64, bool, error) {
	var cp models.DeltaCheckpoint
	err := g.db.WithContext(ctx).Where("kind = ? AND scope = ?", kind, scope).Take(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp.Version, true, nil
}

func (g *GormCheckpoints) Save(ctx context.Context, kind enums.DeltaKind, scope string, version int64) error {
	cp := models.DeltaCheckpoint{Kind: kind, Scope: scope, Version: version}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "updated_at"}),
	}).Create(&cp).Error
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
