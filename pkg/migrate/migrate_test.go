package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/ttd-workflows/pkg/config"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

func newSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestRunAppliesAndRollsBackEmbeddedMigrations(t *testing.T) {
	ctx := context.Background()
	db := newSQLite(t)

	require.NoError(t, Run(ctx, db, "sqlite", "up"))
	assert.True(t, tableExists(t, db, "delta_changes"))
	assert.True(t, tableExists(t, db, "delta_checkpoints"))

	version, err := goose.GetDBVersionContext(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(20250601120100), version)

	require.NoError(t, MigrateToVersion(ctx, db, "sqlite", "20250601120000"))
	assert.True(t, tableExists(t, db, "delta_changes"))
	assert.False(t, tableExists(t, db, "delta_checkpoints"))

	require.NoError(t, Run(ctx, db, "sqlite", "down"))
	assert.False(t, tableExists(t, db, "delta_changes"))
}

func TestRunRequiresDB(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, "sqlite", "up"))
}

func TestMigrateToVersionRejectsBadVersions(t *testing.T) {
	db := newSQLite(t)
	assert.Error(t, MigrateToVersion(context.Background(), db, "sqlite", ""))
	assert.Error(t, MigrateToVersion(context.Background(), db, "sqlite", "latest"))
}

func TestGooseDialect(t *testing.T) {
	assert.Equal(t, "sqlite3", GooseDialect("sqlite"))
	assert.Equal(t, "sqlite3", GooseDialect("sqlite3"))
	assert.Equal(t, "postgres", GooseDialect("postgres"))
}

func TestValidateEmbedded(t *testing.T) {
	assert.NoError(t, ValidateEmbedded())
}

func TestValidateFS(t *testing.T) {
	const good = "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"

	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{
			name: "valid",
			files: fstest.MapFS{
				"20250101000000_first.sql": {Data: []byte(good)},
				"README.md":                {Data: []byte("ignored")},
			},
		},
		{
			name:    "bad filename",
			files:   fstest.MapFS{"2025_first.sql": {Data: []byte(good)}},
			wantErr: "invalid migration filename",
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"20250101000000_first.sql":  {Data: []byte(good)},
				"20250101000000_second.sql": {Data: []byte(good)},
			},
			wantErr: "duplicate migration version",
		},
		{
			name:    "missing down",
			files:   fstest.MapFS{"20250101000000_first.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
			wantErr: "missing \"-- +goose Down\"",
		},
		{
			name:    "down before up",
			files:   fstest.MapFS{"20250101000000_first.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
			wantErr: "Down before Up",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFS(tc.files, ".")
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "add_change_index", SanitizeName("  Add Change-Index "))
	assert.Equal(t, "", SanitizeName("!!!"))
}

func TestCreateSQLMigration(t *testing.T) {
	prev := nowUTC
	nowUTC = func() time.Time { return time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { nowUTC = prev })

	dir := filepath.Join(t.TempDir(), "migrations")
	path, err := CreateSQLMigration(dir, "Add change index")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20250701093000_add_change_index.sql"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "-- +goose Up")
	assert.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add change index")
	assert.ErrorContains(t, err, "already exists")

	_, err = CreateSQLMigration(dir, "???")
	assert.Error(t, err)
	_, err = CreateSQLMigration("", "x")
	assert.Error(t, err)
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "prod"
	cfg.DB.AutoMigrate = true
	assert.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), nil))

	cfg.App.Env = "dev"
	cfg.DB.AutoMigrate = false
	assert.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), nil))
}
