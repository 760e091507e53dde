package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/model"
)

func TestInitDBSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")

	require.NoError(t, InitDB(cfg))
	t.Cleanup(CloseDB)

	for _, table := range []string{"users", "roles", "stats", "players"} {
		assert.True(t, DB.Migrator().HasTable(table), table)
	}
	assert.True(t, DB.Migrator().HasIndex(&model.PlayerSample{}, "players_timestamp_idx"))
	assert.True(t, DB.Migrator().HasColumn(&model.Stat{}, "mspt_60s_avg"))
}

func TestOpenUnsupported(t *testing.T) {
	cfg := config.Default()
	cfg.DBType = "oracle"
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestAutoMigrateWithoutDB(t *testing.T) {
	saved := DB
	DB = nil
	defer func() { DB = saved }()
	assert.Error(t, AutoMigrate(&model.Stat{}))
}
