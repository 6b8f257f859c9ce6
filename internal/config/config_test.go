package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COMMIT_ROLES", "")
	t.Setenv("IMPORT_MODE", "")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, cfg.CommitRoles)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.True(t, cfg.CreateMissing())
	assert.Equal(t, "TZ", cfg.PhoneRegion)
}

func TestLoadCommitRolesList(t *testing.T) {
	t.Setenv("COMMIT_ROLES", " Admin , customer-care ,,")
	t.Setenv("IMPORT_MODE", "update-only")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "customer-care"}, cfg.CommitRoles)
	assert.False(t, cfg.CreateMissing())
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("IMPORT_MODE", "merge")

	_, err := Load()
	require.Error(t, err)
}

func TestRequire(t *testing.T) {
	var cfg Config
	require.Error(t, cfg.Require("STORE_API_KEY", "  "))
	require.NoError(t, cfg.Require("STORE_API_KEY", "key"))
}
