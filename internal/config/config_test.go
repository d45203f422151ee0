package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/coa/internal/model"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.User.Name = "alice"
	cfg.User.Companies = []int64{1, 3}
	cfg.Log.Encoding = "json"

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "coa.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Equal(t, model.AccountTypeCurrentAsset, cfg.DefaultAccountType())
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "logs/audit-log.csv", cfg.Audit.Path)
	assert.False(t, cfg.Git.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("user:\n  name: bob\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.User.Name)
	assert.Equal(t, "coa.db", cfg.Database.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "database: [", "parsing config"},
		{"no database", "database:\n  path: \"\"\n", "database.path"},
		{"bad type", "accounts:\n  default_type: asset_bogus\n", "accounts.default_type"},
		{"no audit path", "audit:\n  enabled: true\n  path: \"\"\n", "audit.path"},
		{"no git author", "git:\n  enabled: true\n  author_email: \"\"\n", "git.author_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	assert.Error(t, err)
}
