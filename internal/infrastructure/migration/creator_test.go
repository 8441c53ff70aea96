package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/marketplace-analytics/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add reports table", "add_reports_table"},
		{"Add-Reports-Table", "add_reports_table"},
		{"ADD_REPORTS_TABLE", "add_reports_table"},
		{"add__reports__table", "add_reports_table"},
		{"Add Index 123", "add_index_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create reports", "Reports table")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_reports.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_create_reports.down.sql"), first.DownPath)

	upContent, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "create reports")
	assert.Contains(t, string(upContent), "Reports table")

	downContent, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "Rollback")

	second, err := CreateMigration(dir, "add sku index", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)

	assert.NoError(t, CheckPairs(os.DirFS(dir)))
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000003_add_index.up.sql":   {Data: []byte("-- test")},
		"000003_add_index.down.sql": {Data: []byte("-- test")},
		"000001_init.up.sql":        {Data: []byte("-- test")},
		"000001_init.down.sql":      {Data: []byte("-- test")},
		"000002_reports.up.sql":     {Data: []byte("-- test")},
		"000002_reports.down.sql":   {Data: []byte("-- test")},
		"README.md":                 {Data: []byte("docs")},
		"subdir.up.sql/file":        {Data: []byte("nested")},
	}

	got, err := ListMigrations(fsys)

	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_reports", "000003_add_index"}, got)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	got, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheckPairs(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "missing down",
			fsys:    fstest.MapFS{"000001_init.up.sql": {}},
			wantErr: "has no down file",
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"000001_a.up.sql": {}, "000001_a.down.sql": {},
				"000001_b.up.sql": {}, "000001_b.down.sql": {},
			},
			wantErr: "share version 1",
		},
		{
			name:    "no version",
			fsys:    fstest.MapFS{"init.up.sql": {}, "init.down.sql": {}},
			wantErr: "no numeric version",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, CheckPairs(tt.fsys), tt.wantErr)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "000001_create_reports_and_sales_records", got[0])
	assert.NoError(t, CheckPairs(migrations.FS))
}
