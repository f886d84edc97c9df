package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mystique/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add wishlists table", "add_wishlists_table"},
		{"Add-Wishlists-Table", "add_wishlists_table"},
		{"add__wishlists", "add_wishlists"},
		{"Add Coupons 2", "add_coupons_2"},
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

func TestCreateMigration_Sequential(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "init schema", "Products and orders")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_init_schema.up.sql"), first.UpPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: init schema")
	assert.Contains(t, string(up), "-- Products and orders")
	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Rollback: init schema")

	second, err := CreateMigration(dir, "Add Wishlists", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)

	list, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init_schema", "000002_add_wishlists"}, list)
}

func TestCreateMigration_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateMigration(dir, "!!!", "")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest_thing.up.sql"), nil, 0o644))
	_, err = CreateMigration(dir, "next", "")
	assert.ErrorContains(t, err, "unexpected migration name")
}

func TestListMigrations_MissingDir(t *testing.T) {
	list, err := ListMigrations(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["000001_init_schema.up.sql"])
	assert.True(t, names["000001_init_schema.down.sql"])

	up, err := migrations.FS.ReadFile("000001_init_schema.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"products", "users", "orders", "order_items"} {
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
