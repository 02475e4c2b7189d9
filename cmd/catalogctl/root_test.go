package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_URL", "memory://images")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEnvListsVariables(t *testing.T) {
	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "STORAGE_URL")
	assert.Contains(t, out, "JWT_SECRET")
}

func TestProductsOnEmptyMemoryCatalog(t *testing.T) {
	productsJSON = false
	out, err := execute(t, "products")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "0 of 0 products")
}

func TestBlobsListsPlaceholder(t *testing.T) {
	out, err := execute(t, "blobs")
	require.NoError(t, err)
	assert.Contains(t, out, "comingsoon.png")
}

func TestBlobsRejectsUnknownStore(t *testing.T) {
	_, err := execute(t, "blobs", "--store", "videos")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
	blobsStore = "images"
}

func TestMigrateNeedsPostgres(t *testing.T) {
	_, err := execute(t, "migrate")
	require.Error(t, err)
}

func TestBackfillOnMemoryStore(t *testing.T) {
	out, err := execute(t, "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 1")
}
