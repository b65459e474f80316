package storage

import (
	"context"
	"testing"

	"github.com/andresuchdata/tutorstore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, &config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, &config.StorageConfig{
		Driver:    "minio",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "tutor-support",
	})
	require.NoError(t, err)
	assert.IsType(t, &MinioStore{}, store)

	_, err = Open(ctx, &config.StorageConfig{Driver: "ftp"})
	assert.ErrorContains(t, err, "unknown storage driver")
}
