package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		raw        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://sigs/catalog/patterns.json", "sigs", "catalog/patterns.json", false},
		{"s3://sigs/patterns.yaml", "sigs", "patterns.yaml", false},
		{"s3://sigs/", "", "", true},
		{"s3:///patterns.json", "", "", true},
		{"https://sigs/patterns.json", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestIsS3URL(t *testing.T) {
	assert.True(t, IsS3URL("s3://bucket/key"))
	assert.False(t, IsS3URL("signatures/patterns.json"))
}

func TestNewS3Service_RequiresBucket(t *testing.T) {
	_, err := NewS3Service(S3Config{})
	assert.Error(t, err)
}

// TestS3Service_Integration round-trips objects through a MinIO container
func TestS3Service_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	bucket := "skywatch-test-" + uuid.New().String()[:8]
	admin, err := miniogo.New(endpoint, &miniogo.Options{
		Creds:  miniocreds.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)
	require.NoError(t, admin.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}))

	svc, err := NewS3Service(S3Config{
		Bucket:    bucket,
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	t.Run("upload and download", func(t *testing.T) {
		body := []byte(`[{"drone_name":"DJI OcuSync","freq_band":[2400,2483.5],"burst_pattern":"100Hz","rssi_min":35}]`)
		require.NoError(t, svc.UploadFile(ctx, "catalog/patterns.json", bytes.NewReader(body), "application/json"))

		got, err := svc.DownloadFile(ctx, "catalog/patterns.json")
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := svc.DownloadFile(ctx, "catalog/absent.json")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("archive file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "alerts.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"drone\":\"x\"}\n"), 0o644))

		key, err := svc.ArchiveFile(ctx, path, "archive/2025-06-01/")
		require.NoError(t, err)
		assert.Equal(t, "archive/2025-06-01/alerts.jsonl", key)

		got, err := svc.DownloadFile(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "{\"drone\":\"x\"}\n", string(got))
	})

	t.Run("archive missing file", func(t *testing.T) {
		key, err := svc.ArchiveFile(ctx, filepath.Join(t.TempDir(), "none.jsonl"), "archive")
		require.NoError(t, err)
		assert.Empty(t, key)
	})
}
