//go:build integration
// +build integration

package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestS3StoreAgainstMinio(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd: []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").
				WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MinIO container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	store, err := NewS3Store(ctx, S3Options{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "media",
		PublicURL: "https://cdn.example.org/media/",
	})
	require.NoError(t, err)

	url, err := store.Put(ctx, "1700000000000-abcd1234.jpg", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/media/1700000000000-abcd1234.jpg", url)

	obj, err := store.client.GetObject(ctx, "media", "1700000000000-abcd1234.jpg", minio.GetObjectOptions{})
	require.NoError(t, err)
	content, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(content))

	info, err := store.client.StatObject(ctx, "media", "1700000000000-abcd1234.jpg", minio.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", info.ContentType)

	require.NoError(t, store.Delete(ctx, "1700000000000-abcd1234.jpg"))
	_, err = store.client.StatObject(ctx, "media", "1700000000000-abcd1234.jpg", minio.StatObjectOptions{})
	assert.Error(t, err)

	// Opening again finds the existing bucket.
	_, err = NewS3Store(ctx, S3Options{Endpoint: endpoint, AccessKey: "minioadmin", SecretKey: "minioadmin", Bucket: "media"})
	assert.NoError(t, err)
}
