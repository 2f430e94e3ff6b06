package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/docdb-demos/pkg/media"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioAccessKey = "minio_admin"
	minioSecretKey = "minio_admin"
)

// StartMinio starts a throwaway MinIO server and returns a media config
// pointing at it, without a bucket. The test is skipped when no container
// runtime is reachable.
func StartMinio(t testing.TB) media.Config {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image: "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		Cmd:   []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioAccessKey,
			"MINIO_ROOT_PASSWORD": minioSecretKey,
		},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("9000/tcp").WithStartupTimeout(30*time.Second),
			wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp").WithStartupTimeout(30*time.Second),
		),
	}

	minioC, err := startContainer(ctx, req)
	if err != nil {
		t.Skipf("MinIO container not available: %v", err)
	}
	t.Cleanup(func() {
		_ = minioC.Terminate(ctx)
	})

	host, err := minioC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := minioC.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return media.Config{
		Endpoint:        host + ":" + port.Port(),
		AccessKeyID:     minioAccessKey,
		SecretAccessKey: minioSecretKey,
	}
}
