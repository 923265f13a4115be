package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/storagetest"
)

// Runs against a live server when TEST_REDIS_URL is set, e.g.
// redis://localhost:6379/15. The selected database is flushed per subtest,
// so point it at a dedicated test db.
func TestRedisStorageConformance(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	storagetest.RunStorageTests(t, "redis", func(t *testing.T) ports.Stores {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush test db: %v", err)
		}
		return NewStores(client, 10)
	})
}
