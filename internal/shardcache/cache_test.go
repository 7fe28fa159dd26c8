package shardcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"locsearch/internal/catalog"
)

// startRedis runs a throwaway Redis container, skipping the test when no
// container runtime is reachable.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	client, err := Dial(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func regions() *catalog.MapSource {
	return catalog.NewMapSource().
		Set(catalog.RootShard, "", "Koshi", "Bagmati").
		Set(catalog.RegionShard, "koshi", "Jhapa")
}

func TestUnreachableRedisFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	src := regions()
	c := New(src, client)

	doc, err := c.LoadShard(context.Background(), catalog.RootShard, "")
	if err != nil {
		t.Fatalf("LoadShard failed: %v", err)
	}
	if len(doc.Items) != 2 || doc.Items[0].Name != "Koshi" {
		t.Errorf("LoadShard = %+v", doc)
	}
	if calls := src.Calls(catalog.RootShard, ""); calls != 1 {
		t.Errorf("source called %d times, want 1", calls)
	}
	if stats := c.Stats(); stats.Errors != 2 || stats.Hits != 0 {
		t.Errorf("Stats() = %+v, want 2 errors", stats)
	}
}

func TestKey(t *testing.T) {
	c := New(catalog.NewMapSource(), nil, WithPrefix("test:"))

	tests := []struct {
		kind     catalog.ShardKind
		key      string
		expected string
	}{
		{catalog.RootShard, "", "test:root:"},
		{catalog.RegionShard, "koshi", "test:region:koshi"},
		{catalog.SubRegionShard, "kavre", "test:subregion:kavre"},
	}

	for _, tt := range tests {
		if got := c.Key(tt.kind, tt.key); got != tt.expected {
			t.Errorf("Key(%v, %q) = %q, want %q", tt.kind, tt.key, got, tt.expected)
		}
	}
}

func TestSharedBetweenCaches(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	first := regions()
	a := New(first, client, WithPrefix(t.Name()+":"))
	if _, err := a.LoadShard(ctx, catalog.RegionShard, "koshi"); err != nil {
		t.Fatalf("LoadShard failed: %v", err)
	}

	// a second process with an empty source is served from Redis
	second := catalog.NewMapSource()
	b := New(second, client, WithPrefix(t.Name()+":"))
	doc, err := b.LoadShard(ctx, catalog.RegionShard, "koshi")
	if err != nil {
		t.Fatalf("LoadShard from cache failed: %v", err)
	}
	if len(doc.Items) != 1 || doc.Items[0].Name != "Jhapa" {
		t.Errorf("cached document = %+v", doc)
	}
	if calls := second.Calls(catalog.RegionShard, "koshi"); calls != 0 {
		t.Errorf("second source called %d times, want 0", calls)
	}
	if stats := b.Stats(); stats.Hits != 1 || stats.Misses != 0 {
		t.Errorf("Stats() = %+v, want 1 hit", stats)
	}
}

func TestFailuresNotCached(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	src := regions().Fail(catalog.RegionShard, "koshi", errors.New("disk error"))
	c := New(src, client, WithPrefix(t.Name()+":"))

	if _, err := c.LoadShard(ctx, catalog.RegionShard, "koshi"); err == nil {
		t.Fatal("LoadShard should fail")
	}
	n, err := client.Exists(ctx, c.Key(catalog.RegionShard, "koshi")).Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Error("failed load was cached")
	}
}

func TestTTL(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	c := New(regions(), client, WithPrefix(t.Name()+":"), WithTTL(time.Minute))
	if _, err := c.LoadShard(ctx, catalog.RootShard, ""); err != nil {
		t.Fatalf("LoadShard failed: %v", err)
	}

	ttl, err := client.TTL(ctx, c.Key(catalog.RootShard, "")).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestInvalidate(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	src := regions()
	c := New(src, client, WithPrefix(t.Name()+":"))
	other := New(regions(), client, WithPrefix("other:"))

	for _, load := range []struct {
		kind catalog.ShardKind
		key  string
	}{{catalog.RootShard, ""}, {catalog.RegionShard, "koshi"}} {
		if _, err := c.LoadShard(ctx, load.kind, load.key); err != nil {
			t.Fatalf("LoadShard failed: %v", err)
		}
	}
	if _, err := other.LoadShard(ctx, catalog.RootShard, ""); err != nil {
		t.Fatalf("LoadShard failed: %v", err)
	}

	removed, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Invalidate removed %d keys, want 2", removed)
	}
	if n, _ := client.Exists(ctx, other.Key(catalog.RootShard, "")).Result(); n != 1 {
		t.Error("Invalidate removed keys outside its prefix")
	}

	if _, err := c.LoadShard(ctx, catalog.RootShard, ""); err != nil {
		t.Fatalf("LoadShard failed: %v", err)
	}
	if calls := src.Calls(catalog.RootShard, ""); calls != 2 {
		t.Errorf("source called %d times after invalidate, want 2", calls)
	}
}

func TestLoaderOverCache(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	c := New(regions(), client, WithPrefix(t.Name()+":"))
	loader := catalog.NewLoader(c)

	got, err := loader.ListRegions(ctx)
	if err != nil {
		t.Fatalf("ListRegions failed: %v", err)
	}
	if len(got) != 2 || got[1].ID != "bagmati" {
		t.Errorf("ListRegions = %+v", got)
	}
	if subs := loader.ListSubRegions(ctx, "koshi"); len(subs) != 1 || subs[0].Name != "Jhapa" {
		t.Errorf("ListSubRegions(koshi) = %+v", subs)
	}
}
