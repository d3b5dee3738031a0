package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

func sampleMap() domain.LegacyCourseMap {
	return domain.LegacyCourseMap{
		"go": {
			{Title: "Basics", Subtopics: []domain.LegacySubtopic{
				{Title: "Intro", Theory: "# hi", ContentType: "markdown", Done: true, SectionID: "s1"},
			}},
		},
	}
}

func exercise(t *testing.T, c LegacyCache) {
	t.Helper()
	ctx := context.Background()
	if _, ok, err := c.Get(ctx, "c1"); err != nil || ok {
		t.Fatalf("empty Get: want miss got ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, "c1", sampleMap()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	m := sampleMap()
	m["go"][0].Subtopics[0].Done = false
	if err := c.Put(ctx, "c1", m); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err := c.Get(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	sub := got["go"][0].Subtopics[0]
	if sub.Done || sub.SectionID != "s1" || sub.Theory != "# hi" {
		t.Fatalf("Get: want overwritten entry got=%+v", sub)
	}
}

func TestMemoryCache(t *testing.T) {
	exercise(t, NewMemoryCache())
}

func TestMemoryCacheCopiesOnPut(t *testing.T) {
	c := NewMemoryCache()
	m := sampleMap()
	_ = c.Put(context.Background(), "c1", m)
	m["go"][0].Subtopics[0].Title = "mutated"
	got, _, _ := c.Get(context.Background(), "c1")
	if got["go"][0].Subtopics[0].Title != "Intro" {
		t.Fatalf("cache aliased caller map")
	}
}

func TestGormCacheSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	log, _ := logger.New("test")
	c := NewGormCache(db, log)
	if err := c.AutoMigrate(); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	exercise(t, c)
}

func TestClassifyDBError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		network bool
	}{
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		got := classifyDBError(tc.err)
		if errors.Is(got, nberrors.ErrNetwork) != tc.network {
			t.Fatalf("%s: want network=%v got=%v", tc.name, tc.network, got)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("%s: classified error must wrap the original", tc.name)
		}
	}
	if classifyDBError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis cache tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	log, _ := logger.New("test")
	prefix := "nbp:test:" + t.Name() + ":"
	c, err := NewRedisCache(log, rdb, prefix, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	_ = rdb.Del(context.Background(), prefix+"c1").Err()
	t.Cleanup(func() { _ = rdb.Del(context.Background(), prefix+"c1").Err() })
	exercise(t, c)
}
