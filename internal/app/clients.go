package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-player/internal/clients/backend"
	"github.com/yungbote/neurobridge-player/internal/clients/redis"
	"github.com/yungbote/neurobridge-player/internal/db"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
	"github.com/yungbote/neurobridge-player/internal/realtime/bus"
)

type Clients struct {
	Backend *backend.Client
	Redis   goredis.UniversalClient
	DB      *gorm.DB
	SSEBus  bus.Bus
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	be, err := backend.New(log, cfg.backendConfig())
	if err != nil {
		return Clients{}, fmt.Errorf("init backend client: %w", err)
	}
	out := Clients{Backend: be}

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err := redis.NewClient(ctx, log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		if cfg.SSEChannel != "" {
			b, err := bus.NewRedisBus(log, rdb, cfg.SSEChannel)
			if err != nil {
				out.Close()
				return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
			}
			out.SSEBus = b
		}
	}

	// Database
	if cfg.Cache.Backend == "gorm" {
		gdb, err := db.Open(log, cfg.Database)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init database: %w", err)
		}
		out.DB = gdb
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
