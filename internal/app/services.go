package app

import (
	"fmt"

	"github.com/yungbote/neurobridge-player/internal/cache"
	"github.com/yungbote/neurobridge-player/internal/content"
	"github.com/yungbote/neurobridge-player/internal/exam"
	"github.com/yungbote/neurobridge-player/internal/hierarchy"
	"github.com/yungbote/neurobridge-player/internal/pipeline"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
	"github.com/yungbote/neurobridge-player/internal/player"
	"github.com/yungbote/neurobridge-player/internal/progress"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

type Services struct {
	Cache    cache.LegacyCache
	Store    *hierarchy.Store
	Adapter  *content.Adapter
	Text     *pipeline.TextPipeline
	Video    *pipeline.VideoPipeline
	Progress *progress.Engine
	Exams    *exam.Service
	Emitter  *realtime.Emitter
	Players  *player.Manager
}

func wireCache(log *logger.Logger, cfg Config, clients Clients) (cache.LegacyCache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(log, clients.Redis, cfg.Cache.Prefix, cfg.Cache.TTL)
	case "gorm":
		gc := cache.NewGormCache(clients.DB, log)
		if err := gc.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("legacy cache automigrate: %w", err)
		}
		return gc, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	legacyCache, err := wireCache(log, cfg, clients)
	if err != nil {
		return Services{}, err
	}
	store := hierarchy.NewStore(log, clients.Backend, legacyCache)

	pd := pipeline.Deps{
		Generator: clients.Backend,
		Writer:    clients.Backend,
		Reloader:  store,
		Prompts:   cfg.Generation.Prompts,
	}
	text, err := pipeline.NewTextPipeline(log, pd, clients.Backend)
	if err != nil {
		return Services{}, fmt.Errorf("init text pipeline: %w", err)
	}
	video, err := pipeline.NewVideoPipeline(log, pd, clients.Backend, clients.Backend)
	if err != nil {
		return Services{}, fmt.Errorf("init video pipeline: %w", err)
	}

	var relay realtime.Relay
	if clients.SSEBus != nil {
		relay = clients.SSEBus
	}
	s := Services{
		Cache:    legacyCache,
		Store:    store,
		Adapter:  content.NewAdapter(log),
		Text:     text,
		Video:    video,
		Progress: progress.NewEngine(log, clients.Backend),
		Exams:    exam.NewService(log, clients.Backend),
		Emitter:  realtime.NewEmitter(log, hub, relay),
	}
	s.Players, err = player.NewManager(log, player.Deps{
		Store:    s.Store,
		Renderer: s.Adapter,
		Text:     s.Text,
		Video:    s.Video,
		Progress: s.Progress,
		Exams:    s.Exams,
		Finisher: clients.Backend,
		Events:   s.Emitter,
	}, player.Options{
		MaxConcurrentGenerations: cfg.Player.MaxConcurrentGenerations,
		MaxSessions:              cfg.Player.MaxSessions,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init player manager: %w", err)
	}
	return s, nil
}
