package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"crewlink/config"
	"crewlink/internal/api"
	"crewlink/internal/cache"
	"crewlink/internal/chat"
	"crewlink/internal/database"
	"crewlink/internal/hse"
	"crewlink/internal/notifications"
	"crewlink/internal/presence"
	"crewlink/internal/sessions"
	"crewlink/internal/user"
)

// App holds what main needs to run and stop the process.
type App struct {
	Server   *api.Server
	GRPC     *grpc.Server
	Health   *health.Server
	Manager  *sessions.Manager
	Database *database.Database
	ChatRepo *chat.PostgresRepository
}

func ProvideApp(
	server *api.Server,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	manager *sessions.Manager,
	db *database.Database,
	chatRepo *chat.PostgresRepository,
) *App {
	return &App{
		Server:   server,
		GRPC:     grpcServer,
		Health:   healthServer,
		Manager:  manager,
		Database: db,
		ChatRepo: chatRepo,
	}
}

// Migrate creates the gorm tables first because the chat schema joins users.
func (a *App) Migrate(ctx context.Context, log *slog.Logger) error {
	err := a.Database.Migrate(ctx, log,
		&user.User{},
		&hse.Alert{},
		&hse.Acknowledgment{},
		&notifications.Notification{},
	)
	if err != nil {
		return err
	}
	return a.ChatRepo.Migrate(ctx)
}

func ProvideUserDirectory(users user.Repository) chat.UserDirectory {
	return users
}

// ProvideRecorder mirrors presence into the users table and, when configured,
// into Redis.
func ProvideRecorder(ctx context.Context, cfg *config.Config, users user.Repository, log *slog.Logger) (presence.Recorder, func(), error) {
	if cfg.RedisAddr == "" {
		return presence.MultiRecorder{users}, func() {}, nil
	}
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if err := redisCache.Reset(ctx); err != nil {
		log.Warn("failed to reset presence cache", slog.Any("error", err))
	}
	cleanup := func() {
		if err := redisCache.Close(); err != nil {
			log.Error("failed to close redis", slog.Any("error", err))
		}
	}
	return presence.MultiRecorder{users, redisCache}, cleanup, nil
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideHealth() *health.Server {
	return health.NewServer()
}

func ProvideGRPCServer(healthServer *health.Server) *grpc.Server {
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	return grpcServer
}
