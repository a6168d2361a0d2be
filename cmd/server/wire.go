//go:build wireinject
// +build wireinject

package main

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"crewlink/config"
	"crewlink/infrastructure/connection"
	"crewlink/internal/api"
	"crewlink/internal/chat"
	"crewlink/internal/database"
	"crewlink/internal/email"
	"crewlink/internal/hse"
	"crewlink/internal/notifications"
	"crewlink/internal/presence"
	"crewlink/internal/sessions"
	"crewlink/internal/user"
)

var AppSet = wire.NewSet(
	database.Set,
	user.Set,
	email.Set,
	notifications.Set,
	presence.Set,
	chat.Set,
	hse.Set,
	connection.Set,
	sessions.Set,
	api.Set,
	ProvideUserDirectory,
	ProvideRecorder,
	ProvideRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	ProvideHealth,
	ProvideGRPCServer,
	ProvideApp,
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	wire.Build(AppSet)
	return &App{}, nil, nil
}
