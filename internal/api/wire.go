package api

import (
	"log/slog"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"crewlink/config"
	"crewlink/internal/sessions"
)

func ProvideServer(cfg *config.Config, manager *sessions.Manager, grpcServer *grpc.Server, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return NewServer(manager, grpcServer, gatherer, logger, Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		InsecureSkipVerify: cfg.WSInsecureSkipVerify,
	})
}

var Set = wire.NewSet(ProvideServer)
