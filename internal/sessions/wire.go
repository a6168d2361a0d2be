package sessions

import (
	"log/slog"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"crewlink/config"
	"crewlink/infrastructure/connection"
	"crewlink/internal/chat"
	"crewlink/internal/hse"
	"crewlink/internal/presence"
)

func ProvideOptions(cfg *config.Config) Options {
	return Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		SendBuffer:        cfg.SendBuffer,
		EventsPerSecond:   cfg.EventsPerSecond,
		EventBurst:        cfg.EventBurst,
	}
}

func ProvideMetrics(reg prometheus.Registerer) *Metrics {
	return NewMetrics(reg)
}

func ProvideManager(
	verifier *connection.TokenVerifier,
	chatService *chat.Service,
	hseService *hse.Service,
	tracker *presence.Tracker,
	recorder presence.Recorder,
	metrics *Metrics,
	logger *slog.Logger,
	opts Options,
) *Manager {
	return NewManager(verifier, chatService, hseService, tracker, recorder, metrics, logger, opts)
}

var Set = wire.NewSet(ProvideOptions, ProvideMetrics, ProvideManager)
