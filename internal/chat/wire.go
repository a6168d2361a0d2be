package chat

import (
	"database/sql"
	"log/slog"

	"github.com/google/wire"

	"crewlink/internal/notifications"
	"crewlink/internal/presence"
)

func ProvideRepository(db *sql.DB) *PostgresRepository {
	return NewPostgresRepository(db)
}

func ProvideService(repo Repository, users UserDirectory, tracker *presence.Tracker, notifier notifications.Dispatcher, logger *slog.Logger) *Service {
	return NewService(repo, users, tracker, notifier, logger)
}

var Set = wire.NewSet(
	ProvideRepository,
	wire.Bind(new(Repository), new(*PostgresRepository)),
	ProvideService,
)
