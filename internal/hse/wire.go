package hse

import (
	"log/slog"

	"github.com/google/wire"

	"crewlink/internal/database"
	"crewlink/internal/notifications"
	"crewlink/internal/user"
)

func ProvideRepository(db *database.Database) *GormRepository {
	return NewGormRepository(db.DB)
}

func ProvideService(repo Repository, users user.Repository, notifier notifications.Dispatcher, logger *slog.Logger) *Service {
	return NewService(repo, users, notifier, logger)
}

var Set = wire.NewSet(
	ProvideRepository,
	wire.Bind(new(Repository), new(*GormRepository)),
	ProvideService,
)
