package notifications

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"crewlink/config"
	"crewlink/internal/database"
	"crewlink/internal/email"
	"crewlink/internal/user"
)

const queueSize = 1024

func ProvideInbox(db *database.Database) *GormInbox {
	return NewGormInbox(db.DB)
}

// ProvideService starts the dispatcher workers. The cleanup drains the queue.
func ProvideService(cfg *config.Config, inbox *GormInbox, sender *email.Sender, users user.Repository, logger *slog.Logger) (*Service, func()) {
	var mailer Mailer
	if sender != nil {
		mailer = sender
	}
	svc := NewService(inbox, mailer, users, nil, logger, cfg.NotifyWorkers, queueSize)
	svc.Start(context.Background())
	return svc, svc.Close
}

var Set = wire.NewSet(
	ProvideInbox,
	ProvideService,
	wire.Bind(new(Dispatcher), new(*Service)),
)
