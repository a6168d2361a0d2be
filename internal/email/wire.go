package email

import (
	"github.com/google/wire"

	"crewlink/config"
)

// ProvideEmailSender is a Wire provider function that creates a Sender.
// It returns nil when SMTP is not configured so email delivery is skipped.
func ProvideEmailSender(cfg *config.Config) *Sender {
	if cfg.SMTPHost == "" {
		return nil
	}
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUsername
	}
	return NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, from)
}

var Set = wire.NewSet(ProvideEmailSender)
