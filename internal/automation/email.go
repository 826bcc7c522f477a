package automation

import (
	"context"

	"github.com/relaycrm/relaycrm/internal/logging"
	"go.uber.org/zap"
)

// LoggingEmailSender records the send in the application log instead of
// talking to a mail provider. It stands in wherever no SMTP backend is
// configured, keeping rule execution observable in development.
type LoggingEmailSender struct {
	logger logging.Logger
}

// NewLoggingEmailSender creates a log-only email sender.
func NewLoggingEmailSender(logger logging.Logger) *LoggingEmailSender {
	return &LoggingEmailSender{logger: logger.With(zap.String("component", "email"))}
}

func (s *LoggingEmailSender) Send(_ context.Context, recipient, template string, _ map[string]interface{}) error {
	s.logger.Info("email queued",
		zap.String("recipient", recipient),
		zap.String("template", template),
	)
	return nil
}
