package browser

import (
	"context"
	"log/slog"

	"github.com/livinlefevreloca/outreach/internal/classifier"
)

// Inspector loads a profile page and reports its connection signals
type Inspector struct {
	session *Session
	logger  *slog.Logger
}

func NewInspector(session *Session, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inspector{session: session, logger: logger.With("component", "inspector")}
}

// InspectPageSignals implements classifier.Inspector
func (i *Inspector) InspectPageSignals(ctx context.Context, target classifier.Target) (classifier.PageSignals, error) {
	if err := i.session.Goto(ctx, target.URL); err != nil {
		return classifier.PageSignals{}, err
	}
	signals, err := inspectCurrent(ctx, i.session)
	if err != nil {
		return classifier.PageSignals{}, err
	}
	i.logger.Debug("page signals",
		"public_identifier", target.PublicIdentifier,
		"pending_button", signals.HasPendingIndicator,
		"invite_button", signals.HasConnectInvite)
	return signals, nil
}
