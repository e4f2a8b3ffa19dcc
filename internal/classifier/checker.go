package classifier

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// Target identifies the profile whose status is being checked
type Target struct {
	PublicIdentifier string
	URL              string
	DegreeHint       *int
}

// Inspector reads page signals for a profile. Implementations may return
// an error when the top card cannot be found; the error is passed through
// unchanged so callers can match on their own sentinels.
type Inspector interface {
	InspectPageSignals(ctx context.Context, target Target) (PageSignals, error)
}

// Checker collects signals through an Inspector and classifies them
type Checker struct {
	inspector Inspector
	markers   Markers
	logger    *slog.Logger
}

// NewChecker creates a checker. A nil logger discards output.
func NewChecker(inspector Inspector, markers Markers, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Checker{
		inspector: inspector,
		markers:   markers,
		logger:    logger.With("component", "classifier"),
	}
}

// CheckStatus returns the profile's connection status. A first degree
// hint is trusted without touching the page.
func (c *Checker) CheckStatus(ctx context.Context, target Target) (Status, error) {
	if target.DegreeHint != nil && *target.DegreeHint == 1 {
		c.logger.Debug("degree hint is first, trusted as connected",
			"public_identifier", target.PublicIdentifier)
		return StatusConnected, nil
	}

	signals, err := c.inspector.InspectPageSignals(ctx, target)
	if err != nil {
		return StatusNotConnected, errors.Wrapf(err, "inspect %s", target.PublicIdentifier)
	}

	verdict := Classify(target.DegreeHint, signals, c.markers)
	c.logger.Debug("classified connection status",
		"public_identifier", target.PublicIdentifier,
		"status", verdict.Status.String(),
		"reason", string(verdict.Reason))
	return verdict.Status, nil
}
