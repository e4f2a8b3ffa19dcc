package browser

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-rod/rod/lib/proto"
	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
)

const (
	overflowButtonSelector  = `button[id$="profile-overflow-action"]`
	overflowInviteSelector  = `div[aria-label*="Invite"][aria-label*="to connect"]`
	sendWithoutNoteSelector = `button[aria-label="Send without a note"]`
	limitNoticeSelector     = `div[role="alertdialog"], div.ip-fuse-limit-alert`
)

// LimitNotices are phrases shown when the invitation quota is used up
var LimitNotices = []string{
	"weekly invitation limit",
	"reached the weekly limit",
	"out of invitations",
}

// Connector sends connection requests from the profile page
type Connector struct {
	session *Session
	markers classifier.Markers
	logger  *slog.Logger
}

func NewConnector(session *Session, markers classifier.Markers, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connector{session: session, markers: markers, logger: logger.With("component", "connector")}
}

// RequestConnection implements lifecycle.Connector
func (c *Connector) RequestConnection(ctx context.Context, target lifecycle.Target) (lifecycle.ConnectResult, error) {
	logger := c.logger.With("public_identifier", target.PublicIdentifier)

	if err := c.session.Goto(ctx, target.URL); err != nil {
		return lifecycle.ConnectPending, err
	}
	card, err := topCard(c.session.Page(ctx))
	if err != nil {
		return lifecycle.ConnectPending, err
	}
	signals, err := readSignals(card)
	if err != nil {
		return lifecycle.ConnectPending, err
	}

	verdict := classifier.Classify(target.DegreeHint(), signals, c.markers)
	switch verdict.Status {
	case classifier.StatusConnected:
		logger.Info("already connected", "reason", string(verdict.Reason))
		return lifecycle.ConnectConnected, nil
	case classifier.StatusPending:
		logger.Info("invitation already pending", "reason", string(verdict.Reason))
		return lifecycle.ConnectPending, nil
	}

	if signals.HasConnectInvite {
		err = clickFirstVisible(ctx, c.session, inviteButtonSelector)
	} else {
		err = c.inviteFromOverflow(ctx)
	}
	if err != nil {
		return lifecycle.ConnectPending, errors.Wrap(err, "open invitation")
	}
	if err := c.session.settle(ctx); err != nil {
		return lifecycle.ConnectPending, err
	}

	if err := c.checkLimit(ctx); err != nil {
		return lifecycle.ConnectPending, err
	}

	send, err := c.session.waitFor(ctx, sendWithoutNoteSelector)
	if err != nil {
		return lifecycle.ConnectPending, err
	}
	if err := send.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return lifecycle.ConnectPending, errors.Wrap(err, "send invitation")
	}
	if err := c.session.settle(ctx); err != nil {
		return lifecycle.ConnectPending, err
	}
	if err := c.checkLimit(ctx); err != nil {
		return lifecycle.ConnectPending, err
	}

	logger.Info("connection request sent")
	return lifecycle.ConnectPending, nil
}

func (c *Connector) inviteFromOverflow(ctx context.Context) error {
	more, err := c.session.waitFor(ctx, overflowButtonSelector)
	if err != nil {
		return err
	}
	if err := more.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errors.Wrap(err, "open overflow menu")
	}
	invite, err := c.session.waitFor(ctx, overflowInviteSelector)
	if err != nil {
		return err
	}
	return invite.Click(proto.InputMouseButtonLeft, 1)
}

// checkLimit returns ErrHardLimit if a quota notice is showing
func (c *Connector) checkLimit(ctx context.Context) error {
	els, err := c.session.Page(ctx).Elements(limitNoticeSelector)
	if err != nil {
		return errors.Wrap(err, "query limit notice")
	}
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if IsLimitNotice(text) {
			return errors.Wrapf(lifecycle.ErrHardLimit, "%s", strings.TrimSpace(text))
		}
	}
	return nil
}

// IsLimitNotice reports whether text announces an exhausted invitation quota
func IsLimitNotice(text string) bool {
	lower := strings.ToLower(text)
	for _, notice := range LimitNotices {
		if strings.Contains(lower, notice) {
			return true
		}
	}
	return false
}

// clickFirstVisible clicks the first visible element matching selector
func clickFirstVisible(ctx context.Context, s *Session, selector string) error {
	els, err := s.Page(ctx).Elements(selector)
	if err != nil {
		return errors.Wrapf(err, "query %q", selector)
	}
	for _, el := range els {
		if visible, err := el.Visible(); err == nil && visible {
			return el.Click(proto.InputMouseButtonLeft, 1)
		}
	}
	return errors.Newf("no visible element matches %q", selector)
}
