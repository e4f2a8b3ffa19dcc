package browser

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
	"github.com/livinlefevreloca/outreach/internal/message"
)

// NewThreadURL opens an empty conversation with a recipient search box
const NewThreadURL = "https://www.linkedin.com/messaging/thread/new/"

const (
	messageButtonSelector = `button[aria-label*="Message"]`
	messageOptionSelector = `div[aria-label$="to message"]`
	messageInputSelector  = `div[class*="msg-form__contenteditable"]`
	messageSendSelector   = `button[type="submit"][class*="msg-form"]`

	connectionsInputSelector = `input[class^="msg-connections"]`
	searchResultRowSelector  = `div[class*="msg-connections-typeahead__search-result-row"]`
	composeInputSelector     = `div[class^="msg-form__contenteditable"]`
	composeSendSelector      = `button[class^="msg-form__send-button"]`
)

// ErrNoRecipientName means the payload has no name to search the
// messaging page with
var ErrNoRecipientName = errors.New("profile has no full_name")

// deliveryRoute is one way of getting a message to a profile
type deliveryRoute struct {
	name string
	send func(ctx context.Context, target lifecycle.Target, body string) error
}

// Messenger sends the follow-up message to connected profiles
type Messenger struct {
	session  *Session
	checker  lifecycle.StatusChecker
	renderer *message.Renderer
	routes   []deliveryRoute
	logger   *slog.Logger
}

func NewMessenger(session *Session, checker lifecycle.StatusChecker, renderer *message.Renderer, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Messenger{
		session:  session,
		checker:  checker,
		renderer: renderer,
		logger:   logger.With("component", "messenger"),
	}
	m.routes = []deliveryRoute{
		{name: "profile pop-up", send: m.sendFromProfile},
		{name: "new thread", send: m.sendFromNewThread},
	}
	return m
}

// SendFollowUp implements lifecycle.Messenger. Each delivery route is
// tried in order; when all fail the message is reported as skipped.
func (m *Messenger) SendFollowUp(ctx context.Context, target lifecycle.Target) (lifecycle.MessageOutcome, error) {
	logger := m.logger.With("public_identifier", target.PublicIdentifier)

	status, err := m.checker.CheckStatus(ctx, target.ClassifierTarget())
	if err != nil {
		return lifecycle.MessageSkipped, err
	}
	if status != classifier.StatusConnected {
		logger.Info("message skipped, not connected", "status", status.String())
		return lifecycle.MessageSkipped, nil
	}

	body, err := m.renderer.RenderProfile(target.Profile)
	if err != nil {
		return lifecycle.MessageSkipped, errors.Wrap(err, "render follow-up")
	}

	for _, route := range m.routes {
		if err := route.send(ctx, target, body); err != nil {
			logger.Warn("message route failed", "route", route.name, "error", err)
			continue
		}
		logger.Info("message sent", "route", route.name, "length", len(body))
		return lifecycle.MessageSent, nil
	}
	logger.Error("failed to send message", "routes", len(m.routes))
	return lifecycle.MessageSkipped, nil
}

// sendFromProfile uses the Message button on the profile page, or the
// same action under the overflow menu
func (m *Messenger) sendFromProfile(ctx context.Context, target lifecycle.Target, body string) error {
	if !m.session.At(target.URL) {
		if err := m.session.Goto(ctx, target.URL); err != nil {
			return err
		}
	}

	if err := clickFirstVisible(ctx, m.session, messageButtonSelector); err != nil {
		more, err := m.session.waitFor(ctx, overflowButtonSelector)
		if err != nil {
			return errors.Wrap(err, "open message dialog")
		}
		if err := more.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return errors.Wrap(err, "open overflow menu")
		}
		option, err := m.session.waitFor(ctx, messageOptionSelector)
		if err != nil {
			return errors.Wrap(err, "open message dialog")
		}
		if err := option.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return errors.Wrap(err, "open message dialog")
		}
	}

	if err := m.compose(ctx, messageInputSelector, messageSendSelector, body); err != nil {
		return err
	}

	// close the conversation overlay
	_ = m.session.Page(ctx).Keyboard.Press(input.Escape)
	return nil
}

// sendFromNewThread opens an empty conversation and picks the recipient
// by searching for their full name
func (m *Messenger) sendFromNewThread(ctx context.Context, target lifecycle.Target, body string) error {
	name := RecipientName(target.Profile)
	if name == "" {
		return ErrNoRecipientName
	}

	if err := m.session.Goto(ctx, NewThreadURL); err != nil {
		return err
	}

	search, err := m.session.waitFor(ctx, connectionsInputSelector)
	if err != nil {
		return errors.Wrap(err, "find recipient search")
	}
	if err := search.Input(name); err != nil {
		return errors.Wrap(err, "search recipient")
	}
	if err := m.session.settle(ctx); err != nil {
		return err
	}

	row, err := m.session.waitFor(ctx, searchResultRowSelector)
	if err != nil {
		return errors.Wrapf(err, "no search result for %q", name)
	}
	if err := row.ScrollIntoView(); err != nil {
		return errors.Wrap(err, "scroll to search result")
	}
	if err := row.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errors.Wrap(err, "pick recipient")
	}

	return m.compose(ctx, composeInputSelector, composeSendSelector, body)
}

// compose types body into the message box and sends it
func (m *Messenger) compose(ctx context.Context, inputSelector, sendSelector, body string) error {
	box, err := m.session.waitFor(ctx, inputSelector)
	if err != nil {
		return err
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errors.Wrap(err, "focus message box")
	}
	if err := m.session.Page(ctx).InsertText(body); err != nil {
		return errors.Wrap(err, "type message")
	}

	send, err := m.session.waitFor(ctx, sendSelector)
	if err != nil {
		return err
	}
	if err := send.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errors.Wrap(err, "click send")
	}
	return m.session.settle(ctx)
}

// RecipientName is the name to search the messaging page for: full_name,
// or first and last name joined
func RecipientName(profile json.RawMessage) string {
	if len(profile) == 0 {
		return ""
	}
	var p struct {
		FullName  string `json:"full_name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal(profile, &p); err != nil {
		return ""
	}
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
