package browser

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-rod/rod"
	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
)

// TopCardSelectors locate the profile header, tried in order
var TopCardSelectors = []string{
	`section:has(div.top-card-background-hero-image)`,
	`section[data-member-id]`,
	`section.artdeco-card:has(> div.pv-top-card)`,
	`section:has(> div[class*="pv-top-card"])`,
	`section[componentkey*="com.linkedin.sdui.profile.card"]`,
}

const (
	pendingButtonSelector = `button[aria-label*="Pending"]`
	inviteButtonSelector  = `button[aria-label*="Invite"][aria-label*="to connect"]`
	nameSelector          = `h1`
	headlineSelector      = `div.text-body-medium`
)

var degreePattern = regexp.MustCompile(`(?:^|[^0-9A-Za-z])([123])(?:st|nd|rd|º|er)(?:$|[^0-9A-Za-z])`)

// topCard returns the first element matching TopCardSelectors on the
// current page. A page without one is skipped.
func topCard(page *rod.Page) (*rod.Element, error) {
	for _, selector := range TopCardSelectors {
		els, err := page.Elements(selector)
		if err != nil {
			return nil, errors.Wrapf(err, "query %q", selector)
		}
		if !els.Empty() {
			return els.First(), nil
		}
	}
	return nil, errors.Wrap(lifecycle.ErrSkipProfile, "top card section not found")
}

// hasVisible reports whether a visible element under root matches selector
func hasVisible(root *rod.Element, selector string) (bool, error) {
	els, err := root.Elements(selector)
	if err != nil {
		return false, errors.Wrapf(err, "query %q", selector)
	}
	for _, el := range els {
		visible, err := el.Visible()
		if err != nil {
			continue
		}
		if visible {
			return true, nil
		}
	}
	return false, nil
}

// firstText returns the trimmed text of the first match under root, or ""
func firstText(root *rod.Element, selector string) string {
	els, err := root.Elements(selector)
	if err != nil || els.Empty() {
		return ""
	}
	text, err := els.First().Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// readSignals collects what the classifier needs from a top card
func readSignals(card *rod.Element) (classifier.PageSignals, error) {
	pending, err := hasVisible(card, pendingButtonSelector)
	if err != nil {
		return classifier.PageSignals{}, err
	}
	invite, err := hasVisible(card, inviteButtonSelector)
	if err != nil {
		return classifier.PageSignals{}, err
	}
	text, err := card.Text()
	if err != nil {
		return classifier.PageSignals{}, errors.Wrap(err, "read top card text")
	}
	return classifier.PageSignals{
		HasPendingIndicator: pending,
		HasConnectInvite:    invite,
		Text:                text,
	}, nil
}

// ParseDegree finds a relationship degree such as "2nd" or "1º" in top
// card text. Returns nil when none is present.
func ParseDegree(text string) *int {
	m := degreePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	d := int(m[1][0] - '0')
	return &d
}

// SplitName splits a display name into first and last name
func SplitName(full string) (first, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// headerLines returns the non-empty lines of top card text
func headerLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// inspectCurrent reads signals from the page already loaded in the session
func inspectCurrent(ctx context.Context, s *Session) (classifier.PageSignals, error) {
	card, err := topCard(s.Page(ctx))
	if err != nil {
		return classifier.PageSignals{}, err
	}
	return readSignals(card)
}
