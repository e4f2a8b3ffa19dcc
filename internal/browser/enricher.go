package browser

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
)

// Enricher reads profile details from the top card
type Enricher struct {
	session *Session
	logger  *slog.Logger
}

func NewEnricher(session *Session, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Enricher{session: session, logger: logger.With("component", "enricher")}
}

// Enrich implements lifecycle.Enricher. A card without a name yields a nil
// payload.
func (e *Enricher) Enrich(ctx context.Context, target lifecycle.Target) (json.RawMessage, json.RawMessage, error) {
	if err := e.session.Goto(ctx, target.URL); err != nil {
		return nil, nil, err
	}
	card, err := topCard(e.session.Page(ctx))
	if err != nil {
		return nil, nil, err
	}
	text, err := card.Text()
	if err != nil {
		return nil, nil, errors.Wrap(err, "read top card text")
	}

	profile, raw, err := BuildProfile(target, firstText(card, nameSelector), firstText(card, headlineSelector), text)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		e.logger.Warn("no name on top card", "public_identifier", target.PublicIdentifier)
		return nil, nil, nil
	}
	e.logger.Info("profile enriched", "public_identifier", target.PublicIdentifier)
	return profile, raw, nil
}

type profilePayload struct {
	PublicIdentifier string `json:"public_identifier"`
	URL              string `json:"url"`
	FullName         string `json:"full_name"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Headline         string `json:"headline,omitempty"`
	ConnectionDegree *int   `json:"connection_degree,omitempty"`
}

type rawPayload struct {
	TopCardText string `json:"top_card_text"`
}

// BuildProfile assembles the enrichment payloads from top card contents.
// When name is empty the first line of the card text is used; with no text
// either, both payloads are nil.
func BuildProfile(target lifecycle.Target, name, headline, cardText string) (json.RawMessage, json.RawMessage, error) {
	lines := headerLines(cardText)
	if name == "" && len(lines) > 0 {
		name = lines[0]
	}
	if name == "" {
		return nil, nil, nil
	}
	if headline == "" && len(lines) > 1 && lines[0] == name {
		headline = lines[1]
	}

	first, last := SplitName(name)
	profile, err := json.Marshal(profilePayload{
		PublicIdentifier: target.PublicIdentifier,
		URL:              target.URL,
		FullName:         name,
		FirstName:        first,
		LastName:         last,
		Headline:         headline,
		ConnectionDegree: ParseDegree(cardText),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode profile")
	}
	raw, err := json.Marshal(rawPayload{TopCardText: cardText})
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode raw profile")
	}
	return profile, raw, nil
}
