// Package profileurl converts between canonical profile URLs and the public
// identifiers used as primary keys for profile records.
package profileurl

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// BaseURL is the prefix every canonical profile URL starts with
const BaseURL = "https://www.linkedin.com/in/"

var (
	ErrEmptyURL      = errors.New("empty URL")
	ErrNotProfileURL = errors.New("not a valid /in/ profile URL")
)

// Host is the site profile URLs must point at. Subdomains are accepted.
const Host = "linkedin.com"

// ToPublicID extracts the public identifier from a profile URL.
// Query strings, fragments and trailing path segments are ignored. A URL
// without a scheme is read as https.
func ToPublicID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}

	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(withScheme)
	if err != nil {
		return "", errors.Wrapf(ErrNotProfileURL, "%q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.WithHintf(errors.Wrapf(ErrNotProfileURL, "%q", raw), "scheme must be http or https")
	}
	host := strings.ToLower(u.Hostname())
	if host != Host && !strings.HasSuffix(host, "."+Host) {
		return "", errors.WithHintf(errors.Wrapf(ErrNotProfileURL, "%q", raw), "host must be %s", Host)
	}

	// u.Path is already percent-decoded
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "in" && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}

	return "", errors.Wrapf(ErrNotProfileURL, "%q", raw)
}

// FromPublicID builds the canonical profile URL for a public identifier.
// An empty identifier yields an empty URL.
func FromPublicID(id string) string {
	id = strings.Trim(id, "/")
	if id == "" {
		return ""
	}
	return BaseURL + url.PathEscape(id) + "/"
}
