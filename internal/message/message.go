// Package message renders follow-up messages from profile payloads.
package message

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
)

// KindText is the only supported template kind: Go text/template syntax
const KindText = "text"

// Template kinds recognized but not rendered
const (
	KindJinja    = "jinja"
	KindAIPrompt = "ai_prompt"
)

// jinjaPlaceholder matches {{ name }} without the leading dot
var jinjaPlaceholder = regexp.MustCompile(`\{\{-?\s*[A-Za-z_][A-Za-z0-9_]*\s*-?\}\}`)

// DefaultTemplate is used when no template file is configured
const DefaultTemplate = "Hi {{.first_name}}, thanks for connecting!"

// ErrUnknownKind is returned for an unsupported template kind
var ErrUnknownKind = errors.New("unknown template kind")

// Config holds message rendering settings
type Config struct {
	TemplateFile string `toml:"template_file" yaml:"template_file"`
	TemplateKind string `toml:"template_kind" yaml:"template_kind"`
	BookingLink  string `toml:"booking_link" yaml:"booking_link"`
}

// DefaultConfig returns the default message configuration
func DefaultConfig() Config {
	return Config{TemplateKind: KindText}
}

// Renderer renders one follow-up template
type Renderer struct {
	tmpl        *template.Template
	bookingLink string
}

// NewRenderer loads the configured template. An empty TemplateFile uses
// DefaultTemplate.
func NewRenderer(cfg Config) (*Renderer, error) {
	text := DefaultTemplate
	if cfg.TemplateFile != "" {
		b, err := os.ReadFile(cfg.TemplateFile)
		if err != nil {
			return nil, errors.Wrapf(err, "read template %s", cfg.TemplateFile)
		}
		text = string(b)
	}
	return Parse(cfg.TemplateKind, text, cfg.BookingLink)
}

// CheckKind returns ErrUnknownKind, with a hint, for anything but KindText.
// An empty kind means KindText.
func CheckKind(kind string) error {
	if kind == "" || kind == KindText {
		return nil
	}
	err := errors.Wrapf(ErrUnknownKind, "%q", kind)
	switch kind {
	case KindJinja:
		return errors.WithHintf(err, "rewrite placeholders like {{ first_name }} as {{.first_name}} and set template_kind = %q", KindText)
	case KindAIPrompt:
		return errors.WithHintf(err, "generated messages are not supported, write a %q template", KindText)
	default:
		return errors.WithHintf(err, "supported kinds: %s", KindText)
	}
}

// Parse builds a renderer from template text
func Parse(kind, text, bookingLink string) (*Renderer, error) {
	if err := CheckKind(kind); err != nil {
		return nil, err
	}

	tmpl, err := template.New("followup").Option("missingkey=zero").Parse(text)
	if err != nil {
		err = errors.Wrap(err, "parse template")
		if m := jinjaPlaceholder.FindString(text); m != "" {
			err = errors.WithHintf(err, "%s looks like a jinja placeholder, write {{.name}} instead", m)
		}
		return nil, err
	}
	return &Renderer{tmpl: tmpl, bookingLink: strings.TrimSpace(bookingLink)}, nil
}

// Render executes the template. Variables missing from vars render empty.
func (r *Renderer) Render(vars map[string]string) (string, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, vars); err != nil {
		return "", errors.Wrap(err, "render template")
	}
	out := strings.TrimSpace(sb.String())
	if r.bookingLink != "" {
		out += "\n\n" + r.bookingLink
	}
	return out, nil
}

// RenderProfile renders with the fields of a profile payload
func (r *Renderer) RenderProfile(profile json.RawMessage) (string, error) {
	vars, err := Vars(profile)
	if err != nil {
		return "", err
	}
	return r.Render(vars)
}

// Vars flattens the top-level scalar fields of a profile payload into
// template variables
func Vars(profile json.RawMessage) (map[string]string, error) {
	vars := make(map[string]string)
	if len(profile) == 0 {
		return vars, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(profile, &fields); err != nil {
		return nil, errors.Wrap(err, "decode profile payload")
	}
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			vars[k] = val
		case float64:
			vars[k] = fmt.Sprintf("%g", val)
		case bool:
			vars[k] = fmt.Sprintf("%t", val)
		}
	}
	return vars, nil
}
