// Package browser drives a Chromium page with go-rod to read and act on
// profile pages.
package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config defines how the browser is launched
type Config struct {
	// Headless runs Chromium without a window
	Headless bool `toml:"headless" yaml:"headless"`

	// Bin is an explicit Chromium binary. Empty lets the launcher find or
	// download one.
	Bin string `toml:"bin" yaml:"bin"`

	// UserDataDir holds the logged-in browser profile between runs
	UserDataDir string `toml:"user_data_dir" yaml:"user_data_dir"`

	// NavigationTimeout bounds a page load
	NavigationTimeout time.Duration `toml:"navigation_timeout" yaml:"navigation_timeout"`

	// ElementTimeout bounds waiting for a control to appear after a click
	ElementTimeout time.Duration `toml:"element_timeout" yaml:"element_timeout"`

	// SettleDelay is slept after navigation and clicks
	SettleDelay time.Duration `toml:"settle_delay" yaml:"settle_delay"`
}

// DefaultConfig returns default browser configuration
func DefaultConfig() Config {
	return Config{
		Headless:          false,
		UserDataDir:       "assets/browser",
		NavigationTimeout: 30 * time.Second,
		ElementTimeout:    10 * time.Second,
		SettleDelay:       2 * time.Second,
	}
}

// Session owns one browser and the single page every collaborator uses
type Session struct {
	config   Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	current  string
	logger   *slog.Logger
}

// Open launches Chromium and opens a blank page
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "browser")

	l := launcher.New().Headless(config.Headless).Leakless(false)
	if config.Bin != "" {
		l = l.Bin(config.Bin)
	}
	if config.UserDataDir != "" {
		l = l.UserDataDir(config.UserDataDir)
	}
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "launch browser"),
			"set browser.bin to a local Chromium if the download is blocked")
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, errors.Wrap(err, "connect to browser")
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, errors.Wrap(err, "open page")
	}

	logger.Info("browser started", "headless", config.Headless, "user_data_dir", config.UserDataDir)
	return &Session{
		config:   config,
		launcher: l,
		browser:  b,
		page:     page,
		logger:   logger,
	}, nil
}

// Close shuts the browser down
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.launcher.Kill()
	s.browser = nil
	if err != nil {
		return errors.Wrap(err, "close browser")
	}
	return nil
}

// Goto navigates to url and waits for the page to load
func (s *Session) Goto(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.config.NavigationTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return errors.Wrapf(err, "navigate to %s", url)
	}
	if err := p.WaitLoad(); err != nil {
		return errors.Wrapf(err, "wait for %s", url)
	}
	s.current = url
	s.logger.Debug("navigated", "url", url)
	return s.settle(ctx)
}

// At reports whether the page is on url from the last Goto
func (s *Session) At(url string) bool {
	return s.current == url
}

// HTML returns the current page source
func (s *Session) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", errors.Wrap(err, "read page html")
	}
	return html, nil
}

// Page returns the page bound to ctx
func (s *Session) Page(ctx context.Context) *rod.Page {
	return s.page.Context(ctx)
}

// waitFor waits up to ElementTimeout for selector under the page
func (s *Session) waitFor(ctx context.Context, selector string) (*rod.Element, error) {
	p := s.page.Context(ctx).Timeout(s.config.ElementTimeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return nil, errors.Wrapf(err, "wait for %q", selector)
	}
	return el.Context(ctx), nil
}

func (s *Session) settle(ctx context.Context) error {
	if s.config.SettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.config.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
