package browser

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// HTMLSource provides the current page source
type HTMLSource interface {
	HTML(ctx context.Context) (string, error)
}

// Snapshotter saves the current page of a skipped profile for later review
type Snapshotter struct {
	dir    string
	source HTMLSource
	logger *slog.Logger
}

func NewSnapshotter(dir string, source HTMLSource, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Snapshotter{dir: dir, source: source, logger: logger.With("component", "snapshot")}
}

// Capture writes <dir>/<publicID>.html, replacing any earlier capture
func (s *Snapshotter) Capture(ctx context.Context, publicID string) error {
	name := filepath.Base(publicID)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return errors.Newf("invalid snapshot name %q", publicID)
	}

	html, err := s.source.HTML(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create snapshot dir %s", s.dir)
	}
	path := filepath.Join(s.dir, name+".html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return errors.Wrapf(err, "write snapshot %s", path)
	}
	s.logger.Info("saved page snapshot", "public_identifier", publicID, "path", path)
	return nil
}
