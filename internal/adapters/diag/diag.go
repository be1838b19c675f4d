// Package diag collects failure snapshots from the scraper: raw HTML and a
// screenshot per failed operation, written under a local dir for later
// inspection
package diag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"processo/internal/platform/logger"
)

// FileCollector writes snapshots to dir. The zero number of kept snapshots
// is unbounded; operators clean the dir out of band
type FileCollector struct {
	dir string
	log logger.Logger
	now func() time.Time
}

// NewFileCollector builds a collector, creating dir when missing
func NewFileCollector(dir string) (*FileCollector, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCollector{dir: dir, log: *logger.Named("diag"), now: time.Now}, nil
}

// CaptureFailure persists the page HTML and screenshot, best effort; a
// failing snapshot write only logs
func (c *FileCollector) CaptureFailure(_ context.Context, label string, html []byte, screenshot []byte) {
	stamp := c.now().UTC().Format("20060102T150405")
	base := filepath.Join(c.dir, fmt.Sprintf("%s_%s", stamp, sanitize(label)))

	if len(html) > 0 {
		if err := writeAtomic(base+".html", html); err != nil {
			c.log.Warn().Err(err).Str("label", label).Msg("html snapshot write failed")
		}
	}
	if len(screenshot) > 0 {
		if err := writeAtomic(base+".png", screenshot); err != nil {
			c.log.Warn().Err(err).Str("label", label).Msg("screenshot write failed")
		}
	}
	c.log.Info().Str("label", label).Str("path", base).Msg("failure snapshot captured")
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func sanitize(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, label)
}
