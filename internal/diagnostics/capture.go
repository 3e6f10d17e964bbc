// Package diagnostics captures the state of a page when a run fails.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/reqctx"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// Artifact names. Each capture overwrites the previous one.
const (
	HTMLFile       = "debug.html"
	ScreenshotFile = "debug_screenshot.png"
	MarkdownFile   = "debug.md"
)

// DefaultTimeout bounds a capture. The run's own context is usually already
// done when a capture starts.
const DefaultTimeout = 15 * time.Second

// ErrNothingCaptured is returned when no artifact could be written.
var ErrNothingCaptured = errors.New("no diagnostics captured")

// Capturer writes diagnostics for failed runs into Dir.
type Capturer struct {
	Dir     string
	Timeout time.Duration
}

func NewCapturer(dir string) *Capturer {
	return &Capturer{Dir: dir, Timeout: DefaultTimeout}
}

// Capture saves the page markup, a screenshot and a markdown digest. It is
// best effort: every artifact that could be written is reported, and the
// error is non-nil only when none was.
func (c *Capturer) Capture(ctx context.Context, page browser.Page) (*models.Diagnostic, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug dir: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	d := &models.Diagnostic{}
	logger := reqctx.Logger(ctx, log.Logger)

	loc, _ := page.Location(ctx)

	html, err := page.HTML(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not capture page markup")
	} else {
		if path, err := c.write(HTMLFile, []byte(html)); err != nil {
			logger.Warn().Err(err).Msg("Could not save page markup")
		} else {
			d.HTML = path
		}

		if digest, err := Markdown(html, loc); err != nil {
			logger.Warn().Err(err).Msg("Could not render page digest")
		} else if path, err := c.write(MarkdownFile, []byte(digest)); err != nil {
			logger.Warn().Err(err).Msg("Could not save page digest")
		} else {
			d.Markdown = path
		}
	}

	png, err := page.Screenshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not capture screenshot")
	} else if path, err := c.write(ScreenshotFile, png); err != nil {
		logger.Warn().Err(err).Msg("Could not save screenshot")
	} else {
		d.Screenshot = path
	}

	if d.HTML == "" && d.Screenshot == "" && d.Markdown == "" {
		return nil, ErrNothingCaptured
	}
	logger.Info().Str("dir", c.Dir).Str("url", loc).Msg("Diagnostics captured")
	return d, nil
}

func (c *Capturer) write(name string, data []byte) (string, error) {
	path := filepath.Join(c.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
