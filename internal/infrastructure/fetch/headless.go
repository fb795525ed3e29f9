package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"NewsHarvester/internal/ports"
)

// ErrRenderEnv marks a failure attributable to the render environment
// (browser missing or not launchable) rather than the target site.
var ErrRenderEnv = errors.New("headless environment unavailable")

const consentProbeTimeout = 2 * time.Second

// HeadlessOptions tunes one render pass.
type HeadlessOptions struct {
	NavTimeout       time.Duration
	ConsentSelectors []string
	BinCandidates    []string
}

// Headless renders pages through a single headless-browser session per
// call. The browser is released on every exit path; if a graceful close
// fails the launcher process is force-killed.
type Headless struct {
	opts   HeadlessOptions
	logger *slog.Logger
}

var _ ports.HeadlessCapability = (*Headless)(nil)

// NewHeadless builds the adapter with sane defaults.
func NewHeadless(opts HeadlessOptions, logger *slog.Logger) *Headless {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 25 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Headless{opts: opts, logger: logger}
}

// Render navigates to pageURL and returns the rendered HTML. When the
// launch fails with an explicit binary, one retry is made letting the
// launcher fall back to its bundled default browser.
func (h *Headless) Render(ctx context.Context, pageURL string) (string, error) {
	bin := h.findBinary()
	html, err := h.renderOnce(ctx, pageURL, bin)
	if err == nil {
		return html, nil
	}
	if !retryWithoutBinary(bin, err) {
		return "", err
	}

	h.logger.Warn("headless launch failed, retrying with default browser", "error", err)
	return h.renderOnce(ctx, pageURL, "")
}

// retryWithoutBinary reports whether a second launch can behave
// differently: only environment failures qualify, and only when the
// first attempt pinned an explicit binary.
func retryWithoutBinary(bin string, err error) bool {
	return bin != "" && errors.Is(err, ErrRenderEnv)
}

// findBinary probes known install locations before asking the launcher.
func (h *Headless) findBinary() string {
	for _, candidate := range h.opts.BinCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if path, ok := launcher.LookPath(); ok {
		return path
	}
	return ""
}

func (h *Headless) renderOnce(ctx context.Context, pageURL, bin string) (string, error) {
	l := launcher.New().Headless(true).NoSandbox(true)
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("%w: launch browser: %v", ErrRenderEnv, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return "", fmt.Errorf("%w: connect browser: %v", ErrRenderEnv, err)
	}
	defer func() {
		if cErr := browser.Close(); cErr != nil {
			h.logger.Warn("browser close failed, killing process", "error", cErr)
			l.Kill()
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := page.Timeout(h.opts.NavTimeout).WaitLoad(); err != nil {
		// Partial content beats none: slow pages often hold usable
		// markup by the time the timeout fires.
		h.logger.Debug("navigation timed out, using partial content", "url", pageURL, "error", err)
	}

	h.dismissConsent(page)

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}
	return html, nil
}

func (h *Headless) dismissConsent(page *rod.Page) {
	for _, selector := range h.opts.ConsentSelectors {
		has, el, err := page.Timeout(consentProbeTimeout).Has(selector)
		if err != nil || !has {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			h.logger.Debug("dismissed consent overlay", "selector", selector)
			return
		}
	}
}
