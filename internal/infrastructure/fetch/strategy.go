package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// ErrBlocked marks a direct fetch refused by the remote host (403/429).
var ErrBlocked = errors.New("fetch blocked by remote host")

const maxBodyBytes = 10 << 20

// Markers whose presence in a direct response indicates the initial HTML
// is script-rendered and a headless pass is required.
var spaMarkers = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`id="__next"`,
	`__NEXT_DATA__`,
	`data-reactroot`,
	`window.webpackJsonp`,
	`/static/js/main.`,
	`.chunk.js`,
	`ng-version=`,
}

// Resolver picks between a plain HTTP GET and a headless render per page.
// Escalation happens at most once per page: a blocked or script-rendered
// direct response triggers exactly one rendered attempt.
type Resolver struct {
	client    *http.Client
	headless  ports.HeadlessCapability
	userAgent string
	logger    *slog.Logger
}

var _ ports.PageFetcher = (*Resolver)(nil)

// NewResolver wires the direct HTTP client and the headless capability.
func NewResolver(client *http.Client, headless ports.HeadlessCapability, userAgent string, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:    client,
		headless:  headless,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch returns page HTML and the strategy that produced it.
func (r *Resolver) Fetch(ctx context.Context, src domain.Source, pageURL string) (string, domain.FetchStrategy, error) {
	if src.RequiresJS || src.BotProtected {
		html, err := r.render(ctx, pageURL)
		return html, domain.StrategyRendered, err
	}

	body, err := r.direct(ctx, pageURL)
	if err != nil {
		if errors.Is(err, ErrBlocked) {
			r.logger.Debug("direct fetch blocked, escalating", "url", pageURL)
			html, rErr := r.render(ctx, pageURL)
			return html, domain.StrategyRendered, rErr
		}
		return "", domain.StrategyDirect, err
	}

	if looksScriptRendered(body) {
		r.logger.Debug("spa markers detected, escalating", "url", pageURL)
		html, rErr := r.render(ctx, pageURL)
		return html, domain.StrategyRendered, rErr
	}

	return body, domain.StrategyDirect, nil
}

func (r *Resolver) direct(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(body), nil
}

func (r *Resolver) render(ctx context.Context, pageURL string) (string, error) {
	if r.headless == nil {
		return "", fmt.Errorf("headless rendering unavailable")
	}

	html, err := r.headless.Render(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("rendered fetch: %w", err)
	}
	return html, nil
}

func looksScriptRendered(body string) bool {
	for _, marker := range spaMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
