package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// ListExtractor turns a source's listing page into an ordered,
// within-page-deduplicated list of absolute candidate article URLs.
type ListExtractor struct {
	logger *slog.Logger
}

var _ ports.ListExtractor = (*ListExtractor)(nil)

// NewListExtractor builds the extractor.
func NewListExtractor(logger *slog.Logger) *ListExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListExtractor{logger: logger}
}

// Links applies listSelector/linkSelector and resolves every href to an
// absolute URL via standard URL resolution, never string concatenation.
func (e *ListExtractor) Links(src domain.Source, html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	base, err := src.Base()
	if err != nil {
		return nil, err
	}

	var links []string
	seen := map[string]struct{}{}

	doc.Find(src.Selectors.List).Each(func(_ int, item *goquery.Selection) {
		anchor := item.Find(src.Selectors.Link).First()
		if anchor.Length() == 0 && item.Is(src.Selectors.Link) {
			anchor = item
		}

		href, ok := anchor.Attr("href")
		if !ok {
			return
		}

		abs, ok := resolveHref(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	e.logger.Debug("listing extracted", "source", src.Name, "links", len(links))
	return links, nil
}

// resolveHref rejects placeholder hrefs and resolves relative ones
// against the source base.
func resolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	switch href {
	case "", "#", ":", "/":
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		return ref.String(), true
	}
	if base == nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
