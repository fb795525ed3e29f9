package usecase

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"NewsHarvester/internal/ports"
)

// Minimum lengths an extracted article must clear before persistence.
const (
	minTitleLen   = 5
	minContentLen = 50
)

// NormalizeURL canonicalizes an article URL for deduplication: the query
// string, fragment and any trailing slash are volatile across listings.
// Idempotent: NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}

// Qualifies applies the persistence gate on extracted title and content.
func Qualifies(title, content string) bool {
	return utf8.RuneCountInString(title) > minTitleLen &&
		utf8.RuneCountInString(content) > minContentLen
}

// LinkDeduplicator rejects links whose article is already stored, either
// by URL (raw or normalized) or by exact title under the same source.
type LinkDeduplicator struct {
	store ports.ArticleStore
}

// NewLinkDeduplicator wires the article store.
func NewLinkDeduplicator(store ports.ArticleStore) *LinkDeduplicator {
	return &LinkDeduplicator{store: store}
}

// SeenURL reports whether any stored article matches the raw link or its
// normalized form.
func (d *LinkDeduplicator) SeenURL(ctx context.Context, link string) (bool, error) {
	return d.store.ExistsByURL(ctx, link, NormalizeURL(link))
}

// SeenTitle catches re-published duplicates hiding behind a different
// tracking URL.
func (d *LinkDeduplicator) SeenTitle(ctx context.Context, title, sourceID string) (bool, error) {
	return d.store.ExistsByTitle(ctx, title, sourceID)
}
