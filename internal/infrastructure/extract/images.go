package extract

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// URL substrings marking tracking pixels and analytics beacons.
var trackerMarkers = []string{
	"pixel",
	"tracker",
	"tracking",
	"analytics",
	"beacon",
	"counter",
	"1x1",
	"spacer",
	"doubleclick",
	"scorecardresearch",
}

// Filename substrings for social and decorative icon assets.
var iconMarkers = []string{
	"facebook",
	"twitter",
	"instagram",
	"whatsapp",
	"telegram",
	"linkedin",
	"youtube",
	"icon",
	"logo",
	"sprite",
	"avatar",
	"placeholder",
}

// Width query parameters rewritten when they request a low-res variant.
var widthParams = []string{"w", "width"}

const (
	lowResWidth    = 800
	canonicalWidth = 1200
)

// ImageNormalizer cleans, absolutizes and filters extracted image URLs
// while preserving first-seen order. Output may be empty; callers then
// re-run normalization over the hero/meta fallback candidates.
type ImageNormalizer struct {
	logger *slog.Logger
}

var _ ports.ImageNormalizer = (*ImageNormalizer)(nil)

// NewImageNormalizer builds the normalizer.
func NewImageNormalizer(logger *slog.Logger) *ImageNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageNormalizer{logger: logger}
}

// Normalize processes raw candidates collected from an article page.
// Protocol- and root-relative forms resolve against the source base;
// remaining relative forms resolve against the page URL.
func (n *ImageNormalizer) Normalize(src domain.Source, pageURL string, raw []string) []string {
	pageBase, err := url.Parse(pageURL)
	if err != nil {
		n.logger.Warn("unparseable page url, dropping page-relative candidates",
			"source", src.Name, "url", pageURL, "error", err)
	}
	srcBase, err := src.Base()
	if err != nil {
		n.logger.Warn("unparseable source base, dropping root-relative candidates",
			"source", src.Name, "error", err)
	}

	var out []string
	seen := map[string]struct{}{}

	for _, item := range raw {
		candidate := unwrapCSSURL(item)
		if candidate == "" || strings.HasPrefix(candidate, "data:") {
			continue
		}
		if containsAny(strings.ToLower(candidate), trackerMarkers) {
			continue
		}

		abs := resolveImage(candidate, srcBase, pageBase)
		if abs == nil {
			continue
		}
		if iconAsset(abs.Path) {
			continue
		}

		rewriteWidth(abs)

		final := abs.String()
		if _, dup := seen[final]; dup {
			continue
		}
		seen[final] = struct{}{}
		out = append(out, final)
	}

	return out
}

// unwrapCSSURL strips a css url(...) wrapper and surrounding quotes.
func unwrapCSSURL(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(strings.ToLower(value), "url(") && strings.HasSuffix(value, ")") {
		value = value[4 : len(value)-1]
	}
	value = strings.Trim(value, `'" `)
	return value
}

func resolveImage(candidate string, srcBase, pageBase *url.URL) *url.URL {
	ref, err := url.Parse(candidate)
	if err != nil {
		return nil
	}
	if ref.IsAbs() {
		return ref
	}

	// Protocol-relative and root-relative forms belong to the source's
	// own host; anything else is relative to the page.
	base := pageBase
	if strings.HasPrefix(candidate, "/") {
		base = srcBase
	}
	if base == nil {
		return nil
	}
	return base.ResolveReference(ref)
}

// rewriteWidth bumps known low-resolution width parameters up to the
// canonical size served by most CDNs.
func rewriteWidth(u *url.URL) {
	q := u.Query()
	changed := false
	for _, param := range widthParams {
		value := q.Get(param)
		if value == "" {
			continue
		}
		width, err := strconv.Atoi(value)
		if err != nil || width >= lowResWidth {
			continue
		}
		q.Set(param, strconv.Itoa(canonicalWidth))
		changed = true
	}
	if changed {
		u.RawQuery = q.Encode()
	}
}

func iconAsset(path string) bool {
	lower := strings.ToLower(path)
	base := lower
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		base = lower[idx+1:]
	}
	if containsAny(base, iconMarkers) {
		return true
	}
	return strings.Contains(lower, "/icons/") || strings.Contains(lower, "/social/")
}

func containsAny(value string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}
