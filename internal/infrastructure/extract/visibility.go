package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Class tokens that mark an element as hidden from sighted readers.
var hiddenClassTokens = map[string]struct{}{
	"hidden":          {},
	"hide":            {},
	"invisible":       {},
	"sr-only":         {},
	"visually-hidden": {},
	"screen-reader":   {},
	"d-none":          {},
}

// Class/id substrings associated with ads, banners, overlays and sidebars.
var noiseMarkers = []string{
	"advert",
	"adsbygoogle",
	"ad-slot",
	"ad-container",
	"banner",
	"promo",
	"overlay",
	"sidebar",
	"cookie",
	"popup",
	"paywall",
	"newsletter",
	"sponsor",
	"taboola",
	"outbrain",
}

// visible implements the uniform visibility filter applied to title,
// content and image candidates.
func visible(s *goquery.Selection) bool {
	style, _ := s.Attr("style")
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}

	class, _ := s.Attr("class")
	for _, token := range strings.Fields(strings.ToLower(class)) {
		if _, hidden := hiddenClassTokens[token]; hidden {
			return false
		}
	}

	id, _ := s.Attr("id")
	combined := strings.ToLower(class + " " + id)
	for _, marker := range noiseMarkers {
		if strings.Contains(combined, marker) {
			return false
		}
	}

	return true
}
