package extract

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// Text fragments at or below this length are extraction noise
// (timestamps, "Share", photo credits).
const noiseTextLen = 10

// Selector for the single ordered content pass. Matching in document
// order is what preserves heading/list/embed interleaving.
const contentNodeSelector = "p, h2, h3, ul, ol, blockquote, iframe"

// Embed markup containers whose descendants must not be re-captured.
const embedContainerSelector = "blockquote"

// ArticleExtractor turns article-page HTML into an ordered content
// document plus a title and an image candidate set.
type ArticleExtractor struct {
	logger *slog.Logger
}

var _ ports.ArticleExtractor = (*ArticleExtractor)(nil)

// NewArticleExtractor builds the extractor.
func NewArticleExtractor(logger *slog.Logger) *ArticleExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleExtractor{logger: logger}
}

// Extract produces one ExtractedDocument from article HTML and the
// source's selectors. An empty result is "no qualifying article", not an
// error.
func (e *ArticleExtractor) Extract(src domain.Source, html string) (domain.ExtractedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("parse article html: %w", err)
	}

	extracted := domain.ExtractedDocument{
		Title:          e.title(doc, src.Selectors.Title),
		Fragments:      e.fragments(doc, src.Selectors.Content),
		Images:         e.images(doc, src.Selectors.ImageOrDefault()),
		ImageFallbacks: e.imageFallbacks(doc),
	}

	e.logger.Debug("article extracted",
		"source", src.Name,
		"fragments", len(extracted.Fragments),
		"images", len(extracted.Images))
	return extracted, nil
}

// title returns the first visible titleSelector match, cleaned.
func (e *ArticleExtractor) title(doc *goquery.Document, selector string) string {
	var title string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !visible(s) {
			return true
		}
		title = cleanText(s.Text())
		return title == ""
	})
	return title
}

// fragments performs the single ordered pass over the content container.
// Headings, lists and embeds stay exactly where they occurred in the
// source document.
func (e *ArticleExtractor) fragments(doc *goquery.Document, contentSelector string) []domain.Fragment {
	var out []domain.Fragment

	doc.Find(contentSelector).Find(contentNodeSelector).Each(func(_ int, node *goquery.Selection) {
		if !visible(node) {
			return
		}
		// Nodes nested inside an already-captured container would
		// duplicate its content.
		if node.ParentsFiltered(embedContainerSelector).Length() > 0 {
			return
		}

		switch goquery.NodeName(node) {
		case "p":
			if text := cleanText(node.Text()); utf8.RuneCountInString(text) > noiseTextLen {
				out = append(out, domain.Fragment{Kind: domain.FragmentParagraph, Text: text})
			}
		case "h2":
			if text := cleanText(node.Text()); text != "" {
				out = append(out, domain.Fragment{Kind: domain.FragmentHeading, Level: 2, Text: text})
			}
		case "h3":
			if text := cleanText(node.Text()); text != "" {
				out = append(out, domain.Fragment{Kind: domain.FragmentHeading, Level: 3, Text: text})
			}
		case "ul", "ol":
			items := listItems(node)
			if len(items) == 0 {
				return
			}
			out = append(out, domain.Fragment{
				Kind:    domain.FragmentList,
				Ordered: goquery.NodeName(node) == "ol",
				Items:   items,
			})
		case "blockquote":
			if provider, ok := embedProvider(node); ok {
				if markup, err := goquery.OuterHtml(node); err == nil {
					out = append(out, domain.Fragment{Kind: domain.FragmentEmbed, Provider: provider, Markup: markup})
				}
				return
			}
			if text := cleanText(node.Text()); utf8.RuneCountInString(text) > noiseTextLen {
				out = append(out, domain.Fragment{Kind: domain.FragmentParagraph, Text: text})
			}
		case "iframe":
			if provider, ok := embedProvider(node); ok {
				if markup, err := goquery.OuterHtml(node); err == nil {
					out = append(out, domain.Fragment{Kind: domain.FragmentEmbed, Provider: provider, Markup: markup})
				}
			}
		}
	})

	return out
}

func listItems(node *goquery.Selection) []string {
	var items []string
	node.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		if !visible(li) {
			return
		}
		if text := cleanText(li.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}

// embedProvider recognizes known rich-media embed markup.
func embedProvider(node *goquery.Selection) (string, bool) {
	class, _ := node.Attr("class")
	class = strings.ToLower(class)

	if goquery.NodeName(node) == "blockquote" {
		switch {
		case strings.Contains(class, "twitter-tweet"):
			return "twitter", true
		case strings.Contains(class, "instagram-media"):
			return "instagram", true
		case strings.Contains(class, "tiktok-embed"):
			return "tiktok", true
		case strings.Contains(class, "reddit-embed"):
			return "reddit", true
		}
		return "", false
	}

	src, _ := node.Attr("src")
	src = strings.ToLower(src)
	switch {
	case strings.Contains(src, "youtube.com") || strings.Contains(src, "youtu.be"):
		return "youtube", true
	case strings.Contains(src, "vimeo.com"):
		return "vimeo", true
	case strings.Contains(src, "facebook.com/plugins"):
		return "facebook", true
	case strings.Contains(src, "spotify.com"):
		return "spotify", true
	}
	return "", false
}

// Lazy-load attributes probed on img elements, in priority order.
var lazyImageAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "data-srcset", "srcset"}

// images collects the raw selector-matched image candidates.
func (e *ArticleExtractor) images(doc *goquery.Document, selector string) []string {
	var out []string

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if !visible(s) {
			return
		}
		if candidate := imageCandidate(s); candidate != "" {
			out = append(out, candidate)
		}
	})

	return out
}

// imageFallbacks collects the hero-background and Open Graph / Twitter
// meta candidates. They are returned separately because the selector
// matches may all turn out unusable only after normalization.
func (e *ArticleExtractor) imageFallbacks(doc *goquery.Document) []string {
	var out []string

	doc.Find(`[style*="background-image"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !visible(s) {
			return true
		}
		style, _ := s.Attr("style")
		if raw := backgroundImageRef(style); raw != "" {
			out = append(out, raw)
			return false
		}
		return true
	})

	for _, meta := range []string{`meta[property="og:image"]`, `meta[name="twitter:image"]`} {
		if content, ok := doc.Find(meta).First().Attr("content"); ok && content != "" {
			out = append(out, content)
			break
		}
	}

	return out
}

// imageCandidate pulls the raw URL off an img or a background container.
func imageCandidate(s *goquery.Selection) string {
	if goquery.NodeName(s) == "img" {
		for _, attr := range lazyImageAttrs {
			value, ok := s.Attr(attr)
			if !ok || value == "" {
				continue
			}
			// srcset entries carry a width descriptor after the URL.
			if strings.HasSuffix(attr, "srcset") {
				value = strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
				value = strings.SplitN(value, " ", 2)[0]
			}
			if value != "" {
				return value
			}
		}
		return ""
	}

	style, _ := s.Attr("style")
	if raw := backgroundImageRef(style); raw != "" {
		return raw
	}
	if value, ok := s.Attr("data-bg"); ok {
		return value
	}
	return ""
}

// backgroundImageRef extracts the url(...) reference from an inline style.
func backgroundImageRef(style string) string {
	idx := strings.Index(strings.ToLower(style), "background-image")
	if idx < 0 {
		return ""
	}
	rest := style[idx:]
	open := strings.Index(rest, "url(")
	if open < 0 {
		return ""
	}
	rest = rest[open:]
	closing := strings.Index(rest, ")")
	if closing < 0 {
		return ""
	}
	return rest[:closing+1]
}

// cleanText trims, strips control characters and collapses whitespace.
func cleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
