package domain

import (
	"fmt"
	"strings"
)

// FragmentKind classifies one piece of an extracted content document.
type FragmentKind string

const (
	FragmentParagraph FragmentKind = "paragraph"
	FragmentHeading   FragmentKind = "heading"
	FragmentList      FragmentKind = "list"
	FragmentEmbed     FragmentKind = "embed"
)

// Fragment is one typed piece of article content in document order.
// Only the fields matching Kind are populated.
type Fragment struct {
	Kind     FragmentKind
	Text     string
	Level    int
	Ordered  bool
	Items    []string
	Provider string
	Markup   string
}

// ExtractedDocument is the transient result of one article extraction,
// prior to image normalization and enrichment. Images holds the selector
// matches; ImageFallbacks holds the hero-background and meta-tag
// candidates, consulted when normalization leaves Images empty.
type ExtractedDocument struct {
	Title          string
	Fragments      []Fragment
	Images         []string
	ImageFallbacks []string
}

// HasStructure reports whether any heading or list fragment was captured,
// which switches content rendering to markdown.
func (d ExtractedDocument) HasStructure() bool {
	for _, f := range d.Fragments {
		if f.Kind == FragmentHeading || f.Kind == FragmentList {
			return true
		}
	}
	return false
}

// RenderContent flattens the ordered fragments into the persisted content
// string. Headings and lists force markdown; otherwise plain text.
func (d ExtractedDocument) RenderContent() (string, ContentFormat) {
	markdown := d.HasStructure()

	blocks := make([]string, 0, len(d.Fragments))
	for _, f := range d.Fragments {
		switch f.Kind {
		case FragmentParagraph:
			blocks = append(blocks, f.Text)
		case FragmentHeading:
			marker := "## "
			if f.Level >= 3 {
				marker = "### "
			}
			blocks = append(blocks, marker+f.Text)
		case FragmentList:
			lines := make([]string, 0, len(f.Items))
			for i, item := range f.Items {
				if f.Ordered {
					lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
					continue
				}
				lines = append(lines, "- "+item)
			}
			blocks = append(blocks, strings.Join(lines, "\n"))
		case FragmentEmbed:
			blocks = append(blocks, f.Markup)
		}
	}

	content := strings.TrimSpace(strings.Join(blocks, "\n\n"))
	if markdown {
		return content, FormatMarkdown
	}
	return content, FormatText
}
