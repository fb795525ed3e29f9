package ports

import (
	"context"
	"time"

	"NewsHarvester/internal/domain"
)

// SourceRegistry supplies source configuration records and takes back
// lastScraped updates once a pass over a source has completed.
type SourceRegistry interface {
	ListDue(ctx context.Context, frequency domain.Frequency) ([]domain.Source, error)
	MarkScraped(ctx context.Context, sourceID string, at time.Time) error
}

// ArticleStore is the persistence contract for ingested articles.
// Exists checks back the pipeline's dedup decisions; Insert is the only
// write this system performs on articles.
type ArticleStore interface {
	ExistsByURL(ctx context.Context, rawURL, normalizedURL string) (bool, error)
	ExistsByTitle(ctx context.Context, title, sourceID string) (bool, error)
	Insert(ctx context.Context, article *domain.Article) error
}

// PageFetcher returns rendered HTML for a page, choosing between a plain
// HTTP fetch and a headless render per request.
type PageFetcher interface {
	Fetch(ctx context.Context, src domain.Source, pageURL string) (string, domain.FetchStrategy, error)
}

// HeadlessCapability renders a page in a real browser engine.
type HeadlessCapability interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// ListExtractor turns listing-page HTML into absolute candidate links.
type ListExtractor interface {
	Links(src domain.Source, html string) ([]string, error)
}

// ArticleExtractor turns article-page HTML into an ordered content document.
type ArticleExtractor interface {
	Extract(src domain.Source, html string) (domain.ExtractedDocument, error)
}

// ImageNormalizer cleans, absolutizes and filters raw image candidates.
type ImageNormalizer interface {
	Normalize(src domain.Source, pageURL string, raw []string) []string
}

// EmbeddingProvider turns text into a fixed-length semantic vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DimensionalityReducer projects a full-size embedding down to the
// reduced dimension used for cheap similarity computation.
type DimensionalityReducer interface {
	Reduce(ctx context.Context, embedding []float32) ([]float32, error)
}

// NotificationGateway delivers one push notification to many recipients.
type NotificationGateway interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// RecipientDirectory looks up push recipients opted into a category.
type RecipientDirectory interface {
	ListSubscribed(ctx context.Context, category string) ([]domain.Recipient, error)
}

// Scheduler invokes the job on cron-like cadences, one tag per frequency.
type Scheduler interface {
	Start(ctx context.Context, job func(domain.Frequency)) error
	Stop(ctx context.Context) error
}
