package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

const snippetLen = 140

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Sources    ports.SourceRegistry
	Store      ports.ArticleStore
	Fetcher    ports.PageFetcher
	Lists      ports.ListExtractor
	Articles   ports.ArticleExtractor
	Images     ports.ImageNormalizer
	Enricher   *EmbeddingEnricher
	Recipients ports.RecipientDirectory
	Notifier   ports.NotificationGateway
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline is the top-level ingestion orchestrator. Sources and links
// are processed strictly sequentially so at most one headless session is
// live and no host sees a request burst.
type Pipeline struct {
	sources    ports.SourceRegistry
	store      ports.ArticleStore
	fetcher    ports.PageFetcher
	lists      ports.ListExtractor
	articles   ports.ArticleExtractor
	images     ports.ImageNormalizer
	enricher   *EmbeddingEnricher
	dedup      *LinkDeduplicator
	recipients ports.RecipientDirectory
	notifier   ports.NotificationGateway
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		sources:    deps.Sources,
		store:      deps.Store,
		fetcher:    deps.Fetcher,
		lists:      deps.Lists,
		articles:   deps.Articles,
		images:     deps.Images,
		enricher:   deps.Enricher,
		dedup:      NewLinkDeduplicator(deps.Store),
		recipients: deps.Recipients,
		notifier:   deps.Notifier,
		logger:     logger,
		now:        now,
	}
}

// Run processes every due source for the given frequency. A failing
// source or link never aborts the batch; only context cancellation does.
func (p *Pipeline) Run(ctx context.Context, frequency domain.Frequency) error {
	sources, err := p.sources.ListDue(ctx, frequency)
	if err != nil {
		return fmt.Errorf("list due sources: %w", err)
	}

	var created []domain.Article
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !src.Schedulable() {
			continue
		}

		fresh, err := p.ingestSource(ctx, src)
		created = append(created, fresh...)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			p.logger.Error("source ingestion failed", "source", src.Name, "error", err)
		}
	}

	notified := false
	if len(created) > 0 && p.notifier != nil {
		notified = p.notify(ctx, created)
	}

	p.logger.Info("batch finished",
		"frequency", frequency,
		"sources", len(sources),
		"new_articles", len(created),
		"notified", notified)
	return nil
}

// ingestSource runs one full pass over a source's candidate links.
// lastScraped is updated after the link loop completes, even partially
// failed; a fatal listing fetch leaves it untouched so the source is
// retried on the next scheduled run.
func (p *Pipeline) ingestSource(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	if err := src.Selectors.Validate(); err != nil {
		return nil, fmt.Errorf("source %s selectors: %w", src.ID, err)
	}

	listingHTML, strategy, err := p.fetcher.Fetch(ctx, src, src.URL)
	if err != nil {
		return nil, fmt.Errorf("listing fetch: %w", err)
	}

	links, err := p.lists.Links(src, listingHTML)
	if err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}

	var (
		created         []domain.Article
		skipped, failed int
	)
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		article, err := p.ingestLink(ctx, src, link)
		switch {
		case err != nil:
			failed++
			p.logger.Warn("link ingestion failed", "source", src.Name, "url", link, "error", err)
		case article == nil:
			skipped++
		default:
			created = append(created, *article)
		}
	}

	if err := p.sources.MarkScraped(ctx, src.ID, p.now()); err != nil {
		p.logger.Warn("failed to update lastScraped", "source", src.Name, "error", err)
	}

	p.logger.Info("source ingested",
		"source", src.Name,
		"strategy", strategy,
		"links", len(links),
		"new", len(created),
		"skipped", skipped,
		"failed", failed)
	return created, nil
}

// ingestLink turns one candidate link into a persisted article, or nil
// when the link is a duplicate or yields nothing qualifying.
func (p *Pipeline) ingestLink(ctx context.Context, src domain.Source, link string) (*domain.Article, error) {
	seen, err := p.dedup.SeenURL(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("url dedup check: %w", err)
	}
	if seen {
		p.logger.Debug("skipping known url", "url", link)
		return nil, nil
	}

	html, _, err := p.fetcher.Fetch(ctx, src, link)
	if err != nil {
		return nil, fmt.Errorf("article fetch: %w", err)
	}

	doc, err := p.articles.Extract(src, html)
	if err != nil {
		return nil, fmt.Errorf("article extract: %w", err)
	}
	if doc.Title == "" {
		return nil, nil
	}

	seen, err = p.dedup.SeenTitle(ctx, doc.Title, src.ID)
	if err != nil {
		return nil, fmt.Errorf("title dedup check: %w", err)
	}
	if seen {
		p.logger.Debug("skipping duplicate title", "title", doc.Title, "url", link)
		return nil, nil
	}

	content, format := doc.RenderContent()
	if !Qualifies(doc.Title, content) {
		return nil, nil
	}

	// Selector-matched images can all be dropped as trackers or icons;
	// only then do the hero/meta candidates get a turn.
	images := p.images.Normalize(src, link, doc.Images)
	if len(images) == 0 {
		images = p.images.Normalize(src, link, doc.ImageFallbacks)
	}

	now := p.now()
	article := &domain.Article{
		ID:            uuid.New(),
		SourceID:      src.ID,
		Title:         doc.Title,
		Content:       content,
		ContentFormat: format,
		URL:           NormalizeURL(link),
		Category:      src.Category,
		Language:      src.Language,
		PublishedAt:   now,
		Images:        images,
		Embedding:     []float32{},
		CreatedAt:     now,
	}

	if p.enricher != nil {
		p.enricher.Enrich(ctx, article)
	}

	if err := p.store.Insert(ctx, article); err != nil {
		return nil, fmt.Errorf("persist article: %w", err)
	}
	return article, nil
}

// notify fans one sample article out to recipients opted into its
// category. Reports whether a notification was actually sent.
func (p *Pipeline) notify(ctx context.Context, created []domain.Article) bool {
	sample := created[0]

	recipients, err := p.recipients.ListSubscribed(ctx, sample.Category)
	if err != nil {
		p.logger.Warn("recipient lookup failed", "category", sample.Category, "error", err)
		return false
	}
	if len(recipients) == 0 {
		return false
	}

	tokens := make([]string, 0, len(recipients))
	for _, r := range recipients {
		tokens = append(tokens, r.Token)
	}

	notification := domain.Notification{
		Title:      sample.Title,
		Body:       snippet(sample.Content, snippetLen),
		Recipients: tokens,
		DeepLink:   "app://articles/" + sample.ID.String(),
		Actions: []domain.NotificationAction{
			{ID: "open", Title: "Read now"},
			{ID: "save", Title: "Save for later"},
		},
	}
	if len(sample.Images) > 0 {
		notification.ImageURL = sample.Images[0]
	}

	if err := p.notifier.Notify(ctx, notification); err != nil {
		p.logger.Warn("notification fan-out failed", "error", err)
		return false
	}
	return true
}

// snippet collapses whitespace and truncates to a rune budget.
func snippet(content string, limit int) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
