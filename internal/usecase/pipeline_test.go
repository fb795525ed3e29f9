package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/infrastructure/extract"
)

type fakeRegistry struct {
	sources []domain.Source
	marked  map[string]time.Time
}

func (f *fakeRegistry) ListDue(ctx context.Context, frequency domain.Frequency) ([]domain.Source, error) {
	return f.sources, nil
}

func (f *fakeRegistry) MarkScraped(ctx context.Context, sourceID string, at time.Time) error {
	if f.marked == nil {
		f.marked = map[string]time.Time{}
	}
	f.marked[sourceID] = at
	return nil
}

type fakeStore struct {
	articles []domain.Article
}

func (f *fakeStore) ExistsByURL(ctx context.Context, rawURL, normalizedURL string) (bool, error) {
	for _, a := range f.articles {
		if a.URL == rawURL || a.URL == normalizedURL {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ExistsByTitle(ctx context.Context, title, sourceID string) (bool, error) {
	for _, a := range f.articles {
		if a.Title == title && a.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Insert(ctx context.Context, article *domain.Article) error {
	f.articles = append(f.articles, *article)
	return nil
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, src domain.Source, pageURL string) (string, domain.FetchStrategy, error) {
	if err, ok := f.errs[pageURL]; ok {
		return "", domain.StrategyDirect, err
	}
	html, ok := f.pages[pageURL]
	if !ok {
		return "", domain.StrategyDirect, fmt.Errorf("no fixture for %s", pageURL)
	}
	return html, domain.StrategyDirect, nil
}

type fakeRecipients struct{ recipients []domain.Recipient }

func (f *fakeRecipients) ListSubscribed(ctx context.Context, category string) ([]domain.Recipient, error) {
	return f.recipients, nil
}

type fakeNotifier struct{ sent []domain.Notification }

func (f *fakeNotifier) Notify(ctx context.Context, n domain.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding provider down")
}

func testSource() domain.Source {
	return domain.Source{
		ID:        "s1",
		Name:      "example",
		URL:       "https://news.example.com/latest",
		BaseURL:   "https://news.example.com",
		Language:  "en",
		Category:  "world",
		Frequency: domain.FrequencyHourly,
		Status:    domain.SourceActive,
		Selectors: domain.Selectors{
			List:    "article.item",
			Link:    "a",
			Title:   "h1.headline",
			Content: "div.body",
			Image:   "img.lead",
		},
	}
}

const listingHTML = `
<div class="feed">
  <article class="item"><a href="/a1">One</a></article>
  <article class="item"><a href="/a2">Two</a></article>
  <article class="item"><a href="/a3">Three</a></article>
</div>`

func articleHTML(title string) string {
	return fmt.Sprintf(`
<html><body>
  <h1 class="headline">%s</h1>
  <div class="body">
    <p>The first paragraph carries comfortably more than enough characters.</p>
    <p>The second paragraph also carries comfortably more than enough characters.</p>
  </div>
  <img class="lead" src="/img/lead.jpg"/>
</body></html>`, title)
}

func testPages() map[string]string {
	return map[string]string{
		"https://news.example.com/latest": listingHTML,
		"https://news.example.com/a1":     articleHTML("First fresh story"),
		"https://news.example.com/a2":     articleHTML("Already stored story"),
		"https://news.example.com/a3":     articleHTML("Third fresh story"),
	}
}

func newTestPipeline(store *fakeStore, fetcher *fakeFetcher, registry *fakeRegistry,
	enricher *EmbeddingEnricher, notifier *fakeNotifier) *Pipeline {
	return NewPipeline(PipelineDeps{
		Sources:    registry,
		Store:      store,
		Fetcher:    fetcher,
		Lists:      extract.NewListExtractor(nil),
		Articles:   extract.NewArticleExtractor(nil),
		Images:     extract.NewImageNormalizer(nil),
		Enricher:   enricher,
		Recipients: &fakeRecipients{recipients: []domain.Recipient{{Token: "device-1", Language: "en"}}},
		Notifier:   notifier,
	})
}

func TestRunIngestsNewAndSkipsKnownURL(t *testing.T) {
	t.Parallel()

	store := &fakeStore{articles: []domain.Article{
		{SourceID: "s1", Title: "Already stored story", URL: "https://news.example.com/a2"},
	}}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	notifier := &fakeNotifier{}
	fetcher := &fakeFetcher{pages: testPages()}

	pipeline := newTestPipeline(store, fetcher, registry, nil, notifier)
	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))

	require.Len(t, store.articles, 3, "one pre-seeded plus exactly two new")
	created := store.articles[1:]
	assert.Equal(t, "First fresh story", created[0].Title)
	assert.Equal(t, "Third fresh story", created[1].Title)
	assert.Equal(t, "https://news.example.com/a1", created[0].URL)
	assert.Equal(t, domain.FormatText, created[0].ContentFormat)
	assert.Equal(t, []string{"https://news.example.com/img/lead.jpg"}, created[0].Images)
	assert.Equal(t, "world", created[0].Category)
	assert.Empty(t, created[0].Embedding)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []string{"device-1"}, notifier.sent[0].Recipients)
	assert.Contains(t, notifier.sent[0].DeepLink, "app://articles/")
	assert.NotEmpty(t, notifier.sent[0].Body)

	assert.Contains(t, registry.marked, "s1")
}

func TestRunIsIdempotentOverUnchangedPages(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	notifier := &fakeNotifier{}
	fetcher := &fakeFetcher{pages: testPages()}

	pipeline := newTestPipeline(store, fetcher, registry, nil, notifier)
	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))
	first := len(store.articles)
	require.Equal(t, 3, first)

	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))
	assert.Equal(t, first, len(store.articles), "second pass over unchanged HTML must create nothing")
	assert.Len(t, notifier.sent, 1, "no new articles means no second notification")
}

func TestRunRejectsShortTitle(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://news.example.com/latest": `<article class="item"><a href="/a1">One</a></article>`,
		"https://news.example.com/a1":     articleHTML("Draw"),
	}

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	pipeline := newTestPipeline(store, &fakeFetcher{pages: pages}, registry, nil, &fakeNotifier{})

	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))
	assert.Empty(t, store.articles, "a four-character title must never be persisted")
}

func TestRunSkipsDuplicateTitleUnderSameSource(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://news.example.com/latest":   `<article class="item"><a href="/a1?utm=x">One</a></article>`,
		"https://news.example.com/a1?utm=x": articleHTML("Republished story"),
	}

	store := &fakeStore{articles: []domain.Article{
		{SourceID: "s1", Title: "Republished story", URL: "https://news.example.com/old-path"},
	}}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	pipeline := newTestPipeline(store, &fakeFetcher{pages: pages}, registry, nil, &fakeNotifier{})

	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))
	assert.Len(t, store.articles, 1, "same title under the same source must be skipped")
}

func TestRunPersistsDespiteEmbeddingFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	enricher := NewEmbeddingEnricher(failingEmbedder{}, nil, 0, nil)

	pipeline := newTestPipeline(store, &fakeFetcher{pages: testPages()}, registry, enricher, &fakeNotifier{})
	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))

	require.Len(t, store.articles, 3)
	for _, article := range store.articles {
		assert.Empty(t, article.Embedding, "embedding failure must degrade to an empty vector")
		assert.Empty(t, article.EmbeddingPCA)
	}
}

func TestRunLeavesLastScrapedOnListingFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	fetcher := &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{"https://news.example.com/latest": errors.New("listing unreachable")},
	}

	pipeline := newTestPipeline(store, fetcher, registry, nil, &fakeNotifier{})
	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly),
		"a failing source must not abort the batch")

	assert.Empty(t, store.articles)
	assert.NotContains(t, registry.marked, "s1",
		"fatal listing fetch must leave lastScraped untouched so the source is retried")
}

func TestRunSkipsFailingLinkAndContinues(t *testing.T) {
	t.Parallel()

	pages := testPages()
	delete(pages, "https://news.example.com/a2")

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	fetcher := &fakeFetcher{
		pages: pages,
		errs:  map[string]error{"https://news.example.com/a2": errors.New("article unreachable")},
	}

	pipeline := newTestPipeline(store, fetcher, registry, nil, &fakeNotifier{})
	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))

	require.Len(t, store.articles, 2, "one failing link must not abort the rest of the source")
	assert.Contains(t, registry.marked, "s1", "a partially failed pass still updates lastScraped")
}

func TestRunIgnoresBlockedSources(t *testing.T) {
	t.Parallel()

	blocked := testSource()
	blocked.Status = domain.SourceBlocked

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{blocked}}
	pipeline := newTestPipeline(store, &fakeFetcher{pages: testPages()}, registry, nil, &fakeNotifier{})

	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))
	assert.Empty(t, store.articles)
	assert.NotContains(t, registry.marked, "s1")
}

func TestRunFallsBackToMetaImageWhenLeadIsTracker(t *testing.T) {
	t.Parallel()

	trackerLead := `
<html><head>
  <meta property="og:image" content="https://news.example.com/img/og.jpg"/>
</head><body>
  <h1 class="headline">Tracker-only lead story</h1>
  <div class="body">
    <p>The first paragraph carries comfortably more than enough characters.</p>
    <p>The second paragraph also carries comfortably more than enough characters.</p>
  </div>
  <img class="lead" src="//cdn.example.com/1x1-pixel.gif"/>
</body></html>`

	pages := map[string]string{
		"https://news.example.com/latest": `<article class="item"><a href="/a1">One</a></article>`,
		"https://news.example.com/a1":     trackerLead,
	}

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	pipeline := newTestPipeline(store, &fakeFetcher{pages: pages}, registry, nil, &fakeNotifier{})

	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))
	require.Len(t, store.articles, 1)
	assert.Equal(t, []string{"https://news.example.com/img/og.jpg"}, store.articles[0].Images,
		"a tracker-pixel lead must fall through to the og:image candidate")
}

func TestRunRendersMarkdownForStructuredContent(t *testing.T) {
	t.Parallel()

	structured := `
<html><body>
  <h1 class="headline">Structured story</h1>
  <div class="body">
    <p>An introduction paragraph with a comfortable amount of text.</p>
    <h2>Details</h2>
    <ul><li>first detail</li><li>second detail</li></ul>
  </div>
</body></html>`

	pages := map[string]string{
		"https://news.example.com/latest": `<article class="item"><a href="/a1">One</a></article>`,
		"https://news.example.com/a1":     structured,
	}

	store := &fakeStore{}
	registry := &fakeRegistry{sources: []domain.Source{testSource()}}
	pipeline := newTestPipeline(store, &fakeFetcher{pages: pages}, registry, nil, &fakeNotifier{})

	require.NoError(t, pipeline.Run(context.Background(), domain.FrequencyHourly))
	require.Len(t, store.articles, 1)
	assert.Equal(t, domain.FormatMarkdown, store.articles[0].ContentFormat)
	assert.Contains(t, store.articles[0].Content, "## Details")
	assert.Contains(t, store.articles[0].Content, "- first detail")
}
