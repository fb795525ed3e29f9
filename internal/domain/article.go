package domain

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Embedding dimensions accepted from the external providers. A reduced
// projection with any other length is discarded.
const (
	EmbeddingDim        = 1536
	ReducedEmbeddingDim = 128
)

// Frequency is the scrape cadence configured on a Source.
type Frequency string

const (
	FrequencyHourly Frequency = "hourly"
	Frequency3H     Frequency = "3h"
	Frequency6H     Frequency = "6h"
	Frequency9H     Frequency = "9h"
	Frequency12H    Frequency = "12h"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Frequencies lists every supported cadence in scheduling order.
func Frequencies() []Frequency {
	return []Frequency{
		FrequencyHourly, Frequency3H, Frequency6H, Frequency9H,
		Frequency12H, FrequencyDaily, FrequencyWeekly,
	}
}

// SourceStatus gates whether a source takes part in scheduled runs.
type SourceStatus string

const (
	SourceActive    SourceStatus = "active"
	SourceSuspended SourceStatus = "suspended"
	SourceBlocked   SourceStatus = "blocked"
)

// Selectors carries the per-source CSS selectors driving extraction.
// List, Link, Title and Content are required; Image falls back to "img".
type Selectors struct {
	List    string
	Link    string
	Title   string
	Content string
	Image   string
}

// Validate rejects a selector set that cannot drive an ingestion pass.
func (s Selectors) Validate() error {
	switch {
	case s.List == "":
		return fmt.Errorf("list selector is required")
	case s.Link == "":
		return fmt.Errorf("link selector is required")
	case s.Title == "":
		return fmt.Errorf("title selector is required")
	case s.Content == "":
		return fmt.Errorf("content selector is required")
	}
	return nil
}

// ImageOrDefault returns the configured image selector or the "img" default.
func (s Selectors) ImageOrDefault() string {
	if s.Image == "" {
		return "img"
	}
	return s.Image
}

// Source is the configuration record for one scraped feed.
type Source struct {
	ID           string
	Name         string
	URL          string
	BaseURL      string
	Language     string
	Category     string
	Frequency    Frequency
	Status       SourceStatus
	Selectors    Selectors
	RequiresJS   bool
	BotProtected bool
	LastScraped  *time.Time
}

// Schedulable reports whether the source may be picked up by a run.
// An empty status is a permanent alias for active.
func (s Source) Schedulable() bool {
	return s.Status == SourceActive || s.Status == ""
}

// Base resolves the URL base used for relative links: the configured
// baseUrl if present, otherwise scheme+host of the source's own URL.
func (s Source) Base() (*url.URL, error) {
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url %q: %w", s.BaseURL, err)
		}
		return u, nil
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url %q: %w", s.URL, err)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// FetchStrategy names how a page's HTML was obtained.
type FetchStrategy string

const (
	StrategyDirect   FetchStrategy = "direct"
	StrategyRendered FetchStrategy = "rendered"
)

// ContentFormat marks how Article.Content was rendered from fragments.
type ContentFormat string

const (
	FormatMarkdown ContentFormat = "markdown"
	FormatText     ContentFormat = "text"
)

// Article is the persisted record produced by one successful ingestion.
type Article struct {
	ID            uuid.UUID
	SourceID      string
	Title         string
	Content       string
	ContentFormat ContentFormat
	URL           string
	Category      string
	Language      string
	PublishedAt   time.Time
	Images        []string
	Embedding     []float32
	EmbeddingPCA  []float32
	ViewCount     int
	Likes         int
	Dislikes      int
	ShareCount    int
	CreatedAt     time.Time
}

// Recipient is a push-notification target with a stored category preference.
type Recipient struct {
	Token    string
	Language string
}

// NotificationAction is a tappable button attached to a push notification.
type NotificationAction struct {
	ID    string
	Title string
}

// Notification is the fan-out payload handed to the push gateway.
type Notification struct {
	Title      string
	Body       string
	Recipients []string
	DeepLink   string
	ImageURL   string
	Actions    []NotificationAction
}
