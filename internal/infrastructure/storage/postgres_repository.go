package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository backs the source registry, article store and recipient
// directory with Postgres.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.SourceRegistry = (*Repository)(nil)
var _ ports.ArticleStore = (*Repository)(nil)
var _ ports.RecipientDirectory = (*Repository)(nil)

// NewRepository wires a sql.DB implementation.
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

var sourceColumns = []string{
	"id", "name", "url", "base_url", "language", "category",
	"frequency", "status", "list_selector", "link_selector",
	"title_selector", "content_selector", "image_selector",
	"requires_js", "bot_protected", "last_scraped",
}

// ListDue returns schedulable sources, optionally filtered by frequency.
// An empty status column is treated as active; blocked and suspended
// sources are never returned. Sources with an unusable selector set are
// dropped here, at load time.
func (r *Repository) ListDue(ctx context.Context, frequency domain.Frequency) ([]domain.Source, error) {
	builder := psql.Select(sourceColumns...).
		From("sources").
		Where(sq.Or{
			sq.Eq{"status": string(domain.SourceActive)},
			sq.Eq{"status": ""},
		}).
		OrderBy("name")
	if frequency != "" {
		builder = builder.Where(sq.Eq{"frequency": string(frequency)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var (
			src         domain.Source
			lastScraped sql.NullTime
		)
		err := rows.Scan(
			&src.ID, &src.Name, &src.URL, &src.BaseURL, &src.Language,
			&src.Category, &src.Frequency, &src.Status,
			&src.Selectors.List, &src.Selectors.Link,
			&src.Selectors.Title, &src.Selectors.Content, &src.Selectors.Image,
			&src.RequiresJS, &src.BotProtected, &lastScraped,
		)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if lastScraped.Valid {
			t := lastScraped.Time
			src.LastScraped = &t
		}

		if err := src.Selectors.Validate(); err != nil {
			r.logger.Warn("skipping source with invalid selectors", "source", src.Name, "error", err)
			continue
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return sources, nil
}

// MarkScraped records the completion timestamp of a source pass.
func (r *Repository) MarkScraped(ctx context.Context, sourceID string, at time.Time) error {
	query, args, err := psql.Update("sources").
		Set("last_scraped", at).
		Where(sq.Eq{"id": sourceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark-scraped query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update last_scraped: %w", err)
	}
	return nil
}

// ExistsByURL reports whether any article matches the raw link or its
// normalized form.
func (r *Repository) ExistsByURL(ctx context.Context, rawURL, normalizedURL string) (bool, error) {
	query, args, err := psql.Select("1").
		From("articles").
		Where(sq.Eq{"url": []string{rawURL, normalizedURL}}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build url-exists query: %w", err)
	}
	return r.exists(ctx, query, args)
}

// ExistsByTitle reports whether an article with the exact title exists
// under the same source.
func (r *Repository) ExistsByTitle(ctx context.Context, title, sourceID string) (bool, error) {
	query, args, err := psql.Select("1").
		From("articles").
		Where(sq.Eq{"title": title, "source_id": sourceID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build title-exists query: %w", err)
	}
	return r.exists(ctx, query, args)
}

func (r *Repository) exists(ctx context.Context, query string, args []interface{}) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return true, nil
}

// Insert persists a freshly ingested article.
func (r *Repository) Insert(ctx context.Context, article *domain.Article) error {
	query, args, err := psql.Insert("articles").
		Columns(
			"id", "source_id", "title", "content", "content_format",
			"url", "category", "language", "published_at",
			"images", "embedding", "embedding_pca",
			"view_count", "likes", "dislikes", "share_count", "created_at",
		).
		Values(
			article.ID, article.SourceID, article.Title, article.Content,
			string(article.ContentFormat), article.URL, article.Category,
			article.Language, article.PublishedAt,
			pq.Array(article.Images), pq.Array(article.Embedding), pq.Array(article.EmbeddingPCA),
			article.ViewCount, article.Likes, article.Dislikes, article.ShareCount,
			article.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// ListSubscribed returns push recipients opted into a category.
func (r *Repository) ListSubscribed(ctx context.Context, category string) ([]domain.Recipient, error) {
	query, args, err := psql.Select("token", "language").
		From("notification_recipients").
		Where(sq.Eq{"category": category, "enabled": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recipients query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var rec domain.Recipient
		if err := rows.Scan(&rec.Token, &rec.Language); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return recipients, nil
}
