package usecase

import (
	"context"
	"log/slog"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

const defaultEmbedChars = 8000

// EmbeddingEnricher decorates articles with a semantic vector and a
// reduced projection. Enrichment is strictly best-effort: any provider
// failure degrades to an empty vector and never blocks persistence.
type EmbeddingEnricher struct {
	provider ports.EmbeddingProvider
	reducer  ports.DimensionalityReducer
	maxChars int
	logger   *slog.Logger
}

// NewEmbeddingEnricher wires the external providers; either may be nil.
func NewEmbeddingEnricher(provider ports.EmbeddingProvider, reducer ports.DimensionalityReducer, maxChars int, logger *slog.Logger) *EmbeddingEnricher {
	if maxChars <= 0 {
		maxChars = defaultEmbedChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingEnricher{
		provider: provider,
		reducer:  reducer,
		maxChars: maxChars,
		logger:   logger,
	}
}

// Enrich fills Embedding and EmbeddingPCA in place. The reduced
// projection is kept only when its length matches the expected dimension.
func (e *EmbeddingEnricher) Enrich(ctx context.Context, article *domain.Article) {
	if e.provider == nil {
		return
	}

	text := article.Title + "\n\n" + truncateRunes(article.Content, e.maxChars)
	vector, err := e.provider.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("embedding failed, continuing without vector", "url", article.URL, "error", err)
		return
	}
	article.Embedding = vector

	if e.reducer == nil || len(vector) != domain.EmbeddingDim {
		return
	}

	reduced, err := e.reducer.Reduce(ctx, vector)
	if err != nil {
		e.logger.Warn("dimensionality reduction failed", "url", article.URL, "error", err)
		return
	}
	if len(reduced) != domain.ReducedEmbeddingDim {
		e.logger.Warn("unexpected reduced dimension, dropping projection",
			"url", article.URL, "got", len(reduced), "want", domain.ReducedEmbeddingDim)
		return
	}
	article.EmbeddingPCA = reduced
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
