package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"NewsHarvester/internal/domain"
)

type fakeProvider struct {
	vector []float32
	err    error
	text   string
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.text = text
	return f.vector, f.err
}

type fakeReducer struct {
	reduced []float32
	err     error
	calls   int
}

func (f *fakeReducer) Reduce(ctx context.Context, vector []float32) ([]float32, error) {
	f.calls++
	return f.reduced, f.err
}

func TestEnrichSetsBothVectors(t *testing.T) {
	provider := &fakeProvider{vector: make([]float32, domain.EmbeddingDim)}
	reducer := &fakeReducer{reduced: make([]float32, domain.ReducedEmbeddingDim)}
	enricher := NewEmbeddingEnricher(provider, reducer, 0, nil)

	article := domain.Article{Title: "Some headline", Content: "body text"}
	enricher.Enrich(context.Background(), &article)

	if len(article.Embedding) != domain.EmbeddingDim {
		t.Fatalf("embedding length = %d, want %d", len(article.Embedding), domain.EmbeddingDim)
	}
	if len(article.EmbeddingPCA) != domain.ReducedEmbeddingDim {
		t.Fatalf("reduced length = %d, want %d", len(article.EmbeddingPCA), domain.ReducedEmbeddingDim)
	}
	if !strings.HasPrefix(provider.text, "Some headline\n\n") {
		t.Fatalf("embedded text should start with the title, got %q", provider.text)
	}
}

func TestEnrichProviderErrorLeavesArticleUntouched(t *testing.T) {
	provider := &fakeProvider{err: errors.New("quota exceeded")}
	reducer := &fakeReducer{}
	enricher := NewEmbeddingEnricher(provider, reducer, 0, nil)

	article := domain.Article{Title: "Some headline", Content: "body text"}
	enricher.Enrich(context.Background(), &article)

	if len(article.Embedding) != 0 {
		t.Fatalf("embedding should stay empty on provider error, got %d values", len(article.Embedding))
	}
	if reducer.calls != 0 {
		t.Fatalf("reducer must not run without an embedding")
	}
}

func TestEnrichDropsWrongReducedDimension(t *testing.T) {
	provider := &fakeProvider{vector: make([]float32, domain.EmbeddingDim)}
	reducer := &fakeReducer{reduced: make([]float32, 64)}
	enricher := NewEmbeddingEnricher(provider, reducer, 0, nil)

	article := domain.Article{Title: "Some headline", Content: "body text"}
	enricher.Enrich(context.Background(), &article)

	if len(article.Embedding) != domain.EmbeddingDim {
		t.Fatalf("full embedding should be kept, got %d values", len(article.Embedding))
	}
	if len(article.EmbeddingPCA) != 0 {
		t.Fatalf("a 64-value projection must be dropped, got %d values", len(article.EmbeddingPCA))
	}
}

func TestEnrichSkipsReducerForUnexpectedEmbedding(t *testing.T) {
	provider := &fakeProvider{vector: make([]float32, 384)}
	reducer := &fakeReducer{reduced: make([]float32, domain.ReducedEmbeddingDim)}
	enricher := NewEmbeddingEnricher(provider, reducer, 0, nil)

	article := domain.Article{Title: "Some headline", Content: "body text"}
	enricher.Enrich(context.Background(), &article)

	if len(article.Embedding) != 384 {
		t.Fatalf("embedding should be stored as returned, got %d values", len(article.Embedding))
	}
	if reducer.calls != 0 {
		t.Fatalf("reducer must only run on full-dimension embeddings")
	}
}

func TestEnrichTruncatesLongContent(t *testing.T) {
	provider := &fakeProvider{vector: make([]float32, domain.EmbeddingDim)}
	enricher := NewEmbeddingEnricher(provider, nil, 100, nil)

	article := domain.Article{Title: "T1234", Content: strings.Repeat("x", 500)}
	enricher.Enrich(context.Background(), &article)

	if got, want := len([]rune(provider.text)), len("T1234\n\n")+100; got != want {
		t.Fatalf("embedded text length = %d, want %d", got, want)
	}
}
