package embedding

import (
	"context"
	"fmt"

	"github.com/amishk599/oppradar/internal/model"
)

// VectorStore persists one vector per company.
type VectorStore interface {
	UpsertCompanyEmbedding(ctx context.Context, companyID string, vec []float32) error
}

// Indexer embeds company text and stores the vector.
type Indexer struct {
	embedder Embedder
	store    VectorStore
}

// NewIndexer returns an Indexer writing through store.
func NewIndexer(embedder Embedder, store VectorStore) *Indexer {
	return &Indexer{embedder: embedder, store: store}
}

// Index embeds text and upserts it as the company's vector.
func (ix *Indexer) Index(ctx context.Context, company model.Company, text string) error {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", company.Domain, err)
	}
	if err := ix.store.UpsertCompanyEmbedding(ctx, company.ID, vec); err != nil {
		return fmt.Errorf("indexing %s: %w", company.Domain, err)
	}
	return nil
}
