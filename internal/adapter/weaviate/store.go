package weaviate

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate/entities/models"

	"postpilot/apps/backend/internal/worker"
)

const className = "ContentChunk"

// Store persists content-item chunk embeddings for retrieval by the content
// suggestion screens. The embeddings job is its only writer.
type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreChunk(ctx context.Context, chunk worker.Chunk) error {
	_, err := s.client.Data().Creator().
		WithClassName(className).
		WithProperties(map[string]interface{}{
			"text":          chunk.Text,
			"contentItemId": chunk.ContentItemID,
			"clientId":      chunk.ClientID,
			"chunkIndex":    chunk.ChunkIndex,
		}).
		WithVector(chunk.Vector).
		Do(ctx)
	return err
}

// DeleteChunks removes every chunk of a content item, so re-running an
// embeddings job replaces instead of duplicating.
func (s *Store) DeleteChunks(ctx context.Context, contentItemID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"contentItemId"}).
			WithOperator(filters.Equal).
			WithValueString(contentItemID)).
		Do(ctx)
	return err
}

// EnsureSchema creates the chunk class when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, s.client)
}

func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	exists, err := client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:       className,
		Description: "A chunk of a client's content item",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "contentItemId", DataType: []string{"string"}},
			{Name: "clientId", DataType: []string{"string"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
		},
	}
	return client.Schema().ClassCreator().WithClass(class).Do(ctx)
}
