package worker

import (
	"context"
	"encoding/json"
	"time"

	"postpilot/apps/backend/features/content"
	"postpilot/apps/backend/features/job"
)

// Chunk is one embedded slice of a content item, ready for the vector store.
type Chunk struct {
	ContentItemID string
	ClientID      string
	ChunkIndex    int
	Text          string
	Vector        []float32
}

type ContentRepository interface {
	Get(ctx context.Context, id string) (*content.ContentItem, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	UpdateBody(ctx context.Context, id string, body string) error
}

// Publisher pushes a content item to the client's site (WordPress binding in
// production).
type Publisher interface {
	Publish(ctx context.Context, item *content.ContentItem) error
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) error
	DeleteChunks(ctx context.Context, contentItemID string) error
}

type BillingGateway interface {
	Reconcile(ctx context.Context, event json.RawMessage) error
}

// JobEnqueuer lets handlers chain follow-up work through the queue instead of
// firing unawaited calls.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, req job.EnqueueRequest) (*job.Job, error)
}
