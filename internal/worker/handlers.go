package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"postpilot/apps/backend/features/content"
	"postpilot/apps/backend/features/job"
	"postpilot/apps/backend/internal/clock"
	"postpilot/apps/backend/internal/notify"
	"postpilot/apps/backend/internal/text"
)

const embedChunkWords = 256

// Handlers owns the side-effecting procedures behind each job type. All
// collaborators are injected; every handler must tolerate re-invocation with
// the same payload since delivery is at-least-once.
type Handlers struct {
	contents ContentRepository
	pub      Publisher
	sender   notify.Sender
	gen      Generator
	embedder Embedder
	vectors  VectorStore
	billing  BillingGateway
	jobs     JobEnqueuer
	clk      clock.Clock
}

func NewHandlers(
	contents ContentRepository,
	pub Publisher,
	sender notify.Sender,
	gen Generator,
	embedder Embedder,
	vectors VectorStore,
	billing BillingGateway,
	jobs JobEnqueuer,
	clk clock.Clock,
) *Handlers {
	return &Handlers{
		contents: contents,
		pub:      pub,
		sender:   sender,
		gen:      gen,
		embedder: embedder,
		vectors:  vectors,
		billing:  billing,
		jobs:     jobs,
		clk:      clk,
	}
}

func (h *Handlers) PublishArticle(ctx context.Context, j *job.Job) error {
	item, err := h.lookupContent(ctx, j)
	if err != nil {
		return err
	}

	// Re-delivered job after a successful publish: the work is already done.
	if item.Published() {
		slog.InfoContext(ctx, "content already published, skipping", "content_item_id", item.ID)
		return nil
	}

	if err := h.pub.Publish(ctx, item); err != nil {
		return fmt.Errorf("publish article: %w", err)
	}

	if err := h.contents.MarkPublished(ctx, item.ID, h.clk.Now()); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}

	slog.InfoContext(ctx, "article published", "content_item_id", item.ID, "client_id", item.ClientID)
	return nil
}

func (h *Handlers) PublishGMB(ctx context.Context, j *job.Job) error {
	item, err := h.lookupContent(ctx, j)
	if err != nil {
		return err
	}

	var payload struct {
		Recipient string `json:"recipient"`
	}
	if err := json.Unmarshal(j.Data, &payload); err != nil {
		return fmt.Errorf("invalid gmb payload: %w", err)
	}

	// Success means the reminder was accepted for delivery, not delivered.
	if err := h.sender.Send(ctx, notify.KindGMBReminder, payload.Recipient, j.Data); err != nil {
		return fmt.Errorf("gmb reminder: %w", err)
	}

	slog.InfoContext(ctx, "gmb reminder queued", "content_item_id", item.ID, "recipient", payload.Recipient)
	return nil
}

func (h *Handlers) SendEmail(ctx context.Context, j *job.Job) error {
	var payload struct {
		Recipient string `json:"recipient"`
	}
	if err := json.Unmarshal(j.Data, &payload); err != nil {
		return fmt.Errorf("invalid email payload: %w", err)
	}

	// job_data goes to the sender verbatim; templating happens downstream.
	if err := h.sender.Send(ctx, notify.KindEmail, payload.Recipient, j.Data); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (h *Handlers) GenerateContent(ctx context.Context, j *job.Job) error {
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(j.Data, &payload); err != nil {
		return fmt.Errorf("invalid generation payload: %w", err)
	}
	if payload.Prompt == "" {
		return errors.New("generation payload has no prompt")
	}

	body, err := h.gen.Generate(ctx, payload.Prompt)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}

	if j.ContentItemID != "" {
		if err := h.contents.UpdateBody(ctx, j.ContentItemID, body); err != nil {
			return fmt.Errorf("store generated body: %w", err)
		}

		// Embedding happens as its own job so a failure there is retried
		// independently instead of silently lost.
		if _, err := h.jobs.Enqueue(ctx, job.EnqueueRequest{
			Type:          job.TypeProcessEmbeddings,
			ContentItemID: j.ContentItemID,
		}); err != nil {
			return fmt.Errorf("enqueue embeddings job: %w", err)
		}
	}

	slog.InfoContext(ctx, "content generated", "content_item_id", j.ContentItemID, "body_len", len(body))
	return nil
}

func (h *Handlers) ProcessEmbeddings(ctx context.Context, j *job.Job) error {
	item, err := h.lookupContent(ctx, j)
	if err != nil {
		return err
	}

	// Delete-then-store keeps re-runs from duplicating chunks.
	if err := h.vectors.DeleteChunks(ctx, item.ID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	chunks := text.ChunkBody(item.Body, embedChunkWords)
	for i, c := range chunks {
		vector, err := h.embedder.Embed(ctx, c)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		if err := h.vectors.StoreChunk(ctx, Chunk{
			ContentItemID: item.ID,
			ClientID:      item.ClientID,
			ChunkIndex:    i,
			Text:          c,
			Vector:        vector,
		}); err != nil {
			return fmt.Errorf("store chunk %d: %w", i, err)
		}
	}

	slog.InfoContext(ctx, "embeddings stored", "content_item_id", item.ID, "chunks", len(chunks))
	return nil
}

func (h *Handlers) ReconcileBilling(ctx context.Context, j *job.Job) error {
	if err := h.billing.Reconcile(ctx, j.Data); err != nil {
		return fmt.Errorf("reconcile billing: %w", err)
	}
	return nil
}

func (h *Handlers) lookupContent(ctx context.Context, j *job.Job) (*content.ContentItem, error) {
	if j.ContentItemID == "" {
		return nil, errors.New("job has no content item reference")
	}
	item, err := h.contents.Get(ctx, j.ContentItemID)
	if errors.Is(err, content.ErrNotFound) {
		return nil, fmt.Errorf("content not found: %s", j.ContentItemID)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}
