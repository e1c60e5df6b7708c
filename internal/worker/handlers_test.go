package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postpilot/apps/backend/features/content"
	"postpilot/apps/backend/features/job"
	"postpilot/apps/backend/internal/notify"
)

func TestPublishArticle(t *testing.T) {
	ctx := context.Background()

	t.Run("PublishesAndMarks", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1", ClientID: "a1", Status: content.StatusApproved})
		h, pub, _, _ := newTestHandlers(contents)

		err := h.PublishArticle(ctx, &job.Job{ID: "j1", ContentItemID: "c1"})
		require.NoError(t, err)
		assert.Equal(t, 1, pub.calls)
		assert.Equal(t, []string{"c1"}, contents.published)
	})

	t.Run("ContentMissingIsFailure", func(t *testing.T) {
		h, pub, _, _ := newTestHandlers(newMockContentRepo())

		err := h.PublishArticle(ctx, &job.Job{ID: "j1", ContentItemID: "gone"})
		assert.ErrorContains(t, err, "content not found")
		assert.Zero(t, pub.calls)
	})

	t.Run("SecondRunObservesPublished", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1", Status: content.StatusApproved})
		h, pub, _, _ := newTestHandlers(contents)
		j := &job.Job{ID: "j1", ContentItemID: "c1"}

		require.NoError(t, h.PublishArticle(ctx, j))
		require.NoError(t, h.PublishArticle(ctx, j))

		// The external publish must not run twice for the same logical job.
		assert.Equal(t, 1, pub.calls)
	})

	t.Run("PublisherErrorPropagates", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1"})
		h, pub, _, _ := newTestHandlers(contents)
		pub.err = errors.New("wordpress 500")

		err := h.PublishArticle(ctx, &job.Job{ID: "j1", ContentItemID: "c1"})
		assert.ErrorContains(t, err, "wordpress 500")
		assert.Empty(t, contents.published)
	})
}

func TestPublishGMB(t *testing.T) {
	ctx := context.Background()

	t.Run("SendsReminder", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1"})
		h, _, sender, _ := newTestHandlers(contents)

		j := &job.Job{ID: "j1", ContentItemID: "c1", Data: json.RawMessage(`{"recipient":"owner@biz.test"}`)}
		require.NoError(t, h.PublishGMB(ctx, j))
		require.Len(t, sender.kinds, 1)
		assert.Equal(t, notify.KindGMBReminder, sender.kinds[0])
		assert.Equal(t, "owner@biz.test", sender.recipients[0])
	})

	t.Run("ContentMissingIsFailure", func(t *testing.T) {
		h, _, sender, _ := newTestHandlers(newMockContentRepo())

		j := &job.Job{ID: "j1", ContentItemID: "gone", Data: json.RawMessage(`{}`)}
		assert.ErrorContains(t, h.PublishGMB(ctx, j), "content not found")
		assert.Empty(t, sender.kinds)
	})
}

func TestSendEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("ForwardsPayloadVerbatim", func(t *testing.T) {
		h, _, sender, _ := newTestHandlers(newMockContentRepo())

		data := json.RawMessage(`{"recipient":"a@b.c","subject":"Weekly report"}`)
		require.NoError(t, h.SendEmail(ctx, &job.Job{ID: "j1", Data: data}))
		require.Len(t, sender.kinds, 1)
		assert.Equal(t, notify.KindEmail, sender.kinds[0])
		assert.Equal(t, "a@b.c", sender.recipients[0])
	})

	t.Run("SenderRejectionIsFailure", func(t *testing.T) {
		h, _, sender, _ := newTestHandlers(newMockContentRepo())
		sender.err = notify.ErrRejected

		err := h.SendEmail(ctx, &job.Job{ID: "j1", Data: json.RawMessage(`{"recipient":"a@b.c"}`)})
		assert.True(t, errors.Is(err, notify.ErrRejected))
	})
}

func TestGenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresBodyAndChainsEmbeddings", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1"})
		h, _, _, enq := newTestHandlers(contents)

		j := &job.Job{ID: "j1", ContentItemID: "c1", Data: json.RawMessage(`{"prompt":"write about spring"}`)}
		require.NoError(t, h.GenerateContent(ctx, j))

		assert.Equal(t, "generated", contents.updatedBody["c1"])
		require.Len(t, enq.requests, 1)
		assert.Equal(t, job.TypeProcessEmbeddings, enq.requests[0].Type)
		assert.Equal(t, "c1", enq.requests[0].ContentItemID)
	})

	t.Run("MissingPromptIsFailure", func(t *testing.T) {
		h, _, _, _ := newTestHandlers(newMockContentRepo())

		err := h.GenerateContent(ctx, &job.Job{ID: "j1", Data: json.RawMessage(`{}`)})
		assert.ErrorContains(t, err, "no prompt")
	})

	t.Run("EnqueueFailureIsFailure", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1"})
		h, _, _, enq := newTestHandlers(contents)
		enq.err = errors.New("store down")

		j := &job.Job{ID: "j1", ContentItemID: "c1", Data: json.RawMessage(`{"prompt":"p"}`)}
		assert.ErrorContains(t, h.GenerateContent(ctx, j), "enqueue embeddings job")
	})
}

func TestProcessEmbeddings(t *testing.T) {
	ctx := context.Background()

	t.Run("DeletesThenStoresChunks", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1", ClientID: "a1", Body: "first paragraph\n\nsecond paragraph"})
		vectors := &mockVectorStore{}
		h := NewHandlers(contents, &mockPublisher{}, &mockSender{}, &mockGenerator{}, &mockEmbedder{},
			vectors, &mockBilling{}, &mockEnqueuer{}, &fakeClock{t: time.Now()})

		require.NoError(t, h.ProcessEmbeddings(ctx, &job.Job{ID: "j1", ContentItemID: "c1"}))
		assert.Equal(t, []string{"c1"}, vectors.deleted)
		require.NotEmpty(t, vectors.stored)
		assert.Equal(t, "c1", vectors.stored[0].ContentItemID)
		assert.Equal(t, "a1", vectors.stored[0].ClientID)
	})

	t.Run("EmbedderErrorIsFailure", func(t *testing.T) {
		contents := newMockContentRepo(&content.ContentItem{ID: "c1", Body: "text"})
		h := NewHandlers(contents, &mockPublisher{}, &mockSender{}, &mockGenerator{}, &mockEmbedder{err: errors.New("quota")},
			&mockVectorStore{}, &mockBilling{}, &mockEnqueuer{}, &fakeClock{t: time.Now()})

		assert.ErrorContains(t, h.ProcessEmbeddings(ctx, &job.Job{ID: "j1", ContentItemID: "c1"}), "embed chunk")
	})
}

func TestReconcileBilling(t *testing.T) {
	ctx := context.Background()
	billing := &mockBilling{}
	h := NewHandlers(newMockContentRepo(), &mockPublisher{}, &mockSender{}, &mockGenerator{}, &mockEmbedder{},
		&mockVectorStore{}, billing, &mockEnqueuer{}, &fakeClock{t: time.Now()})

	event := json.RawMessage(`{"type":"invoice.paid"}`)
	require.NoError(t, h.ReconcileBilling(ctx, &job.Job{ID: "j1", Data: event}))
	require.Len(t, billing.events, 1)
	assert.JSONEq(t, string(event), string(billing.events[0]))
}
