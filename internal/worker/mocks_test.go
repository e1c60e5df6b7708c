package worker

import (
	"context"
	"encoding/json"
	"time"

	"postpilot/apps/backend/features/content"
	"postpilot/apps/backend/features/job"
	"postpilot/apps/backend/internal/notify"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

// memRepo is an in-memory job.Repository with the same conditional-transition
// semantics as the Postgres implementation.
type memRepo struct {
	jobs     map[string]*job.Job
	fetchErr error
	claimErr error
}

func newMemRepo(jobs ...*job.Job) *memRepo {
	m := &memRepo{jobs: make(map[string]*job.Job)}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *memRepo) Save(ctx context.Context, j *job.Job) error {
	m.jobs[j.ID] = j
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	return j, nil
}

func (m *memRepo) List(ctx context.Context) ([]job.Job, error) {
	var out []job.Job
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (m *memRepo) CountByStatus(ctx context.Context) (map[job.Status]int, error) {
	counts := make(map[job.Status]int)
	for _, j := range m.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

func (m *memRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]job.Job, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var due []job.Job
	for _, j := range m.jobs {
		if j.Status == job.StatusPending && !j.ScheduledFor.After(now) && j.Attempts < j.MaxAttempts {
			due = append(due, *j)
		}
	}
	for i := 0; i < len(due); i++ {
		for k := i + 1; k < len(due); k++ {
			if due[k].ScheduledFor.Before(due[i].ScheduledFor) ||
				(due[k].ScheduledFor.Equal(due[i].ScheduledFor) && due[k].ID < due[i].ID) {
				due[i], due[k] = due[k], due[i]
			}
		}
	}
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memRepo) MarkRunning(ctx context.Context, id string, now time.Time) (int, error) {
	if m.claimErr != nil {
		return 0, m.claimErr
	}
	j, ok := m.jobs[id]
	if !ok || j.Status != job.StatusPending {
		return 0, job.ErrConflict
	}
	j.Status = job.StatusRunning
	j.StartedAt = &now
	j.Attempts++
	return j.Attempts, nil
}

func (m *memRepo) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	j, ok := m.jobs[id]
	if !ok || j.Status != job.StatusRunning {
		return job.ErrConflict
	}
	j.Status = job.StatusCompleted
	j.CompletedAt = &now
	j.ErrorMessage = ""
	return nil
}

func (m *memRepo) MarkFailed(ctx context.Context, id string, now time.Time, errMsg string) error {
	j, ok := m.jobs[id]
	if !ok || j.Status != job.StatusRunning {
		return job.ErrConflict
	}
	j.Status = job.StatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = errMsg
	return nil
}

func (m *memRepo) Reschedule(ctx context.Context, id string, now, nextTime time.Time, errMsg string) error {
	j, ok := m.jobs[id]
	if !ok || j.Status != job.StatusRunning {
		return job.ErrConflict
	}
	j.Status = job.StatusPending
	j.ScheduledFor = nextTime
	j.ErrorMessage = errMsg
	return nil
}

func (m *memRepo) ReclaimStale(ctx context.Context, now time.Time, threshold time.Time) (int, error) {
	n := 0
	for _, j := range m.jobs {
		if j.Status == job.StatusRunning && j.StartedAt != nil && j.StartedAt.Before(threshold) {
			if j.Attempts < j.MaxAttempts {
				j.Status = job.StatusPending
				j.ScheduledFor = now
			} else {
				j.Status = job.StatusFailed
				j.CompletedAt = &now
			}
			j.ErrorMessage = "reclaimed: stale running job"
			n++
		}
	}
	return n, nil
}

type mockContentRepo struct {
	items        map[string]*content.ContentItem
	getErr       error
	published    []string
	updatedBody  map[string]string
	markErr      error
}

func newMockContentRepo(items ...*content.ContentItem) *mockContentRepo {
	m := &mockContentRepo{
		items:       make(map[string]*content.ContentItem),
		updatedBody: make(map[string]string),
	}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *mockContentRepo) Get(ctx context.Context, id string) (*content.ContentItem, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	it, ok := m.items[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return it, nil
}

func (m *mockContentRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.published = append(m.published, id)
	if it, ok := m.items[id]; ok {
		it.Status = content.StatusPublished
		it.PublishedAt = &publishedAt
	}
	return nil
}

func (m *mockContentRepo) UpdateBody(ctx context.Context, id string, body string) error {
	m.updatedBody[id] = body
	if it, ok := m.items[id]; ok {
		it.Body = body
	}
	return nil
}

type mockPublisher struct {
	calls int
	err   error
}

func (m *mockPublisher) Publish(ctx context.Context, item *content.ContentItem) error {
	m.calls++
	return m.err
}

type mockSender struct {
	kinds      []notify.Kind
	recipients []string
	err        error
}

func (m *mockSender) Send(ctx context.Context, kind notify.Kind, recipient string, data json.RawMessage) error {
	m.kinds = append(m.kinds, kind)
	m.recipients = append(m.recipients, recipient)
	return m.err
}

type mockGenerator struct {
	out string
	err error
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return m.out, m.err
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2}, nil
}

type mockVectorStore struct {
	stored  []Chunk
	deleted []string
	err     error
}

func (m *mockVectorStore) StoreChunk(ctx context.Context, chunk Chunk) error {
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, chunk)
	return nil
}

func (m *mockVectorStore) DeleteChunks(ctx context.Context, contentItemID string) error {
	m.deleted = append(m.deleted, contentItemID)
	return nil
}

type mockBilling struct {
	events []json.RawMessage
	err    error
}

func (m *mockBilling) Reconcile(ctx context.Context, event json.RawMessage) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

type mockEnqueuer struct {
	requests []job.EnqueueRequest
	err      error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, req job.EnqueueRequest) (*job.Job, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.requests = append(m.requests, req)
	return &job.Job{ID: "new", Type: req.Type}, nil
}

func newTestHandlers(contents *mockContentRepo) (*Handlers, *mockPublisher, *mockSender, *mockEnqueuer) {
	pub := &mockPublisher{}
	sender := &mockSender{}
	enq := &mockEnqueuer{}
	h := NewHandlers(contents, pub, sender, &mockGenerator{out: "generated"}, &mockEmbedder{},
		&mockVectorStore{}, &mockBilling{}, enq, &fakeClock{t: time.Now()})
	return h, pub, sender, enq
}
