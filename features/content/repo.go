package content

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("content item not found")

type Repository interface {
	Get(ctx context.Context, id string) (*ContentItem, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	UpdateBody(ctx context.Context, id string, body string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*ContentItem, error) {
	c := &ContentItem{}
	var publishedAt sql.NullTime
	query := `SELECT id, client_id, title, body, status, published_at, created_at, updated_at FROM content_items WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ClientID, &c.Title, &c.Body, &c.Status, &publishedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		c.PublishedAt = &publishedAt.Time
	}
	return c, nil
}

func (r *PostgresRepo) UpdateBody(ctx context.Context, id string, body string) error {
	query := `UPDATE content_items SET body = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, body)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPublished is idempotent: publishing an already-published item keeps the
// original timestamp.
func (r *PostgresRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	query := `UPDATE content_items
		SET status = 'published', published_at = COALESCE(published_at, $2), updated_at = $2
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, publishedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
