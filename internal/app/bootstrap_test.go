package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"postpilot/apps/backend/internal/app"
	"postpilot/apps/backend/internal/config"
)

type retryableStore struct {
	callCount int
	failUntil int
}

func (m *retryableStore) EnsureSchema(ctx context.Context) error {
	m.callCount++
	if m.callCount <= m.failUntil {
		return errors.New("schema error")
	}
	return nil
}

func TestEnsureSchemaWithRetry_Success(t *testing.T) {
	store := &retryableStore{}
	err := app.EnsureSchemaWithRetry(context.Background(), store, 1, 1*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 1, store.callCount)
}

func TestEnsureSchemaWithRetry_Retries(t *testing.T) {
	store := &retryableStore{failUntil: 2}
	err := app.EnsureSchemaWithRetry(context.Background(), store, 5, 1*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, store.callCount)
}

func TestEnsureSchemaWithRetry_Fail(t *testing.T) {
	store := &retryableStore{failUntil: 10}
	err := app.EnsureSchemaWithRetry(context.Background(), store, 3, 1*time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, store.callCount)
}

func TestBootstrap_ConfigurationError(t *testing.T) {
	cfg := &config.Config{
		DBHost: "invalid-host",
	}
	deps, err := app.Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, deps)
}
