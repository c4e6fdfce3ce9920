package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/devashis/prajna/internal/pkg/errors"
	"github.com/devashis/prajna/internal/pkg/retry"
)

type flakyStore struct {
	Store
	failures int
	calls    int
	err      error
}

func (f *flakyStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Document{ID: id, Data: map[string]interface{}{"ok": true}}, nil
}

func (f *flakyStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func withFastRetry(inner Store) Store {
	return withRetryPolicy(inner, retry.Policy{
		Attempts:     3,
		InitialDelay: time.Millisecond,
		Retryable:    appErr.IsUnavailable,
	})
}

func transient() error {
	return errors.Join(appErr.ErrUnavailable, errors.New("connection refused"))
}

func TestWithRetry_RecoversFromTransientFailures(t *testing.T) {
	inner := &flakyStore{failures: 2, err: transient()}
	store := withFastRetry(inner)

	doc, err := store.Get(context.Background(), "answers", "id1")
	require.NoError(t, err)
	require.Equal(t, "id1", doc.ID)
	require.Equal(t, 3, inner.calls)
}

func TestWithRetry_GivesUpAfterBudget(t *testing.T) {
	inner := &flakyStore{failures: 10, err: transient()}
	store := withFastRetry(inner)

	err := store.Set(context.Background(), "answers", "id1", nil)
	require.ErrorIs(t, err, appErr.ErrUnavailable)
	require.Equal(t, 3, inner.calls)
}

func TestWithRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyStore{failures: 10, err: appErr.ErrNotFound}
	store := withFastRetry(inner)

	_, err := store.Get(context.Background(), "answers", "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.Equal(t, 1, inner.calls)
}
