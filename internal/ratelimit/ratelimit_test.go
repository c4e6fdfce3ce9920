package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devashis/prajna/internal/docstore"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
)

type memStore struct {
	docstore.Store
	docs map[string]map[string]interface{}
	err  error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]map[string]interface{}{}}
}

func (m *memStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.docs[collection+"/"+id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &docstore.Document{ID: id, Data: data}, nil
}

func (m *memStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if m.err != nil {
		return m.err
	}
	// JSON round-trips turn numbers into float64; mimic that.
	normalized := make(map[string]interface{}, len(data))
	for k, v := range data {
		if n, ok := v.(int); ok {
			normalized[k] = float64(n)
		} else {
			normalized[k] = v
		}
	}
	m.docs[collection+"/"+id] = normalized
	return nil
}

func TestCheck_AllowsUpToMax(t *testing.T) {
	l := New(newMemStore(), time.Hour, 3)
	for i := 0; i < 3; i++ {
		require.True(t, l.Check(context.Background(), "1.2.3.4"))
	}
	require.False(t, l.Check(context.Background(), "1.2.3.4"))
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l := New(newMemStore(), time.Hour, 1)
	require.True(t, l.Check(context.Background(), "a"))
	require.False(t, l.Check(context.Background(), "a"))
	require.True(t, l.Check(context.Background(), "b"))
}

func TestCheck_NewWindowResetsCount(t *testing.T) {
	l := New(newMemStore(), time.Hour, 1)
	base := time.Now()
	l.now = func() time.Time { return base }
	require.True(t, l.Check(context.Background(), "a"))
	require.False(t, l.Check(context.Background(), "a"))

	l.now = func() time.Time { return base.Add(time.Hour) }
	require.True(t, l.Check(context.Background(), "a"))
}

func TestCheck_FailsOpenWhenStoreUnreachable(t *testing.T) {
	store := newMemStore()
	store.err = errors.Join(appErr.ErrUnavailable, errors.New("connection refused"))
	l := New(store, time.Hour, 1)
	require.True(t, l.Check(context.Background(), "a"))
	require.True(t, l.Check(context.Background(), "a"))
}

func TestCheck_DisabledWhenMaxZero(t *testing.T) {
	l := New(newMemStore(), time.Hour, 0)
	for i := 0; i < 10; i++ {
		require.True(t, l.Check(context.Background(), "a"))
	}
}
