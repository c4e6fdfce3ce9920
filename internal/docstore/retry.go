package docstore

import (
	"context"

	"github.com/devashis/prajna/internal/pkg/errors"
	"github.com/devashis/prajna/internal/pkg/retry"
)

type retryStore struct {
	next   Store
	policy retry.Policy
}

// WithRetry decorates a store so transient-unavailability errors are retried
// with bounded exponential backoff before the caller sees them. Non-transient
// errors pass through on the first attempt.
func WithRetry(next Store) Store {
	return withRetryPolicy(next, retry.DefaultPolicy(errors.IsUnavailable))
}

func withRetryPolicy(next Store, policy retry.Policy) Store {
	return &retryStore{next: next, policy: policy}
}

func (r *retryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var doc *Document
	err := retry.Do(ctx, "docstore.get", r.policy, func(ctx context.Context) error {
		var opErr error
		doc, opErr = r.next.Get(ctx, collection, id)
		return opErr
	})
	return doc, err
}

func (r *retryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return retry.Do(ctx, "docstore.set", r.policy, func(ctx context.Context) error {
		return r.next.Set(ctx, collection, id, data)
	})
}

func (r *retryStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	var id string
	err := retry.Do(ctx, "docstore.add", r.policy, func(ctx context.Context) error {
		var opErr error
		id, opErr = r.next.Add(ctx, collection, data)
		return opErr
	})
	return id, err
}

func (r *retryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return retry.Do(ctx, "docstore.update", r.policy, func(ctx context.Context) error {
		return r.next.Update(ctx, collection, id, fields)
	})
}

func (r *retryStore) Delete(ctx context.Context, collection, id string) error {
	return retry.Do(ctx, "docstore.delete", r.policy, func(ctx context.Context) error {
		return r.next.Delete(ctx, collection, id)
	})
}

func (r *retryStore) BatchCommit(ctx context.Context, ops []Op) error {
	return retry.Do(ctx, "docstore.batch_commit", r.policy, func(ctx context.Context) error {
		return r.next.BatchCommit(ctx, ops)
	})
}
