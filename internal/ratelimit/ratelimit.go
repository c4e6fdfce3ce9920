// Package ratelimit implements a per-key request quota over the document
// store, so limits survive process restarts and are shared across replicas.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/devashis/prajna/internal/docstore"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
)

const counterCollection = "ratelimits"

type Limiter struct {
	store  docstore.Store
	window time.Duration
	max    int
	now    func() time.Time
}

// New builds a limiter allowing max requests per key per window. max <= 0
// disables limiting.
func New(store docstore.Store, window time.Duration, max int) *Limiter {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Limiter{store: store, window: window, max: max, now: time.Now}
}

// Check counts a request against the key's current window and reports whether
// it is allowed. The limiter fails open: if the backing store is unreachable,
// the request is allowed rather than blocking all traffic on a storage
// outage.
func (l *Limiter) Check(ctx context.Context, key string) bool {
	if l.max <= 0 {
		return true
	}
	windowID := l.now().UnixMilli() / l.window.Milliseconds()
	docID := fmt.Sprintf("%s:%d", key, windowID)

	doc, err := l.store.Get(ctx, counterCollection, docID)
	if err != nil && !errors.Is(err, appErr.ErrNotFound) {
		logutil.GetLogger(ctx).Warn("rate limit store unreachable, failing open",
			zap.String("key", key), zap.Error(err))
		return true
	}

	count := 0
	if doc != nil {
		if v, ok := doc.Data["count"].(float64); ok {
			count = int(v)
		}
	}
	if count >= l.max {
		return false
	}
	if err := l.store.Set(ctx, counterCollection, docID, map[string]interface{}{
		"count": count + 1,
	}); err != nil {
		logutil.GetLogger(ctx).Warn("rate limit counter write failed",
			zap.String("key", key), zap.Error(err))
	}
	return true
}
