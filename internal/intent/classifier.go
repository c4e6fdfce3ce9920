// Package intent decides whether a query expresses geographic intent by
// contrastive similarity against curated exemplar embeddings, instead of
// brittle keyword matching that breaks on multilingual queries.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/devashis/prajna/internal/ai"
	"github.com/devashis/prajna/internal/assetstore"
	"github.com/devashis/prajna/internal/model"
)

// Empirically tuned on a multilingual seed set. The contrastive threshold of
// zero means the best positive match must merely not be beaten by the best
// negative match.
const (
	DefaultPositiveThreshold    float32 = 0.37
	DefaultContrastiveThreshold float32 = 0.0
)

// assetKeyFormat locates the per-site precomputed embedding artifact.
const assetKeyFormat = "site-config/intent/%s.json"

type Config struct {
	PositiveThreshold    float32
	ContrastiveThreshold float32
}

// Classifier holds the process-wide per-site embedding cache. The embedding
// set is written once by Initialize and read-only afterwards, so Classify
// needs no locking on the hot path as long as initialization completes before
// requests are served.
type Classifier struct {
	embedder    ai.IEmbedder
	assets      assetstore.Store
	positive    float32
	contrastive float32
	queryCache  *expirable.LRU[string, []float32]

	mu          sync.Mutex
	siteID      string
	set         *model.IntentEmbeddingSet // nil means disabled
	initialized bool
}

func NewClassifier(embedder ai.IEmbedder, assets assetstore.Store, cfg Config) *Classifier {
	positive := cfg.PositiveThreshold
	if positive == 0 {
		positive = DefaultPositiveThreshold
	}
	return &Classifier{
		embedder:    embedder,
		assets:      assets,
		positive:    positive,
		contrastive: cfg.ContrastiveThreshold,
		queryCache:  expirable.NewLRU[string, []float32](1000, nil, 2*time.Hour),
	}
}

// Initialize loads the embedding set for siteID. Calling it again with the
// same siteID is a no-op; a different siteID replaces the cached set. A
// missing asset puts the classifier in a disabled state where every Classify
// call returns false - that is a configuration choice, not an error.
func (c *Classifier) Initialize(ctx context.Context, siteID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized && c.siteID == siteID {
		return nil
	}

	key := fmt.Sprintf(assetKeyFormat, siteID)
	reader, err := c.assets.Open(ctx, key)
	if err != nil {
		if errors.Is(err, assetstore.ErrNotExist) {
			logutil.GetLogger(ctx).Info("no intent embeddings for site, classifier disabled",
				zap.String("site_id", siteID), zap.String("key", key))
			c.siteID = siteID
			c.set = nil
			c.initialized = true
			return nil
		}
		return fmt.Errorf("load intent embeddings: %w", err)
	}
	defer reader.Close()

	var set model.IntentEmbeddingSet
	if err := json.NewDecoder(reader).Decode(&set); err != nil {
		return fmt.Errorf("decode intent embeddings: %w", err)
	}
	if len(set.PositiveEmbeddings) == 0 || len(set.NegativeEmbeddings) == 0 {
		return fmt.Errorf("intent embeddings for site %s are empty", siteID)
	}
	c.siteID = siteID
	c.set = &set
	c.initialized = true
	logutil.GetLogger(ctx).Info("intent embeddings loaded",
		zap.String("site_id", siteID),
		zap.Int("positive", len(set.PositiveEmbeddings)),
		zap.Int("negative", len(set.NegativeEmbeddings)),
	)
	return nil
}

// Classify reports whether the query expresses geographic intent. This is a
// soft gate: any embedding failure resolves to false rather than propagating,
// and a disabled classifier always answers false.
func (c *Classifier) Classify(ctx context.Context, query string) bool {
	set := c.currentSet()
	if set == nil {
		return false
	}

	embedding, ok := c.queryCache.Get(query)
	if !ok {
		var err error
		embedding, err = c.embedder.Embed(ctx, query, "RETRIEVAL_QUERY")
		if err != nil {
			logutil.GetLogger(ctx).Warn("intent embedding failed, classifying as non-location",
				zap.Error(err))
			return false
		}
		c.queryCache.Add(query, embedding)
	}

	posSim := maxSimilarity(embedding, set.PositiveEmbeddings)
	negSim := maxSimilarity(embedding, set.NegativeEmbeddings)
	isLocation := posSim >= c.positive && (posSim-negSim) >= c.contrastive
	logutil.GetLogger(ctx).Debug("location intent scored",
		zap.Float32("pos_sim", posSim),
		zap.Float32("neg_sim", negSim),
		zap.Bool("is_location", isLocation),
	)
	return isLocation
}

func (c *Classifier) currentSet() *model.IntentEmbeddingSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

func maxSimilarity(query []float32, exemplars [][]float32) float32 {
	best := float32(math.Inf(-1))
	for _, exemplar := range exemplars {
		if sim := cosineSimilarity(query, exemplar); sim > best {
			best = sim
		}
	}
	return best
}

// cosineSimilarity requires equal-length vectors; a mismatch means the query
// embedding model disagrees with the precomputed asset, which is a deployment
// bug, not input to tolerate.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("cosine similarity dimension mismatch: %d != %d", len(a), len(b)))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
