// Package retriever fans a query out across allocated libraries and collects
// the combined context for prompt assembly.
package retriever

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/devashis/prajna/internal/ai"
	"github.com/devashis/prajna/internal/model"
	"github.com/devashis/prajna/internal/vectorstore"
)

// searchTimeout bounds one library's similarity search so a slow index
// degrades that library instead of hanging the request.
const searchTimeout = 10 * time.Second

type Retriever struct {
	store    vectorstore.Store
	embedder ai.IEmbedder
}

func New(store vectorstore.Store, embedder ai.IEmbedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve embeds the query once and runs one similarity search per allocated
// library, using the library's quota as k. A failing library contributes an
// empty result set; only a failed query embedding aborts retrieval outright,
// since without it no library can be searched.
func (r *Retriever) Retrieve(ctx context.Context, query string, allocations []model.Allocation, mediaTypes []string) ([]model.RetrievedDocument, error) {
	embedding, err := r.embedder.Embed(ctx, query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}

	var combined []model.RetrievedDocument
	for _, alloc := range allocations {
		if alloc.Sources <= 0 {
			continue
		}
		docs, err := r.searchLibrary(ctx, embedding, alloc, mediaTypes)
		if err != nil {
			logutil.GetLogger(ctx).Warn("library retrieval failed, continuing without it",
				zap.String("library", alloc.Name),
				zap.Int("sources", alloc.Sources),
				zap.Error(err),
			)
			continue
		}
		combined = append(combined, docs...)
	}
	return combined, nil
}

func (r *Retriever) searchLibrary(ctx context.Context, embedding []float32, alloc model.Allocation, mediaTypes []string) ([]model.RetrievedDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()
	return r.store.SimilaritySearch(ctx, embedding, alloc.Sources, vectorstore.Filter{
		Library:    alloc.Name,
		MediaTypes: mediaTypes,
	})
}
