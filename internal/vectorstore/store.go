// Package vectorstore exposes the external vector-similarity capability
// consumed by the retriever.
package vectorstore

import (
	"context"

	"github.com/devashis/prajna/internal/model"
)

// Filter narrows a similarity search to one library and a set of media types.
// An empty media type list means no media filtering.
type Filter struct {
	Library    string
	MediaTypes []string
}

type Store interface {
	// SimilaritySearch returns the k nearest chunks to the query embedding,
	// best match first, with cosine similarity scores attached.
	SimilaritySearch(ctx context.Context, embedding []float32, k int, filter Filter) ([]model.RetrievedDocument, error)
}
