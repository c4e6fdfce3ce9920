package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devashis/prajna/internal/model"
	"github.com/devashis/prajna/internal/vectorstore"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

type fakeStore struct {
	results map[string][]model.RetrievedDocument
	errs    map[string]error
	calls   []vectorstore.Filter
	ks      []int
}

func (f *fakeStore) SimilaritySearch(ctx context.Context, embedding []float32, k int, filter vectorstore.Filter) ([]model.RetrievedDocument, error) {
	f.calls = append(f.calls, filter)
	f.ks = append(f.ks, k)
	if err := f.errs[filter.Library]; err != nil {
		return nil, err
	}
	return f.results[filter.Library], nil
}

func doc(library, content string) model.RetrievedDocument {
	return model.RetrievedDocument{
		PageContent: content,
		Metadata:    model.DocMetadata{Library: library, Type: model.MediaText},
	}
}

func TestRetrieve_CombinesLibraries(t *testing.T) {
	store := &fakeStore{results: map[string][]model.RetrievedDocument{
		"whispers":  {doc("whispers", "a"), doc("whispers", "b")},
		"treasures": {doc("treasures", "c")},
	}}
	r := New(store, &fakeEmbedder{vec: []float32{0.1, 0.2}})

	docs, err := r.Retrieve(context.Background(), "question", []model.Allocation{
		{Name: "whispers", Sources: 2},
		{Name: "treasures", Sources: 1},
	}, []string{"text"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "whispers", docs[0].Metadata.Library)
	require.Equal(t, "treasures", docs[2].Metadata.Library)
	require.Equal(t, []int{2, 1}, store.ks)
}

func TestRetrieve_FailedLibraryDegradesToEmpty(t *testing.T) {
	store := &fakeStore{
		results: map[string][]model.RetrievedDocument{"treasures": {doc("treasures", "c")}},
		errs:    map[string]error{"whispers": errors.New("index down")},
	}
	r := New(store, &fakeEmbedder{vec: []float32{0.1}})

	docs, err := r.Retrieve(context.Background(), "question", []model.Allocation{
		{Name: "whispers", Sources: 3},
		{Name: "treasures", Sources: 1},
	}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "treasures", docs[0].Metadata.Library)
}

func TestRetrieve_SkipsZeroQuota(t *testing.T) {
	store := &fakeStore{results: map[string][]model.RetrievedDocument{}}
	r := New(store, &fakeEmbedder{vec: []float32{0.1}})

	_, err := r.Retrieve(context.Background(), "question", []model.Allocation{
		{Name: "whispers", Sources: 0},
		{Name: "treasures", Sources: 2},
	}, nil)
	require.NoError(t, err)
	require.Len(t, store.calls, 1)
	require.Equal(t, "treasures", store.calls[0].Library)
}

func TestRetrieve_EmbeddingFailureAborts(t *testing.T) {
	store := &fakeStore{}
	r := New(store, &fakeEmbedder{err: errors.New("embed down")})

	_, err := r.Retrieve(context.Background(), "question", []model.Allocation{{Name: "whispers", Sources: 2}}, nil)
	require.Error(t, err)
	require.Empty(t, store.calls)
}
