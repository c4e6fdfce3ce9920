package vectorstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/devashis/prajna/internal/model"
)

type pgStore struct {
	db *sqlx.DB
}

// NewPgStore returns a Store backed by a postgres chunks table with a
// pgvector embedding column.
func NewPgStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}

type chunkRow struct {
	Library   string  `db:"library"`
	MediaType string  `db:"media_type"`
	Title     string  `db:"title"`
	Source    string  `db:"source"`
	URL       string  `db:"url"`
	StartTime float64 `db:"start_time"`
	FileHash  string  `db:"file_hash"`
	Filename  string  `db:"filename"`
	Content   string  `db:"content"`
	Distance  float64 `db:"distance"`
}

func (s *pgStore) SimilaritySearch(ctx context.Context, embedding []float32, k int, filter Filter) ([]model.RetrievedDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	query := `SELECT library, media_type, title, source, url, start_time, file_hash, filename, content,
		embedding <=> $1 AS distance
		FROM chunks WHERE library = $2`
	args := []interface{}{pgvector.NewVector(embedding), filter.Library}
	if len(filter.MediaTypes) > 0 {
		query += ` AND media_type = ANY($3)`
		args = append(args, pq.Array(filter.MediaTypes))
	}
	query += fmt.Sprintf(` ORDER BY distance LIMIT $%d`, len(args)+1)
	args = append(args, k)

	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	docs := make([]model.RetrievedDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, model.RetrievedDocument{
			PageContent: row.Content,
			// <=> is cosine distance, similarity = 1 - distance.
			Score: float32(1 - row.Distance),
			Metadata: model.DocMetadata{
				Library:   row.Library,
				Type:      row.MediaType,
				Title:     row.Title,
				Source:    row.Source,
				URL:       row.URL,
				StartTime: row.StartTime,
				FileHash:  row.FileHash,
				Filename:  row.Filename,
			},
		})
	}
	return docs, nil
}
