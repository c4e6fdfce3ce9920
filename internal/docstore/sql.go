package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/devashis/prajna/internal/pkg/dbutil"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
)

type sqlStore struct {
	db *sqlx.DB
}

// NewSQLStore returns a Store over the documents table.
func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	where := map[string]interface{}{
		"collection": collection,
		"id":         id,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"id", "data", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)

	var row struct {
		ID    string `db:"id"`
		Data  []byte `db:"data"`
		Ctime int64  `db:"ctime"`
		Mtime int64  `db:"mtime"`
	}
	if err := s.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, wrapUnavailable(err)
	}
	doc := &Document{ID: row.ID, Ctime: row.Ctime, Mtime: row.Mtime}
	if err := json.Unmarshal(row.Data, &doc.Data); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *sqlStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, ctime, mtime)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, mtime = EXCLUDED.mtime`,
		collection, id, blob, now)
	return wrapUnavailable(err)
}

func (s *sqlStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	blob, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = data || $1::jsonb, mtime = $2
		WHERE collection = $3 AND id = $4`,
		blob, time.Now().UnixMilli(), collection, id)
	if err != nil {
		return wrapUnavailable(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, collection, id string) error {
	where := map[string]interface{}{
		"collection": collection,
		"id":         id,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return wrapUnavailable(err)
}

func (s *sqlStore) BatchCommit(ctx context.Context, ops []Op) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapUnavailable(err)
	}
	defer tx.Rollback()
	now := time.Now().UnixMilli()
	for _, op := range ops {
		switch op.Kind {
		case "set":
			blob, err := json.Marshal(op.Data)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO documents (collection, id, data, ctime, mtime)
				VALUES ($1, $2, $3, $4, $4)
				ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, mtime = EXCLUDED.mtime`,
				op.Collection, op.ID, blob, now); err != nil {
				return wrapUnavailable(err)
			}
		case "delete":
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = $1 AND id = $2`,
				op.Collection, op.ID); err != nil {
				return wrapUnavailable(err)
			}
		}
	}
	return wrapUnavailable(tx.Commit())
}

// wrapUnavailable tags transient postgres failures with ErrUnavailable so the
// retry decorator can tell them apart from permanent errors.
func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if dbutil.IsUnavailable(err) {
		return errors.Join(appErr.ErrUnavailable, err)
	}
	return err
}
