package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	upsertDocumentSQL = `INSERT INTO documents (user_id, collection, id, data, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	deleteDocumentSQL = `DELETE FROM documents WHERE user_id = ? AND collection = ? AND id = ?`
	getDocumentSQL    = `SELECT data, updated_at FROM documents WHERE user_id = ? AND collection = ? AND id = ?`
	listDocumentsSQL  = `SELECT id, data, updated_at FROM documents WHERE user_id = ? AND collection = ? ORDER BY id`
)

// SQLiteStore keeps documents in a single sqlite table.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(logger *zap.Logger, dbPath string) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("sqlite store ready",
		zap.String("op", "store.NewSQLiteStore"),
		zap.String("path", dbPath),
	)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get returns the document stored under key or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (Document, error) {
	if err := key.Validate(); err != nil {
		return Document{}, err
	}

	var data, updated string
	err := s.db.QueryRowContext(ctx, getDocumentSQL, key.UserID, key.Collection, key.ID).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", key.ID, err)
	}
	return scanDocument(key, data, updated)
}

// List returns the documents of a user's collection ordered by ID.
func (s *SQLiteStore) List(ctx context.Context, userID, collection string) ([]Document, error) {
	if err := (Key{UserID: userID, Collection: collection, ID: "*"}).Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, listDocumentsSQL, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id, data, updated string
		if err := rows.Scan(&id, &data, &updated); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := scanDocument(Key{UserID: userID, Collection: collection, ID: id}, data, updated)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Put upserts doc and returns the stored copy.
func (s *SQLiteStore) Put(ctx context.Context, doc Document) (Document, error) {
	doc, err := prepareDocument(doc, now())
	if err != nil {
		return Document{}, err
	}

	if _, err := s.db.ExecContext(ctx, upsertDocumentSQL,
		doc.UserID, doc.Collection, doc.ID, string(doc.Data), doc.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
		return Document{}, fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	return doc, nil
}

// Delete removes the document under key or returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, deleteDocumentSQL, key.UserID, key.Collection, key.ID)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Commit applies the batch inside one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, batch *Batch) (err error) {
	mutations, err := batch.prepare(now())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("failed to roll back batch",
					zap.String("op", "store.SQLiteStore.Commit"),
					zap.Error(rbErr),
				)
			}
		}
	}()

	for i, m := range mutations {
		doc := m.Document
		switch m.Op {
		case OpSet:
			_, err = tx.ExecContext(ctx, upsertDocumentSQL,
				doc.UserID, doc.Collection, doc.ID, string(doc.Data), doc.UpdatedAt.Format(time.RFC3339Nano))
		case OpDelete:
			_, err = tx.ExecContext(ctx, deleteDocumentSQL, doc.UserID, doc.Collection, doc.ID)
		}
		if err != nil {
			return fmt.Errorf("mutation %d (%s) on %s: %w", i, m.Op, doc.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.logger.Debug("batch committed",
		zap.String("op", "store.SQLiteStore.Commit"),
		zap.Int("mutations", len(mutations)),
	)
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanDocument(key Key, data, updated string) (Document, error) {
	updatedAt, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Document{}, fmt.Errorf("parse updated_at for %s: %w", key.ID, err)
	}
	return Document{Key: key, Data: []byte(data), UpdatedAt: updatedAt}, nil
}
