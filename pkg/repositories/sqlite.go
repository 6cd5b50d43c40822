package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	files, err := migrationFiles(migrations)
	if err != nil {
		db.Close()
		return nil, err
	}

	for _, migrationPath := range files {
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) GetDocument(ctx context.Context, collection, id string, out interface{}) error {
	q := `
	SELECT data FROM documents WHERE collection = ? AND id = ?;
	`
	var data []byte
	if err := r.db.QueryRowContext(ctx, q, collection, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(collection, id)
		}
		return fmt.Errorf("failed to scan document: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %v", collection, id, err)
	}
	return nil
}

func (r *SQLiteRepository) SetDocument(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v", collection, id, err)
	}
	q := `
	INSERT OR REPLACE INTO documents (collection, id, data, updated_at)
	VALUES (?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, collection, id, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to upsert document: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var data []byte
	q := `
	SELECT data FROM documents WHERE collection = ? AND id = ?;
	`
	if err := tx.QueryRowContext(ctx, q, collection, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(collection, id)
		}
		return fmt.Errorf("failed to scan document: %v", err)
	}

	merged, err := mergeFields(data, fields)
	if err != nil {
		return err
	}

	q = `
	UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?;
	`
	if _, err := tx.ExecContext(ctx, q, string(merged), time.Now().UnixMilli(), collection, id); err != nil {
		return fmt.Errorf("failed to update document: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDocument(ctx context.Context, collection, id string) error {
	q := `
	DELETE FROM documents WHERE collection = ? AND id = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, collection, id); err != nil {
		return fmt.Errorf("failed to delete document: %v", err)
	}
	return nil
}
