package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database and applies the migrations
// found in the migrations directory, if any.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrations string) (Repository, error) {
	pool, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if migrations != "" {
		if err := migratePostgres(ctx, pool, migrations); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return pool, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool, migrations string) error {
	files, err := migrationFiles(migrations)
	if err != nil {
		return err
	}
	for _, path := range files {
		migration, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", path, err)
		}
		if _, err := pool.Exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", path, err)
		}
	}
	return nil
}

// migrationFiles lists the .sql files in dir in name order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) GetDocument(ctx context.Context, collection, id string, out interface{}) error {
	q := `
	SELECT data FROM documents WHERE collection = $1 AND id = $2;
	`
	var data []byte
	if err := r.pool.QueryRow(ctx, q, collection, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(collection, id)
		}
		return fmt.Errorf("failed to scan document: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %v", collection, id, err)
	}
	return nil
}

func (r *PostgresRepository) SetDocument(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v", collection, id, err)
	}
	q := `
	INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, $4)
	ON CONFLICT (collection, id) DO UPDATE SET data = $3::jsonb, updated_at = $4;
	`
	if _, err := r.pool.Exec(ctx, q, collection, id, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to upsert document: %v", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %v", err)
	}
	q := `
	UPDATE documents SET data = data || $3::jsonb, updated_at = $4 WHERE collection = $1 AND id = $2;
	`
	tag, err := r.pool.Exec(ctx, q, collection, id, string(patch), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update document: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(collection, id)
	}
	return nil
}

func (r *PostgresRepository) DeleteDocument(ctx context.Context, collection, id string) error {
	q := `
	DELETE FROM documents WHERE collection = $1 AND id = $2;
	`
	if _, err := r.pool.Exec(ctx, q, collection, id); err != nil {
		return fmt.Errorf("failed to delete document: %v", err)
	}
	return nil
}
