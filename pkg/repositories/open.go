package repositories

import (
	"context"
	"fmt"
	"net/url"
	"time"

	firebase "firebase.google.com/go"
)

type OpenOptions struct {
	// MigrationsDir holds a sqlite/ and a postgres/ directory of migrations.
	MigrationsDir string
	// TTL expires room and game documents in redis.
	TTL time.Duration
	// FirebaseApp is required for firestore:// URLs.
	FirebaseApp *firebase.App
}

// Open returns the repository for a database URL. The scheme selects the
// store: memory, sqlite, postgres, postgresql, redis, rediss or firestore.
func Open(ctx context.Context, connStr string, opts OpenOptions) (Repository, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	migrations := opts.MigrationsDir
	if migrations == "" {
		migrations = "./migrations"
	}

	switch u.Scheme {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		path := u.Host + u.Path
		return NewSQLiteRepository(ctx, path, migrations+"/sqlite")
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, u.String(), migrations+"/postgres")
	case "redis", "rediss":
		return NewRedisRepository(ctx, u.String(), opts.TTL)
	case "firestore":
		if opts.FirebaseApp == nil {
			return nil, fmt.Errorf("firestore requires a firebase app")
		}
		return NewFirestoreRepository(ctx, opts.FirebaseApp)
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
