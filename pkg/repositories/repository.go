package repositories

import (
	"context"
)

// Collections used by the server.
const (
	CollectionUsers = "users"
	CollectionRooms = "rooms"
	CollectionGames = "games"
)

// CollectionCredentials holds password hashes for the self-hosted auth
// server, keyed by username.
const CollectionCredentials = "credentials"

// Repository is a durable document store. Documents are JSON-shaped values
// addressed by collection and id.
type Repository interface {
	Close(ctx context.Context) error
	// GetDocument decodes the document into out. It returns *ErrNotFound when
	// the document does not exist.
	GetDocument(ctx context.Context, collection, id string, out interface{}) error
	// SetDocument creates or replaces the document.
	SetDocument(ctx context.Context, collection, id string, doc interface{}) error
	// UpdateDocument merges top-level fields into an existing document.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// DeleteDocument removes the document. Deleting a missing document is not an error.
	DeleteDocument(ctx context.Context, collection, id string) error
}
