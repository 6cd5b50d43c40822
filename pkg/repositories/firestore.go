package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreRepository stores documents in Cloud Firestore. Values go through
// their JSON encoding so the same struct tags apply to every store.
type FirestoreRepository struct {
	client *firestore.Client
}

func NewFirestoreRepository(ctx context.Context, app *firebase.App) (Repository, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %v", err)
	}
	return &FirestoreRepository{
		client: client,
	}, nil
}

func (r *FirestoreRepository) Close(ctx context.Context) error {
	return r.client.Close()
}

func (r *FirestoreRepository) GetDocument(ctx context.Context, collection, id string, out interface{}) error {
	snap, err := r.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return notFound(collection, id)
		}
		return fmt.Errorf("failed to get %s/%s: %v", collection, id, err)
	}
	data, err := json.Marshal(snap.Data())
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v", collection, id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %v", collection, id, err)
	}
	return nil
}

func (r *FirestoreRepository) SetDocument(ctx context.Context, collection, id string, doc interface{}) error {
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v", collection, id, err)
	}
	if _, err := r.client.Collection(collection).Doc(id).Set(ctx, fields); err != nil {
		return fmt.Errorf("failed to set %s/%s: %v", collection, id, err)
	}
	return nil
}

func (r *FirestoreRepository) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	encoded, err := toFields(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v", collection, id, err)
	}
	updates := make([]firestore.Update, 0, len(encoded))
	for k, v := range encoded {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if _, err := r.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return notFound(collection, id)
		}
		return fmt.Errorf("failed to update %s/%s: %v", collection, id, err)
	}
	return nil
}

func (r *FirestoreRepository) DeleteDocument(ctx context.Context, collection, id string) error {
	if _, err := r.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %v", collection, id, err)
	}
	return nil
}

// toFields converts v to the map form Firestore stores, following v's JSON
// encoding.
func toFields(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
