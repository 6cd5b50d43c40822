package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Firebase app shared by Firestore and token
// verification. Application default credentials are used when
// credentialsPath is empty.
func NewFirebaseApp(ctx context.Context, projectID, credentialsPath string) (*firebase.App, error) {
	cfg := &firebase.Config{
		ProjectID: projectID,
	}
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %v", err)
	}
	return app, nil
}
