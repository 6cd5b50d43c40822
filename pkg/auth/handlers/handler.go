package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
)

// AuthHandler is an interface for handling authentication requests
type AuthHandler interface {
	HandleRegister() func(w http.ResponseWriter, r *http.Request)
	HandleLogin() func(w http.ResponseWriter, r *http.Request)
	HandleRefresh() func(w http.ResponseWriter, r *http.Request)
	HandleDelete() func(w http.ResponseWriter, r *http.Request)
}

// TokenResponseBody is returned by register, login and refresh.
type TokenResponseBody struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email,omitempty"`
}

// createProfile writes the users document the game server reads player
// names from.
func createProfile(ctx context.Context, repo repositories.Repository, uid, username, avatar string) error {
	return repo.SetDocument(ctx, repositories.CollectionUsers, uid, &models.User{
		ID:       uid,
		Username: username,
		Avatar:   avatar,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("error encoding response: %v", err)
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}
