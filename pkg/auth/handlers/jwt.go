package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var _ AuthHandler = &JWTAuthHandler{}

const MinPasswordLength = 6

// JWTAuthHandler keeps username and password logins in the repository and
// issues tokens signed by a JWTAuthProvider.
type JWTAuthHandler struct {
	repository repositories.Repository
	provider   *providers.JWTAuthProvider
	cost       int
}

type NewJWTAuthHandlerOptions struct {
	Repository repositories.Repository
	Provider   *providers.JWTAuthProvider
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

func NewJWTAuthHandler(opts NewJWTAuthHandlerOptions) *JWTAuthHandler {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &JWTAuthHandler{
		repository: opts.Repository,
		provider:   opts.Provider,
		cost:       cost,
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (h *JWTAuthHandler) issue(w http.ResponseWriter, uid, username string) {
	idToken, refreshToken, err := h.provider.IssueTokens(uid, username)
	if err != nil {
		log.Error("failed to issue tokens for %s: %v", uid, err)
		http.Error(w, "Failed to issue tokens", http.StatusInternalServerError)
		return
	}
	writeJSON(w, &TokenResponseBody{
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresIn:    fmt.Sprintf("%d", int(h.provider.IDTokenTTL()/time.Second)),
		LocalID:      uid,
	})
}

func (h *JWTAuthHandler) HandleRegister() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")

		if username == "" {
			http.Error(w, "Missing username", http.StatusBadRequest)
			return
		}
		if len(password) < MinPasswordLength {
			http.Error(w, fmt.Sprintf("Password should be at least %d characters", MinPasswordLength), http.StatusBadRequest)
			return
		}

		key := normalizeUsername(username)
		existing := &models.Credentials{}
		err := h.repository.GetDocument(r.Context(), repositories.CollectionCredentials, key, existing)
		if err == nil {
			http.Error(w, "Username already exists", http.StatusBadRequest)
			return
		}
		if !repositories.IsNotFound(err) {
			log.Error("failed to look up credentials for %s: %v", key, err)
			http.Error(w, "Failed to register", http.StatusInternalServerError)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if err != nil {
			log.Error("failed to hash password: %v", err)
			http.Error(w, "Failed to register", http.StatusInternalServerError)
			return
		}

		uid := uuid.New().String()
		if err := h.repository.SetDocument(r.Context(), repositories.CollectionCredentials, key, &models.Credentials{
			Username:     key,
			UserID:       uid,
			PasswordHash: hash,
		}); err != nil {
			log.Error("failed to save credentials for %s: %v", key, err)
			http.Error(w, "Failed to register", http.StatusInternalServerError)
			return
		}
		if err := createProfile(r.Context(), h.repository, uid, username, r.FormValue("avatar")); err != nil {
			log.Error("failed to create profile for %s: %v", uid, err)
			http.Error(w, "Failed to create profile", http.StatusInternalServerError)
			return
		}

		log.Info("Registered user %s", uid)
		h.issue(w, uid, username)
	}
}

func (h *JWTAuthHandler) HandleLogin() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.FormValue("username")
		password := r.FormValue("password")

		if username == "" {
			http.Error(w, "Missing username", http.StatusBadRequest)
			return
		}
		if password == "" {
			http.Error(w, "Missing password", http.StatusBadRequest)
			return
		}

		creds := &models.Credentials{}
		if err := h.repository.GetDocument(r.Context(), repositories.CollectionCredentials, normalizeUsername(username), creds); err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Invalid credentials", http.StatusBadRequest)
				return
			}
			log.Error("failed to look up credentials: %v", err)
			http.Error(w, "Failed to login", http.StatusInternalServerError)
			return
		}
		if err := bcrypt.CompareHashAndPassword(creds.PasswordHash, []byte(password)); err != nil {
			http.Error(w, "Invalid credentials", http.StatusBadRequest)
			return
		}

		h.issue(w, creds.UserID, strings.TrimSpace(username))
	}
}

func (h *JWTAuthHandler) HandleRefresh() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := r.FormValue("refreshToken")
		if refreshToken == "" {
			http.Error(w, "Missing refresh token", http.StatusBadRequest)
			return
		}

		claims, err := h.provider.VerifyRefreshToken(refreshToken)
		if err != nil {
			log.Debug("refresh rejected: %v", err)
			http.Error(w, "Invalid refresh token", http.StatusBadRequest)
			return
		}

		h.issue(w, claims.UID, claims.Name)
	}
}

// HandleDelete removes the login and the profile of the token's owner.
func (h *JWTAuthHandler) HandleDelete() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		idToken := r.FormValue("idToken")
		if idToken == "" {
			http.Error(w, "Missing ID token", http.StatusBadRequest)
			return
		}

		claims, err := h.provider.VerifyToken(r.Context(), idToken)
		if err != nil {
			http.Error(w, "Invalid ID token", http.StatusBadRequest)
			return
		}

		user := &models.User{}
		if err := h.repository.GetDocument(r.Context(), repositories.CollectionUsers, claims.UID, user); err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "User not found", http.StatusBadRequest)
				return
			}
			log.Error("failed to look up user %s: %v", claims.UID, err)
			http.Error(w, "Failed to delete", http.StatusInternalServerError)
			return
		}

		if err := h.repository.DeleteDocument(r.Context(), repositories.CollectionCredentials, normalizeUsername(user.Username)); err != nil {
			log.Error("failed to delete credentials for %s: %v", claims.UID, err)
			http.Error(w, "Failed to delete", http.StatusInternalServerError)
			return
		}
		if err := h.repository.DeleteDocument(r.Context(), repositories.CollectionUsers, claims.UID); err != nil {
			log.Error("failed to delete profile for %s: %v", claims.UID, err)
			http.Error(w, "Failed to delete", http.StatusInternalServerError)
			return
		}

		log.Info("Deleted user %s", claims.UID)
		w.WriteHeader(http.StatusOK)
	}
}
