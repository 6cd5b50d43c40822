package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/cbodonnell/ninetyfive/pkg/api/middleware"
	"github.com/cbodonnell/ninetyfive/pkg/game"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/cbodonnell/ninetyfive/pkg/version"
	"github.com/gorilla/mux"
)

const MaxUsernameLength = 16

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"status":  "ok",
			"version": version.Get(),
		})
	}
}

func HandleGetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			log.Error("failed to get user from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}
		writeJSON(w, user)
	}
}

// HandleUpdateProfile changes the caller's username and avatar. Rooms keep
// the name a player had when they joined.
func HandleUpdateProfile(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			log.Error("failed to get user from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}

		fields := map[string]interface{}{}
		if username := strings.TrimSpace(r.FormValue("username")); username != "" {
			if len(username) > MaxUsernameLength {
				http.Error(w, "Username must be between 1 and 16 characters", http.StatusBadRequest)
				return
			}
			if !usernameRegex.MatchString(username) {
				http.Error(w, "Username cannot contain special characters", http.StatusBadRequest)
				return
			}
			fields["username"] = username
			user.Username = username
		}
		if avatar := r.FormValue("avatar"); avatar != "" {
			fields["avatar"] = avatar
			user.Avatar = avatar
		}
		if len(fields) == 0 {
			http.Error(w, "Nothing to update", http.StatusBadRequest)
			return
		}

		if err := repository.UpdateDocument(r.Context(), repositories.CollectionUsers, user.ID, fields); err != nil {
			log.Error("failed to update user %s: %v", user.ID, err)
			http.Error(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}
		writeJSON(w, user)
	}
}

func HandleGetRoom(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := strings.ToUpper(mux.Vars(r)["roomID"])
		room := &models.Room{}
		if err := repository.GetDocument(r.Context(), repositories.CollectionRooms, roomID, room); err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Room not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get room %s: %v", roomID, err)
			http.Error(w, "Failed to get room", http.StatusInternalServerError)
			return
		}
		writeJSON(w, room)
	}
}

// HandleGetGame returns the game summary for the room, with the caller's hand
// when they are playing.
func HandleGetGame(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			log.Error("failed to get user from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}

		roomID := strings.ToUpper(mux.Vars(r)["roomID"])
		g := &types.GameState{}
		if err := repository.GetDocument(r.Context(), repositories.CollectionGames, roomID, g); err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Game not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get game %s: %v", roomID, err)
			http.Error(w, "Failed to get game", http.StatusInternalServerError)
			return
		}
		writeJSON(w, game.Summarize(g, user.ID))
	}
}
