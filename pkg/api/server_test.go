package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/game"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router http.Handler
	repo   *repositories.MemoryRepository
	tokens map[string]string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	provider, err := providers.NewJWTAuthProvider(providers.NewJWTAuthProviderOptions{Secret: "s3cret"})
	require.NoError(t, err)
	repo := repositories.NewMemoryRepository()
	f := &apiFixture{
		router: NewRouter(provider, repo),
		repo:   repo,
		tokens: make(map[string]string),
	}
	for _, uid := range []string{"a", "b"} {
		idToken, _, err := provider.IssueTokens(uid, uid+"-name")
		require.NoError(t, err)
		f.tokens[uid] = idToken
	}
	return f
}

func (f *apiFixture) do(method, path, uid string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[uid])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(http.MethodOptions, "/users/me", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProfile(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/users/me", "a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := &models.User{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(user))
	assert.Equal(t, &models.User{ID: "a", Username: "a-name"}, user, "profiles are created from the token on first use")

	rec = f.do(http.MethodPut, "/users/me", "a", url.Values{"username": {"bad$name"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPut, "/users/me", "a", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/users/me", "a", url.Values{"username": {"Alice"}, "avatar": {"fox"}})
	require.Equal(t, http.StatusOK, rec.Code)
	saved := &models.User{}
	require.NoError(t, f.repo.GetDocument(context.Background(), repositories.CollectionUsers, "a", saved))
	assert.Equal(t, "Alice", saved.Username)
	assert.Equal(t, "fox", saved.Avatar)
}

func TestRoomsAndGames(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	rec := f.do(http.MethodGet, "/rooms/ABCDE", "a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(http.MethodGet, "/rooms/ABCDE/game", "a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, f.repo.SetDocument(ctx, repositories.CollectionRooms, "ABCDE", &models.Room{
		ID:     "ABCDE",
		HostID: "a",
		Status: models.RoomStatusPlaying,
	}))
	g := types.NewGameState("ABCDE")
	g.AddPlayer(types.NewPlayerState("a", "alice", ""))
	g.AddPlayer(types.NewPlayerState("b", "bob", ""))
	g.Deck = types.NewDeck()
	g.Players["a"].Hand = g.Deck.Draw(3)
	g.Players["b"].Hand = g.Deck.Draw(3)
	g.PlayedPile = g.Deck.Draw(1)
	g.Total = 2
	require.NoError(t, f.repo.SetDocument(ctx, repositories.CollectionGames, "ABCDE", g))

	rec = f.do(http.MethodGet, "/rooms/abcde", "a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	room := &models.Room{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(room))
	assert.Equal(t, models.RoomStatusPlaying, room.Status)

	rec = f.do(http.MethodGet, "/rooms/ABCDE/game", "b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := &game.GameSummary{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(summary))
	assert.Equal(t, g.Players["b"].Hand, summary.Hand)
	assert.Equal(t, "a", summary.CurrentPlayer)
	assert.Equal(t, 45, summary.DeckCount)
	assert.Equal(t, 2, summary.Total)
	require.Len(t, summary.Players, 2)
	assert.Equal(t, 3, summary.Players[0].CardCount)
	assert.NotContains(t, rec.Body.String(), `"deck"`)
}
