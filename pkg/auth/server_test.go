package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cbodonnell/ninetyfive/pkg/auth/handlers"
	"github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func post(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) handlers.TokenResponseBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body handlers.TokenResponseBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestJWTAuthFlow(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryRepository()
	provider, err := providers.NewJWTAuthProvider(providers.NewJWTAuthProviderOptions{Secret: "s3cret"})
	require.NoError(t, err)
	router := NewRouter(handlers.NewJWTAuthHandler(handlers.NewJWTAuthHandlerOptions{
		Repository: repo,
		Provider:   provider,
		BcryptCost: bcrypt.MinCost,
	}))

	rec := post(t, router, "/register", url.Values{"username": {"Alice"}, "password": {"pw"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	registered := decodeTokens(t, post(t, router, "/register", url.Values{
		"username": {"Alice"},
		"password": {"hunter22"},
		"avatar":   {"fox"},
	}))
	assert.NotEmpty(t, registered.LocalID)
	assert.Equal(t, "3600", registered.ExpiresIn)

	user := &models.User{}
	require.NoError(t, repo.GetDocument(ctx, repositories.CollectionUsers, registered.LocalID, user))
	assert.Equal(t, &models.User{ID: registered.LocalID, Username: "Alice", Avatar: "fox"}, user)

	claims, err := provider.VerifyToken(ctx, registered.IDToken)
	require.NoError(t, err)
	assert.Equal(t, registered.LocalID, claims.UID)

	rec = post(t, router, "/register", url.Values{"username": {"alice "}, "password": {"another1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "usernames are case insensitive")

	rec = post(t, router, "/login", url.Values{"username": {"alice"}, "password": {"wrong-pass"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post(t, router, "/login", url.Values{"username": {"bob"}, "password": {"hunter22"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	loggedIn := decodeTokens(t, post(t, router, "/login", url.Values{"username": {"alice"}, "password": {"hunter22"}}))
	assert.Equal(t, registered.LocalID, loggedIn.LocalID)

	rec = post(t, router, "/refresh", url.Values{"refreshToken": {loggedIn.IDToken}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "id tokens cannot refresh")
	refreshed := decodeTokens(t, post(t, router, "/refresh", url.Values{"refreshToken": {loggedIn.RefreshToken}}))
	assert.Equal(t, registered.LocalID, refreshed.LocalID)

	rec = post(t, router, "/delete", url.Values{"idToken": {refreshed.IDToken}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repositories.IsNotFound(repo.GetDocument(ctx, repositories.CollectionUsers, registered.LocalID, user)))
	assert.Zero(t, repo.Len(repositories.CollectionCredentials))

	rec = post(t, router, "/login", url.Values{"username": {"alice"}, "password": {"hunter22"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterMethods(t *testing.T) {
	provider, err := providers.NewJWTAuthProvider(providers.NewJWTAuthProviderOptions{Secret: "s3cret"})
	require.NoError(t, err)
	router := NewRouter(handlers.NewJWTAuthHandler(handlers.NewJWTAuthHandlerOptions{
		Repository: repositories.NewMemoryRepository(),
		Provider:   provider,
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// fakeFirebase answers the identity toolkit calls the handler makes.
func fakeFirebase(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		body := map[string]interface{}{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/v1/accounts:signUp":
			if body["email"] == "taken@example.com" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"EMAIL_EXISTS"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"idToken":"id","refreshToken":"refresh","expiresIn":"3600","localId":"fb-uid"}`))
		case "/v1/token":
			_, _ = w.Write([]byte(`{"id_token":"id2","refresh_token":"refresh2","expires_in":"3600","user_id":"fb-uid"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"SOMETHING_ELSE"}}`))
		}
	}))
}

func TestFirebaseAuthHandler(t *testing.T) {
	ctx := context.Background()
	srv := fakeFirebase(t)
	defer srv.Close()

	repo := repositories.NewMemoryRepository()
	router := NewRouter(handlers.NewFirebaseAuthHandler(handlers.NewFirebaseAuthHandlerOptions{
		APIKey:             "test-key",
		Repository:         repo,
		Client:             srv.Client(),
		IdentityToolkitURL: srv.URL + "/v1",
		SecureTokenURL:     srv.URL + "/v1",
	}))

	rec := post(t, router, "/register", url.Values{"email": {"a@example.com"}, "password": {"hunter22"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "username is required")

	tokens := decodeTokens(t, post(t, router, "/register", url.Values{
		"email":    {"a@example.com"},
		"password": {"hunter22"},
		"username": {"alice"},
	}))
	assert.Equal(t, "fb-uid", tokens.LocalID)
	user := &models.User{}
	require.NoError(t, repo.GetDocument(ctx, repositories.CollectionUsers, "fb-uid", user))
	assert.Equal(t, "alice", user.Username)

	rec = post(t, router, "/register", url.Values{
		"email":    {"taken@example.com"},
		"password": {"hunter22"},
		"username": {"bob"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already exists")

	refreshed := decodeTokens(t, post(t, router, "/refresh", url.Values{"refreshToken": {"refresh"}}))
	assert.Equal(t, "id2", refreshed.IDToken)
	assert.Equal(t, "fb-uid", refreshed.LocalID)

	rec = post(t, router, "/delete", url.Values{"idToken": {"id"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "unknown firebase errors are not shown to clients")
}
