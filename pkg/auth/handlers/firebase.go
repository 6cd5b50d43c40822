package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
)

var _ AuthHandler = &FirebaseAuthHandler{}

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// FirebaseAuthHandler implements AuthHandler using Firebase Auth REST API
type FirebaseAuthHandler struct {
	apiKey             string
	repository         repositories.Repository
	client             *http.Client
	identityToolkitURL string
	secureTokenURL     string
}

type NewFirebaseAuthHandlerOptions struct {
	APIKey string
	// Repository receives the profile of every registered user.
	Repository         repositories.Repository
	Client             *http.Client
	IdentityToolkitURL string
	SecureTokenURL     string
}

// NewFirebaseAuthHandler creates a new instance of FirebaseAuthHandler
func NewFirebaseAuthHandler(opts NewFirebaseAuthHandlerOptions) *FirebaseAuthHandler {
	h := &FirebaseAuthHandler{
		apiKey:             opts.APIKey,
		repository:         opts.Repository,
		client:             opts.Client,
		identityToolkitURL: opts.IdentityToolkitURL,
		secureTokenURL:     opts.SecureTokenURL,
	}
	if h.client == nil {
		h.client = http.DefaultClient
	}
	if h.identityToolkitURL == "" {
		h.identityToolkitURL = DefaultIdentityToolkitURL
	}
	if h.secureTokenURL == "" {
		h.secureTokenURL = DefaultSecureTokenURL
	}
	return h
}

// ErrorResponseBody is the response body for an error
// https://firebase.google.com/docs/reference/rest/auth#section-error-format
type ErrorResponseBody struct {
	Error struct {
		Code    int                  `json:"code"`
		Message ErrorResponseMessage `json:"message"`
	} `json:"error"`
}

type ErrorResponseMessage string

const (
	ErrorEmailExists             ErrorResponseMessage = "EMAIL_EXISTS"
	ErrorOperationNotAllowed     ErrorResponseMessage = "OPERATION_NOT_ALLOWED"
	ErrorTooManyAttempts         ErrorResponseMessage = "TOO_MANY_ATTEMPTS_TRY_LATER"
	ErrorInvalidEmail            ErrorResponseMessage = "INVALID_EMAIL"
	ErrorInvalidLoginCredentials ErrorResponseMessage = "INVALID_LOGIN_CREDENTIALS"
	ErrorTokenExpired            ErrorResponseMessage = "TOKEN_EXPIRED"
	ErrorInvalidIDToken          ErrorResponseMessage = "INVALID_ID_TOKEN"
	ErrorUserNotFound            ErrorResponseMessage = "USER_NOT_FOUND"
	ErrorWeakPassword            ErrorResponseMessage = "WEAK_PASSWORD : Password should be at least 6 characters"
)

// clientErrors maps the Firebase errors a user can fix to a message.
var clientErrors = map[ErrorResponseMessage]string{
	ErrorEmailExists:             "Email already exists",
	ErrorOperationNotAllowed:     "Operation not allowed",
	ErrorTooManyAttempts:         "Too many attempts, try again later",
	ErrorInvalidEmail:            "Invalid email",
	ErrorInvalidLoginCredentials: "Invalid credentials",
	ErrorTokenExpired:            "Token expired",
	ErrorInvalidIDToken:          "Invalid ID token",
	ErrorUserNotFound:            "User not found",
	ErrorWeakPassword:            "Password should be at least 6 characters",
}

// credentialsRequestBody is the request body for sign up and sign in
type credentialsRequestBody struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// RefreshResponseBody is the response body for the refresh endpoint
type RefreshResponseBody struct {
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

// call posts body to url and decodes the reply into out. A Firebase error
// reply is returned as the second value.
func (s *FirebaseAuthHandler) call(ctx context.Context, url string, body, out interface{}) (*ErrorResponseBody, error) {
	buf := bytes.NewBuffer(nil)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, fmt.Errorf("error encoding request body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+s.apiKey, buf)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorResponse := &ErrorResponseBody{}
		if err := json.NewDecoder(resp.Body).Decode(errorResponse); err != nil {
			return nil, fmt.Errorf("failed to decode error response with status %s: %v", resp.Status, err)
		}
		return errorResponse, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("error decoding response: %v", err)
		}
	}
	return nil, nil
}

// fail writes the reply for a failed call.
func fail(w http.ResponseWriter, action string, errorResponse *ErrorResponseBody, err error) {
	if err != nil {
		log.Error("%s failed: %v", action, err)
		http.Error(w, "Failed to "+action, http.StatusInternalServerError)
		return
	}
	if msg, ok := clientErrors[errorResponse.Error.Message]; ok {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	log.Error("unhandled error response message: %s", errorResponse.Error.Message)
	http.Error(w, "Failed to "+action, http.StatusInternalServerError)
}

// HandleRegister creates the account and the player's profile.
// https://firebase.google.com/docs/reference/rest/auth#section-create-email-password
func (s *FirebaseAuthHandler) HandleRegister() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.FormValue("email")
		password := r.FormValue("password")
		username := r.FormValue("username")

		if email == "" {
			http.Error(w, "Missing email", http.StatusBadRequest)
			return
		}
		if password == "" {
			http.Error(w, "Missing password", http.StatusBadRequest)
			return
		}
		if username == "" {
			http.Error(w, "Missing username", http.StatusBadRequest)
			return
		}

		responsePayload := &TokenResponseBody{}
		errorResponse, err := s.call(r.Context(), s.identityToolkitURL+"/accounts:signUp", &credentialsRequestBody{
			Email:             email,
			Password:          password,
			ReturnSecureToken: true,
		}, responsePayload)
		if err != nil || errorResponse != nil {
			fail(w, "register", errorResponse, err)
			return
		}

		if err := createProfile(r.Context(), s.repository, responsePayload.LocalID, username, r.FormValue("avatar")); err != nil {
			log.Error("failed to create profile for %s: %v", responsePayload.LocalID, err)
			http.Error(w, "Failed to create profile", http.StatusInternalServerError)
			return
		}

		writeJSON(w, responsePayload)
	}
}

// HandleLogin handles requests to the login endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-sign-in-email-password
func (s *FirebaseAuthHandler) HandleLogin() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.FormValue("email")
		password := r.FormValue("password")

		if email == "" {
			http.Error(w, "Missing email", http.StatusBadRequest)
			return
		}
		if password == "" {
			http.Error(w, "Missing password", http.StatusBadRequest)
			return
		}

		responsePayload := &TokenResponseBody{}
		errorResponse, err := s.call(r.Context(), s.identityToolkitURL+"/accounts:signInWithPassword", &credentialsRequestBody{
			Email:             email,
			Password:          password,
			ReturnSecureToken: true,
		}, responsePayload)
		if err != nil || errorResponse != nil {
			fail(w, "login", errorResponse, err)
			return
		}

		writeJSON(w, responsePayload)
	}
}

// HandleRefresh handles requests to the refresh endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-refresh-token
func (s *FirebaseAuthHandler) HandleRefresh() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := r.FormValue("refreshToken")
		if refreshToken == "" {
			http.Error(w, "Missing refresh token", http.StatusBadRequest)
			return
		}

		refreshed := &RefreshResponseBody{}
		errorResponse, err := s.call(r.Context(), s.secureTokenURL+"/token", map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}, refreshed)
		if err != nil || errorResponse != nil {
			fail(w, "refresh", errorResponse, err)
			return
		}

		writeJSON(w, &TokenResponseBody{
			IDToken:      refreshed.IDToken,
			RefreshToken: refreshed.RefreshToken,
			ExpiresIn:    refreshed.ExpiresIn,
			LocalID:      refreshed.UserID,
		})
	}
}

// HandleDelete handles requests to the delete endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-delete-account
func (s *FirebaseAuthHandler) HandleDelete() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		idToken := r.FormValue("idToken")
		if idToken == "" {
			http.Error(w, "Missing ID token", http.StatusBadRequest)
			return
		}

		errorResponse, err := s.call(r.Context(), s.identityToolkitURL+"/accounts:delete", map[string]string{
			"idToken": idToken,
		}, nil)
		if err != nil || errorResponse != nil {
			fail(w, "delete", errorResponse, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
