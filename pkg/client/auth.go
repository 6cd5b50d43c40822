package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	authhandlers "github.com/cbodonnell/ninetyfive/pkg/auth/handlers"
)

// Login exchanges credentials for tokens at the auth server. user is sent
// both as the username and the email so either auth backend accepts it.
func Login(ctx context.Context, authURL, user, password string) (*authhandlers.TokenResponseBody, error) {
	form := url.Values{
		"username": {user},
		"email":    {user},
		"password": {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(authURL, "/")+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	tokens := &authhandlers.TokenResponseBody{}
	if err := json.NewDecoder(resp.Body).Decode(tokens); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %v", err)
	}
	return tokens, nil
}
