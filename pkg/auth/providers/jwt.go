package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var _ AuthProvider = &JWTAuthProvider{}

const (
	TokenTypeID      = "id"
	TokenTypeRefresh = "refresh"
)

const (
	DefaultIDTokenTTL      = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

type jwtClaims struct {
	Name      string `json:"name,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTAuthProvider issues and verifies HS256 tokens signed with a shared
// secret. It backs the self-hosted auth server.
type JWTAuthProvider struct {
	secret     []byte
	issuer     string
	idTTL      time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type NewJWTAuthProviderOptions struct {
	Secret          string
	Issuer          string
	IDTokenTTL      time.Duration
	RefreshTokenTTL time.Duration
	Now             func() time.Time
}

func NewJWTAuthProvider(opts NewJWTAuthProviderOptions) (*JWTAuthProvider, error) {
	if opts.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	p := &JWTAuthProvider{
		secret:     []byte(opts.Secret),
		issuer:     opts.Issuer,
		idTTL:      opts.IDTokenTTL,
		refreshTTL: opts.RefreshTokenTTL,
		now:        opts.Now,
	}
	if p.issuer == "" {
		p.issuer = "ninetyfive"
	}
	if p.idTTL == 0 {
		p.idTTL = DefaultIDTokenTTL
	}
	if p.refreshTTL == 0 {
		p.refreshTTL = DefaultRefreshTokenTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// IDTokenTTL is the lifetime of issued ID tokens.
func (p *JWTAuthProvider) IDTokenTTL() time.Duration {
	return p.idTTL
}

// IssueTokens returns a new ID token and refresh token for uid.
func (p *JWTAuthProvider) IssueTokens(uid, name string) (idToken string, refreshToken string, err error) {
	idToken, err = p.sign(uid, name, TokenTypeID, p.idTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = p.sign(uid, name, TokenTypeRefresh, p.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return idToken, refreshToken, nil
}

func (p *JWTAuthProvider) sign(uid, name, tokenType string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := jwtClaims{
		Name:      name,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return signed, nil
}

// VerifyToken verifies an ID token.
func (p *JWTAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	return p.verify(idToken, TokenTypeID)
}

// VerifyRefreshToken verifies a refresh token.
func (p *JWTAuthProvider) VerifyRefreshToken(refreshToken string) (*TokenClaims, error) {
	return p.verify(refreshToken, TokenTypeRefresh)
}

func (p *JWTAuthProvider) verify(tokenString, tokenType string) (*TokenClaims, error) {
	claims := &jwtClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("error verifying token: %v", err)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("error verifying token: expected %s token, got %q", tokenType, claims.TokenType)
	}
	if claims.Subject == "" {
		return nil, errors.New("error verifying token: missing subject")
	}
	return &TokenClaims{
		UID:  claims.Subject,
		Name: claims.Name,
	}, nil
}
