package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/ninetyfive/pkg/api/handlers"
	"github.com/cbodonnell/ninetyfive/pkg/api/middleware"
	authproviders "github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	Repository   repositories.Repository
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.AuthProvider, opts.Repository),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter serves read access to rooms and games and the caller's profile.
// Rooms and games change only through the game server.
func NewRouter(authProvider authproviders.AuthProvider, repository repositories.Repository) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", handlers.HandleHealth()).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.NewAuthMiddleware(authProvider, repository))
	authed.HandleFunc("/users/me", handlers.HandleGetProfile()).Methods(http.MethodGet)
	authed.HandleFunc("/users/me", handlers.HandleUpdateProfile(repository)).Methods(http.MethodPut)
	authed.HandleFunc("/rooms/{roomID}", handlers.HandleGetRoom(repository)).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{roomID}/game", handlers.HandleGetGame(repository)).Methods(http.MethodGet)
	return middleware.CORS(r)
}

// Start serves until ctx is cancelled.
func (s *APIServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.server.Shutdown(context.Background()); err != nil {
			log.Error("Failed to shut down API server: %v", err)
		}
	}()

	var err error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %v", err)
	}
	log.Info("API server closed")
	return nil
}
