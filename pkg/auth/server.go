package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/ninetyfive/pkg/auth/handlers"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/gorilla/mux"
)

type AuthServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAuthServerOptions struct {
	Port    int
	Handler handlers.AuthHandler
	TLS     *TLSConfig
}

// NewAuthServer creates a new http.Server for handling authentication requests
func NewAuthServer(opts NewAuthServerOptions) *AuthServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Handler),
	}
	return &AuthServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter routes the auth endpoints to h.
func NewRouter(h handlers.AuthHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/register", h.HandleRegister()).Methods(http.MethodPost)
	r.HandleFunc("/login", h.HandleLogin()).Methods(http.MethodPost)
	r.HandleFunc("/refresh", h.HandleRefresh()).Methods(http.MethodPost)
	r.HandleFunc("/delete", h.HandleDelete()).Methods(http.MethodPost)
	return r
}

// Start serves until ctx is cancelled.
func (s *AuthServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.server.Shutdown(context.Background()); err != nil {
			log.Error("Failed to shut down auth server: %v", err)
		}
	}()

	var err error
	if s.tls != nil {
		log.Info("Auth server listening on %s with TLS", s.server.Addr)
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		log.Info("Auth server listening on %s", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("auth server error: %v", err)
	}
	log.Info("Auth server closed")
	return nil
}
