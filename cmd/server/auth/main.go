package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cbodonnell/ninetyfive/pkg/auth"
	authhandlers "github.com/cbodonnell/ninetyfive/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/config"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/version"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	migrations := flag.String("migrations", "./migrations", "Directory of database migrations")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting auth server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		panic(err.Error())
	}
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	opts := repositories.OpenOptions{
		MigrationsDir: *migrations,
		TTL:           cfg.Game.RoomLifetime,
	}
	if cfg.AuthProvider == "firebase" {
		// profiles of firebase users may live in firestore
		opts.FirebaseApp, err = auth.NewFirebaseApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			panic(fmt.Sprintf("Failed to create Firebase app: %v", err))
		}
	}
	repository, err := repositories.Open(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}
	defer repository.Close(context.Background())

	var handler authhandlers.AuthHandler
	switch cfg.AuthProvider {
	case "firebase":
		if cfg.FirebaseAPIKey == "" {
			panic(fmt.Sprintf("%sFIREBASE_API_KEY environment variable must be set", config.EnvPrefix))
		}
		handler = authhandlers.NewFirebaseAuthHandler(authhandlers.NewFirebaseAuthHandlerOptions{
			APIKey:     cfg.FirebaseAPIKey,
			Repository: repository,
		})
	case "jwt":
		provider, err := authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to create jwt auth provider: %v", err))
		}
		handler = authhandlers.NewJWTAuthHandler(authhandlers.NewJWTAuthHandlerOptions{
			Repository: repository,
			Provider:   provider,
		})
	}

	authServerOpts := auth.NewAuthServerOptions{
		Port:    *port,
		Handler: handler,
	}
	if certFile, keyFile, ok := config.TLS("auth"); ok {
		authServerOpts.TLS = &auth.TLSConfig{
			CertFile: certFile,
			KeyFile:  keyFile,
		}
	}
	server := auth.NewAuthServer(authServerOpts)
	if err := server.Start(ctx); err != nil {
		log.Error("Failed to run auth server: %v", err)
	}
}
