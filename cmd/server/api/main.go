package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	firebase "firebase.google.com/go"
	"github.com/cbodonnell/ninetyfive/pkg/api"
	"github.com/cbodonnell/ninetyfive/pkg/auth"
	authproviders "github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/config"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/version"
)

func main() {
	port := flag.Int("port", 9090, "port to listen on")
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

	log.Info("Starting api server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		panic(err.Error())
	}
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var firebaseApp *firebase.App
	if cfg.AuthProvider == "firebase" || strings.HasPrefix(cfg.DatabaseURL, "firestore:") {
		firebaseApp, err = auth.NewFirebaseApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			panic(fmt.Sprintf("Failed to create Firebase app: %v", err))
		}
	}

	var authProvider authproviders.AuthProvider
	switch cfg.AuthProvider {
	case "firebase":
		authProvider, err = authproviders.NewFirebaseAuthProvider(ctx, firebaseApp)
	case "jwt":
		authProvider, err = authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
		})
	}
	if err != nil {
		panic(fmt.Sprintf("Failed to create %s auth provider: %v", cfg.AuthProvider, err))
	}

	repository, err := repositories.Open(ctx, cfg.DatabaseURL, repositories.OpenOptions{
		MigrationsDir: *migrations,
		TTL:           cfg.Game.RoomLifetime,
		FirebaseApp:   firebaseApp,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}
	defer repository.Close(context.Background())

	apiServerOpts := api.NewAPIServerOptions{
		Port:         *port,
		AuthProvider: authProvider,
		Repository:   repository,
	}
	if certFile, keyFile, ok := config.TLS("api"); ok {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: certFile,
			KeyFile:  keyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	if err := server.Start(ctx); err != nil {
		log.Error("Failed to run api server: %v", err)
	}
}
