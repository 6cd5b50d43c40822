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
	"github.com/cbodonnell/ninetyfive/pkg/auth"
	authproviders "github.com/cbodonnell/ninetyfive/pkg/auth/providers"
	"github.com/cbodonnell/ninetyfive/pkg/config"
	"github.com/cbodonnell/ninetyfive/pkg/game"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/network"
	"github.com/cbodonnell/ninetyfive/pkg/queue"
	"github.com/cbodonnell/ninetyfive/pkg/repositories"
	"github.com/cbodonnell/ninetyfive/pkg/rooms"
	"github.com/cbodonnell/ninetyfive/pkg/state"
	"github.com/cbodonnell/ninetyfive/pkg/version"
	"github.com/cbodonnell/ninetyfive/pkg/workers"
	"golang.org/x/sync/errgroup"
)

func main() {
	tcpPort := flag.Int("tcp-port", 8888, "TCP port to listen on, 0 disables")
	wsPort := flag.Int("ws-port", 8889, "WebSocket port to listen on, 0 disables")
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

	log.Info("Starting game server version %s", version.Get())
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

	clientManager := network.NewClientManager()
	clientMessageQueue := queue.NewInMemoryQueue(10000)
	connectionEventQueue := queue.NewInMemoryQueue(1000)

	networkManagerOpts := network.NewNetworkManagerOptions{
		AuthProvider:  authProvider,
		ClientManager: clientManager,
		MessageQueue:  clientMessageQueue,
		TCPPort:       *tcpPort,
		WSPort:        *wsPort,
	}
	if certFile, keyFile, ok := config.TLS("game"); ok {
		networkManagerOpts.WSServerTLS = &network.TLSConfig{
			CertFile: certFile,
			KeyFile:  keyFile,
		}
	}
	networkManager := network.NewNetworkManager(networkManagerOpts)

	broadcastMessageChan := make(chan workers.BroadcastMessage, workers.BroadcastMessageChannelSize)
	broadcaster := workers.NewQueuedBroadcaster(broadcastMessageChan)
	broadcastMessageWorker := workers.NewBroadcastMessageWorker(workers.NewBroadcastMessageWorkerOptions{
		NetworkManager:       networkManager,
		BroadcastMessageChan: broadcastMessageChan,
	})

	connectionEventWorker := workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ClientEventChan:      clientManager.GetClientEventChan(),
		Repository:           repository,
		ConnectionEventQueue: connectionEventQueue,
	})

	// the directory tears rooms down, the game manager tells their members
	var gameManager *game.GameManager
	directory := state.NewDirectory(state.NewDirectoryOptions{
		Repository: repository,
		Lifetime:   cfg.Game.RoomLifetime,
		OnTeardown: func(roomID string) {
			gameManager.RoomClosed(roomID)
		},
	})
	defer func() {
		if err := directory.Close(context.Background()); err != nil {
			log.Error("Failed to close sessions: %v", err)
		}
	}()

	roomManager := rooms.NewManager(rooms.NewManagerOptions{
		Repository: repository,
		Directory:  directory,
		Lifetime:   cfg.Game.RoomLifetime,
		MaxPlayers: cfg.Game.MaxPlayers,
	})

	engine := game.NewEngine(game.NewEngineOptions{
		AlertThresholds: cfg.Game.AlertThresholds,
		LoseThreshold:   cfg.Game.LoseThreshold,
		HandSize:        cfg.Game.HandSize,
	})

	saveGameStateWorker := workers.NewSaveGameStateWorker(workers.NewSaveGameStateWorkerOptions{
		Directory: directory,
		Interval:  workers.DefaultSaveInterval,
	})

	gameManager = game.NewGameManager(game.NewGameManagerOptions{
		Engine:               engine,
		Directory:            directory,
		Rooms:                roomManager,
		Broadcaster:          broadcaster,
		ClientMessageQueue:   clientMessageQueue,
		ConnectionEventQueue: connectionEventQueue,
	})

	g, gctx := errgroup.WithContext(ctx)
	networkManager.Start(gctx)
	g.Go(func() error {
		broadcastMessageWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		connectionEventWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		saveGameStateWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("Starting game manager")
		return gameManager.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Game server stopped: %v", err)
	}
	log.Info("Game server stopped")
}
