package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/client"
	"github.com/cbodonnell/ninetyfive/pkg/config"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/messages"
	"github.com/cbodonnell/ninetyfive/pkg/repositories/models"
	"github.com/cbodonnell/ninetyfive/pkg/version"
)

const usage = `commands:
  create [max-players]      create a room
  join <room>               join a room
  leave <room>              leave a room
  kick <room> <player>      remove a player (host only)
  start <room>              start a game
  game <room>               fetch the game state
  play <room> <card>        play a card, e.g. play ABCDE 10H
  autoroute <room>          start the autoroute
  ace <room> <1|14>         choose the ace value
  dir <room> <inc|dec>      choose the direction
  guess <room> <hi|lo>      guess higher or lower
  restart <room>            restart the autoroute
  ping                      sync time with the server
  quit`

func main() {
	addr := flag.String("addr", client.DefaultServerAddr, "game server host:port or ws:// URL")
	authURL := flag.String("auth-url", "http://localhost:8080", "auth server URL")
	user := flag.String("user", "", "username or email to log in with")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	log.SetDefaultLogger(log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel))
	log.Info("Starting client version %s", version.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		panic(err.Error())
	}
	token := config.Getenv("ID_TOKEN")
	if *user != "" {
		tokens, err := client.Login(ctx, *authURL, *user, config.Getenv("PASSWORD"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		token = tokens.IDToken
	}
	if token == "" {
		fmt.Fprintf(os.Stderr, "set %sID_TOKEN or pass -user with %sPASSWORD\n", config.EnvPrefix, config.EnvPrefix)
		os.Exit(1)
	}

	c := client.NewClient(client.NewClientOptions{
		Addr:  *addr,
		Token: token,
	})
	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()
	fmt.Printf("connected as %s\n%s\n", c.UserID(), usage)

	go printServerMessages(ctx, c)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.Done():
			fmt.Fprintf(os.Stderr, "disconnected: %v\n", err)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" || fields[0] == "exit" {
				return
			}
			if err := run(ctx, c, fields[0], fields[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		}
	}
}

// printServerMessages polls the server message queue like a game loop.
func printServerMessages(ctx context.Context, c *client.Client) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			items, err := c.ServerMessageQueue().ReadAllMessages()
			if err != nil {
				log.Error("Failed to read server messages: %v", err)
				continue
			}
			for _, item := range items {
				msg, ok := item.(*messages.Message)
				if !ok {
					continue
				}
				fmt.Printf("< %s %s\n", msg.Type, compact(msg.Payload))
			}
		}
	}
}

func compact(payload json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return string(payload)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(payload)
	}
	return string(b)
}

func run(ctx context.Context, c *client.Client, command string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s)\n%s", command, n, usage)
		}
		return nil
	}
	room := func() string {
		return strings.ToUpper(args[0])
	}

	switch command {
	case "create":
		settings := models.RoomSettings{}
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid max players %q", args[0])
			}
			settings.MaxPlayers = n
		}
		return c.CreateRoom(ctx, settings)
	case "ping":
		if err := c.SyncTime(ctx); err != nil {
			return err
		}
		_, ping := c.ServerTime()
		fmt.Printf("ping %.1fms\n", ping)
		return nil
	case "help":
		fmt.Println(usage)
		return nil
	}

	if err := need(1); err != nil {
		return err
	}
	switch command {
	case "join":
		return c.JoinRoom(ctx, room())
	case "leave":
		return c.LeaveRoom(ctx, room())
	case "kick":
		if err := need(2); err != nil {
			return err
		}
		return c.RemovePlayer(ctx, room(), args[1])
	case "start":
		return c.StartGame(ctx, room())
	case "game":
		return c.JoinGame(ctx, room())
	case "play":
		if err := need(2); err != nil {
			return err
		}
		card, err := types.ParseCard(args[1])
		if err != nil {
			return err
		}
		return c.PlayCard(ctx, room(), card)
	case "autoroute":
		return c.StartAutoroute(ctx, room())
	case "ace":
		if err := need(2); err != nil {
			return err
		}
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid ace value %q", args[1])
		}
		return c.ChooseAceValue(ctx, room(), value)
	case "dir":
		if err := need(2); err != nil {
			return err
		}
		direction := types.DirectionIncreasing
		if strings.HasPrefix(args[1], "dec") {
			direction = types.DirectionDecreasing
		}
		return c.ChooseDirection(ctx, room(), direction)
	case "guess":
		if err := need(2); err != nil {
			return err
		}
		call := types.CallHigher
		if strings.HasPrefix(args[1], "lo") {
			call = types.CallLower
		}
		return c.Guess(ctx, room(), call)
	case "restart":
		return c.RestartAutoroute(ctx, room())
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}
