package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/constants"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the servers read.
const EnvPrefix = "NINETYFIVE_"

const DefaultDatabaseURL = "sqlite://ninetyfive.db"

// LoadDotEnv reads .env files into the environment. Variables that are
// already set win, and missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %v", name, err)
		}
	}
	return nil
}

// Getenv reads NINETYFIVE_<name>.
func Getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// Config is the settings shared by the servers.
type Config struct {
	DatabaseURL string
	// Firebase settings are needed for the firestore store and the firebase
	// auth provider.
	FirebaseProjectID   string
	FirebaseCredentials string
	FirebaseAPIKey      string
	// AuthProvider is "firebase" or "jwt".
	AuthProvider string
	JWTSecret    string
	JWTIssuer    string
	Game         GameConfig
}

// GameConfig is the rules and limits of a game.
type GameConfig struct {
	AlertThresholds []int
	LoseThreshold   int
	HandSize        int
	MaxPlayers      int
	RoomLifetime    time.Duration
}

// DefaultGameConfig returns the standard rules.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		AlertThresholds: append([]int{}, constants.AlertThresholds...),
		LoseThreshold:   constants.LoseThreshold,
		HandSize:        constants.HandSize,
		MaxPlayers:      constants.MaxPlayers,
		RoomLifetime:    constants.RoomLifetime,
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:         Getenv("DATABASE_URL"),
		FirebaseProjectID:   Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentials: Getenv("FIREBASE_CREDENTIALS"),
		FirebaseAPIKey:      Getenv("FIREBASE_API_KEY"),
		AuthProvider:        Getenv("AUTH_PROVIDER"),
		JWTSecret:           Getenv("JWT_SECRET"),
		JWTIssuer:           Getenv("JWT_ISSUER"),
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = DefaultDatabaseURL
	}
	if c.AuthProvider == "" {
		c.AuthProvider = "firebase"
		if c.JWTSecret != "" {
			c.AuthProvider = "jwt"
		}
	}
	switch c.AuthProvider {
	case "firebase":
		if c.FirebaseProjectID == "" {
			return nil, fmt.Errorf("%sFIREBASE_PROJECT_ID must be set for the firebase auth provider", EnvPrefix)
		}
	case "jwt":
		if c.JWTSecret == "" {
			return nil, fmt.Errorf("%sJWT_SECRET must be set for the jwt auth provider", EnvPrefix)
		}
	default:
		return nil, fmt.Errorf("unknown auth provider %q", c.AuthProvider)
	}

	game, err := LoadGameConfig()
	if err != nil {
		return nil, err
	}
	c.Game = game
	return c, nil
}

// LoadGameConfig reads rule overrides from the environment.
func LoadGameConfig() (GameConfig, error) {
	c := DefaultGameConfig()

	if v := Getenv("ALERT_THRESHOLDS"); v != "" {
		thresholds, err := parseInts(v)
		if err != nil {
			return c, fmt.Errorf("failed to parse %sALERT_THRESHOLDS: %v", EnvPrefix, err)
		}
		c.AlertThresholds = thresholds
	}
	for name, dst := range map[string]*int{
		"LOSE_THRESHOLD": &c.LoseThreshold,
		"HAND_SIZE":      &c.HandSize,
		"MAX_PLAYERS":    &c.MaxPlayers,
	} {
		v := Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c, fmt.Errorf("invalid %s%s: %q", EnvPrefix, name, v)
		}
		*dst = n
	}
	if v := Getenv("ROOM_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("failed to parse %sROOM_LIFETIME: %v", EnvPrefix, err)
		}
		c.RoomLifetime = d
	}
	if c.MaxPlayers < constants.MinPlayers {
		return c, fmt.Errorf("max players must be at least %d", constants.MinPlayers)
	}
	return c, nil
}

// TLS returns the certificate and key files for a server, read from
// NINETYFIVE_<server>_TLS_CERT_FILE and NINETYFIVE_<server>_TLS_KEY_FILE.
// ok is false unless both are set.
func TLS(server string) (certFile, keyFile string, ok bool) {
	server = strings.ToUpper(server)
	certFile = Getenv(server + "_TLS_CERT_FILE")
	keyFile = Getenv(server + "_TLS_KEY_FILE")
	return certFile, keyFile, certFile != "" && keyFile != ""
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
