package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGameConfig_Defaults(t *testing.T) {
	c, err := LoadGameConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultGameConfig(), c)
	assert.Equal(t, constants.LoseThreshold, c.LoseThreshold)
}

func TestLoadGameConfig_Overrides(t *testing.T) {
	t.Setenv("NINETYFIVE_ALERT_THRESHOLDS", "50, 80,90")
	t.Setenv("NINETYFIVE_LOSE_THRESHOLD", "100")
	t.Setenv("NINETYFIVE_HAND_SIZE", "4")
	t.Setenv("NINETYFIVE_MAX_PLAYERS", "4")
	t.Setenv("NINETYFIVE_ROOM_LIFETIME", "30m")

	c, err := LoadGameConfig()
	require.NoError(t, err)
	assert.Equal(t, []int{50, 80, 90}, c.AlertThresholds)
	assert.Equal(t, 100, c.LoseThreshold)
	assert.Equal(t, 4, c.HandSize)
	assert.Equal(t, 4, c.MaxPlayers)
	assert.Equal(t, 30*time.Minute, c.RoomLifetime)
}

func TestLoadGameConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"NINETYFIVE_ALERT_THRESHOLDS": "10,x",
		"NINETYFIVE_HAND_SIZE":        "-1",
		"NINETYFIVE_MAX_PLAYERS":      "1",
		"NINETYFIVE_ROOM_LIFETIME":    "soon",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := LoadGameConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("NINETYFIVE_FIREBASE_PROJECT_ID", "")
	t.Setenv("NINETYFIVE_AUTH_PROVIDER", "")
	t.Setenv("NINETYFIVE_DATABASE_URL", "")
	t.Setenv("NINETYFIVE_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err, "firebase needs a project")

	t.Setenv("NINETYFIVE_JWT_SECRET", "secret")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "jwt", c.AuthProvider)
	assert.Equal(t, DefaultDatabaseURL, c.DatabaseURL)

	t.Setenv("NINETYFIVE_AUTH_PROVIDER", "ldap")
	_, err = Load()
	assert.EqualError(t, err, `unknown auth provider "ldap"`)
}

func TestTLS(t *testing.T) {
	t.Setenv("NINETYFIVE_API_TLS_CERT_FILE", "cert.pem")
	t.Setenv("NINETYFIVE_API_TLS_KEY_FILE", "")

	_, _, ok := TLS("api")
	assert.False(t, ok)

	t.Setenv("NINETYFIVE_API_TLS_KEY_FILE", "key.pem")
	cert, key, ok := TLS("api")
	assert.True(t, ok)
	assert.Equal(t, "cert.pem", cert)
	assert.Equal(t, "key.pem", key)
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NINETYFIVE_HAND_SIZE=5\nNINETYFIVE_LOSE_THRESHOLD=90\n"), 0o600))
	t.Setenv("NINETYFIVE_HAND_SIZE", "")
	os.Unsetenv("NINETYFIVE_HAND_SIZE")
	t.Setenv("NINETYFIVE_LOSE_THRESHOLD", "99")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "5", Getenv("HAND_SIZE"))
	assert.Equal(t, "99", Getenv("LOSE_THRESHOLD"), "set variables win")
}
