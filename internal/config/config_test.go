package config

import (
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	keyPath := writeFile(t, "jwt.pem", string(pem.EncodeToMemory(&pem.Block{Type: "SECRET", Bytes: []byte("0123456789abcdef")})))
	path := writeFile(t, "config.json", `{
		"server_port": 9090,
		"log_level": "debug",
		"jwt_key_path": "`+keyPath+`",
		"store": {"seed": "none", "id_mode": "sequence", "reject_empty_content": true},
		"mqtt": {"broker": "tcp://localhost:1883"}
	}`)

	require.NoError(t, LoadConfig(path))
	cfg := GetConfig()
	assert.Equal(t, int32(9090), cfg.ServerPort)
	assert.Equal(t, "debug", cfg.Loglevel)
	assert.Equal(t, []byte("0123456789abcdef"), cfg.JwtKey)
	assert.Equal(t, SeedNone, cfg.Store.Seed)
	assert.Equal(t, IDModeSequence, cfg.Store.IDMode)
	assert.True(t, cfg.Store.RejectEmptyContent)
	assert.True(t, cfg.Mqtt.Enabled())
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, "feedback/events", cfg.Mqtt.TopicPrefix)
	assert.Equal(t, 24, cfg.SessionTTLHours)
	assert.False(t, cfg.Mysql.Enabled())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("FEEDBACK_SERVER_PORT", "7070")
	t.Setenv("FEEDBACK_LOG_LEVEL", "warn")
	t.Setenv("FEEDBACK_JWT_SECRET", "s3cret")
	t.Setenv("FEEDBACK_API_KEY", "k")

	require.NoError(t, LoadConfig(filepath.Join(t.TempDir(), "missing.json")))
	cfg := GetConfig()
	assert.Equal(t, int32(7070), cfg.ServerPort)
	assert.Equal(t, "warn", cfg.Loglevel)
	assert.Equal(t, []byte("s3cret"), cfg.JwtKey)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, SeedStatic, cfg.Store.Seed)
}

func TestLoadConfigRandomKey(t *testing.T) {
	require.NoError(t, LoadConfig(filepath.Join(t.TempDir(), "missing.json")))
	assert.Len(t, GetConfig().JwtKey, 32)
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{`,
		"unknown seed":   `{"store": {"seed": "redis", "id_mode": "uuid"}}`,
		"mysql seed":     `{"store": {"seed": "mysql", "id_mode": "uuid"}}`,
		"unknown idmode": `{"store": {"seed": "static", "id_mode": "snowflake"}}`,
		"journal":        `{"store": {"seed": "static", "id_mode": "uuid", "journal": true}}`,
		"ttl":            `{"session_ttl_hours": 0}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, LoadConfig(writeFile(t, "config.json", body)))
		})
	}
}

func TestLoadConfigBadPem(t *testing.T) {
	keyPath := writeFile(t, "jwt.pem", "not pem")
	path := writeFile(t, "config.json", `{"jwt_key_path": "`+keyPath+`"}`)
	assert.Error(t, LoadConfig(path))
}
