package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/scamquiz/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32 `mapstructure:"port"`
	} `mapstructure:"http"`

	Redis struct {
		Addrs  []string `mapstructure:"addrs"`
		Prefix string   `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Gemini struct {
		APIKey  string        `mapstructure:"api_key"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"gemini"`
}

var defaults = map[string]any{
	"http.port":      8080,
	"redis.addrs":    []string{"localhost:6379"},
	"redis.prefix":   "scamquiz",
	"gemini.api_key": "",
	"gemini.timeout": "30s",
}

func TestLoad_Defaults(t *testing.T) {
	var c testConfig
	require.NoError(t, config.Load("", &c, config.WithDefaults(defaults)))

	assert.EqualValues(t, 8080, c.HTTP.Port)
	assert.Equal(t, []string{"localhost:6379"}, c.Redis.Addrs)
	assert.Equal(t, "scamquiz", c.Redis.Prefix)
	assert.Equal(t, 30*time.Second, c.Gemini.Timeout)
	assert.Empty(t, c.Gemini.APIKey)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
http:
  port: 9090
redis:
  prefix: from-file
gemini:
  timeout: 5s
`), 0o600))

	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("REDIS_ADDRS", "redis-a:6379,redis-b:6379")
	t.Setenv("REDIS_PREFIX", "from-env")

	var c testConfig
	require.NoError(t, config.Load(file, &c, config.WithDefaults(defaults)))

	assert.EqualValues(t, 9090, c.HTTP.Port)
	assert.Equal(t, 5*time.Second, c.Gemini.Timeout)
	assert.Equal(t, "from-env", c.Gemini.APIKey)
	assert.Equal(t, "from-env", c.Redis.Prefix, "environment wins over the file")
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, c.Redis.Addrs)
}

func TestLoad_MissingFile(t *testing.T) {
	var c testConfig
	err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), &c)
	require.Error(t, err)
}
