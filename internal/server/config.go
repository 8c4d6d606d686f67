package server

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"time"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32 `mapstructure:"port"`
	} `mapstructure:"http"`

	GRPC struct {
		// Port of the health service, 0 disables it.
		Port int32 `mapstructure:"port"`
	} `mapstructure:"grpc"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Line struct {
		ChannelSecret      string `mapstructure:"channel_secret"`
		ChannelAccessToken string `mapstructure:"channel_access_token"`
		Endpoint           string `mapstructure:"endpoint"`
	} `mapstructure:"line"`

	Gemini struct {
		APIKey            string        `mapstructure:"api_key"`
		Model             string        `mapstructure:"model"`
		Temperature       float32       `mapstructure:"temperature"`
		Timeout           time.Duration `mapstructure:"timeout"`
		RequestsPerMinute int           `mapstructure:"requests_per_minute"`
		Templates         []string      `mapstructure:"templates"`
	} `mapstructure:"gemini"`

	Store struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`

	Redis struct {
		Addrs  []string `mapstructure:"addrs"`
		Pass   string   `mapstructure:"pass"`
		Prefix string   `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Postgres struct {
		Addr string `mapstructure:"addr"`
		User string `mapstructure:"user"`
		Pass string `mapstructure:"pass"`
		Name string `mapstructure:"name"`
	} `mapstructure:"postgres"`

	Leaderboard struct {
		Size int `mapstructure:"size"`
	} `mapstructure:"leaderboard"`

	Webhook struct {
		Concurrency int `mapstructure:"concurrency"`
	} `mapstructure:"webhook"`
}

// Defaults lists every configuration key with its default value.
func Defaults() map[string]any {
	return map[string]any{
		"http.port":                  8080,
		"grpc.port":                  8081,
		"log.level":                  "info",
		"line.channel_secret":        "",
		"line.channel_access_token":  "",
		"line.endpoint":              "https://api.line.me",
		"gemini.api_key":             "",
		"gemini.model":               "gemini-1.5-flash",
		"gemini.temperature":         0.9,
		"gemini.timeout":             "30s",
		"gemini.requests_per_minute": 60,
		"gemini.templates":           []string{},
		"store.driver":               StoreRedis,
		"redis.addrs":                []string{"localhost:6379"},
		"redis.pass":                 "",
		"redis.prefix":               "scamquiz",
		"postgres.addr":              "localhost:5432",
		"postgres.user":              "postgres",
		"postgres.pass":              "",
		"postgres.name":              "scamquiz",
		"leaderboard.size":           10,
		"webhook.concurrency":        8,
	}
}

// Validate reports every missing credential and unsupported setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Line.ChannelSecret == "" {
		errs = append(errs, stderrors.New("line.channel_secret is required"))
	}
	if c.Line.ChannelAccessToken == "" {
		errs = append(errs, stderrors.New("line.channel_access_token is required"))
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, stderrors.New("gemini.api_key is required"))
	}

	switch c.Store.Driver {
	case StoreRedis:
		if len(c.Redis.Addrs) == 0 {
			errs = append(errs, stderrors.New("redis.addrs is required for the redis store"))
		}
	case StorePostgres:
		if c.Postgres.Addr == "" || c.Postgres.Name == "" {
			errs = append(errs, stderrors.New("postgres.addr and postgres.name are required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}

	return stderrors.Join(errs...)
}

func (c Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Pass),
		Host:     c.Postgres.Addr,
		Path:     "/" + c.Postgres.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
