package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var ErrMissingSecret = errors.New("JWT_SECRET (or -jwt-secret) is required")

type Config struct {
	ListenAddr        string
	LogLevel          logrus.Level
	JWTSecret         string
	StorageType       string
	DataSourceName    string
	AllowedOrigins    []string
	MaxHTTPBufferSize int64
	PingInterval      time.Duration
	PingTimeout       time.Duration

	// MintToken, when set, asks main to print a token for this user and exit.
	MintToken string
}

// Load reads .env when present, then the environment, then args. Flags win
// over the environment.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}
	return parse(args, os.Getenv)
}

func parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	maxBuffer, err := strconv.ParseInt(env("MAX_HTTP_BUFFER_SIZE", "1000000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("MAX_HTTP_BUFFER_SIZE: %w", err)
	}
	pingInterval, err := time.ParseDuration(env("PING_INTERVAL", "25s"))
	if err != nil {
		return nil, fmt.Errorf("PING_INTERVAL: %w", err)
	}
	pingTimeout, err := time.ParseDuration(env("PING_TIMEOUT", "20s"))
	if err != nil {
		return nil, fmt.Errorf("PING_TIMEOUT: %w", err)
	}

	fs := flag.NewFlagSet("social-server", flag.ContinueOnError)
	listen := fs.String("listen", env("LISTEN_ADDR", ":3002"), "The address to listen on.")
	logLevel := fs.String("loglevel", env("LOG_LEVEL", "info"), "The log level (debug, info, warn, error).")
	secret := fs.String("jwt-secret", env("JWT_SECRET", ""), "Secret used to verify session tokens.")
	storage := fs.String("storage", env("STORAGE_TYPE", "memory"), "Storage backend: memory or sqlite.")
	dsn := fs.String("dsn", env("DATA_SOURCE_NAME", "social.db"), "SQLite data source name.")
	origins := fs.String("origins", env("ALLOWED_ORIGINS", "*"), "Comma separated list of allowed origins.")
	fs.Int64Var(&maxBuffer, "max-buffer", maxBuffer, "Maximum socket.io message size in bytes.")
	fs.DurationVar(&pingInterval, "ping-interval", pingInterval, "Heartbeat interval.")
	fs.DurationVar(&pingTimeout, "ping-timeout", pingTimeout, "Heartbeat timeout.")
	mint := fs.String("mint-token", "", "Print a session token for the given user id and exit.")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if *secret == "" {
		return nil, ErrMissingSecret
	}
	if maxBuffer <= 0 {
		return nil, fmt.Errorf("max buffer must be positive, got %d", maxBuffer)
	}

	return &Config{
		ListenAddr:        *listen,
		LogLevel:          level,
		JWTSecret:         *secret,
		StorageType:       strings.ToLower(*storage),
		DataSourceName:    *dsn,
		AllowedOrigins:    splitList(*origins),
		MaxHTTPBufferSize: maxBuffer,
		PingInterval:      pingInterval,
		PingTimeout:       pingTimeout,
		MintToken:         *mint,
	}, nil
}

func splitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Compact(parts)
}
