// Package config loads server settings and opens the configured store.
//
// Values are layered: defaults, then an optional TOML file, then a .env file
// (never overriding variables already in the environment), then the
// environment, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreNeo4j  = "neo4j"
)

// DefaultConfigFile is read when --config is not given and the file exists.
const DefaultConfigFile = "todo.toml"

// Config holds all server settings.
type Config struct {
	Addr         string `toml:"addr"`
	Store        string `toml:"store"`
	DatabaseFile string `toml:"database_file"`
	BackupDir    string `toml:"backup_dir"`

	Neo4j Neo4jConfig `toml:"neo4j"`
	Auth  AuthConfig  `toml:"auth"`

	CORSOrigins []string `toml:"cors_origins"`
	LogLevel    string   `toml:"log_level"`
	LogFormat   string   `toml:"log_format"`

	// LogRateLimit is the sustained POST /logs rate per client in requests per second.
	// Zero disables limiting.
	LogRateLimit float64 `toml:"log_rate_limit"`
	LogRateBurst int     `toml:"log_rate_burst"`
}

// Neo4jConfig holds the graph store connection settings.
type Neo4jConfig struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// AuthConfig holds token signing and the login credential.
type AuthConfig struct {
	SecretKey string `toml:"secret_key"`
	// AccessTokenExpireMinutes is reported at startup but not enforced on validation.
	AccessTokenExpireMinutes int    `toml:"access_token_expire_minutes"`
	AdminUsername            string `toml:"admin_username"`
	AdminPassword            string `toml:"admin_password"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:         ":8000",
		Store:        StoreSQLite,
		DatabaseFile: "database.db",
		BackupDir:    "backups",
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Password: "password",
		},
		Auth: AuthConfig{
			SecretKey:                "dev_secret_key_keep_it_safe",
			AccessTokenExpireMinutes: 30,
			AdminUsername:            "admin",
			AdminPassword:            "12345",
		},
		CORSOrigins:  []string{"http://localhost:4200"},
		LogLevel:     "info",
		LogFormat:    "text",
		LogRateBurst: 10,
	}
}

// Load builds the configuration from all sources. args excludes the program name.
// Each extra function may register additional flags on the same set before parsing.
func Load(args []string, extra ...func(*pflag.FlagSet)) (*Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("todo-api", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a TOML config file")
	envFile := fs.String("env-file", ".env", "path to a dotenv file")
	addr := fs.String("addr", "", "listen address")
	store := fs.String("store", "", "store backend: sqlite or neo4j")
	dbFile := fs.String("db", "", "SQLite data file")
	backupDir := fs.String("backup-dir", "", "directory for startup backups")
	neo4jURI := fs.String("neo4j-uri", "", "Neo4j connection URI")
	origins := fs.StringSlice("cors-origin", nil, "allowed CORS origin (repeatable)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	path := *configFile
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read env file %s: %w", *envFile, err)
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	// Flags override everything.
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *store != "" {
		cfg.Store = *store
	}
	if *dbFile != "" {
		cfg.DatabaseFile = *dbFile
	}
	if *backupDir != "" {
		cfg.BackupDir = *backupDir
	}
	if *neo4jURI != "" {
		cfg.Neo4j.URI = *neo4jURI
	}
	if len(*origins) > 0 {
		cfg.CORSOrigins = *origins
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("TODO_ADDR", &cfg.Addr)
	setString("TODO_STORE", &cfg.Store)
	setString("TODO_DB_FILE", &cfg.DatabaseFile)
	setString("TODO_BACKUP_DIR", &cfg.BackupDir)
	setString("NEO4J_URI", &cfg.Neo4j.URI)
	setString("NEO4J_USERNAME", &cfg.Neo4j.Username)
	setString("NEO4J_PASSWORD", &cfg.Neo4j.Password)
	setString("SECRET_KEY", &cfg.Auth.SecretKey)
	setString("ADMIN_USERNAME", &cfg.Auth.AdminUsername)
	setString("ADMIN_PASSWORD", &cfg.Auth.AdminPassword)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("LOG_FORMAT", &cfg.LogFormat)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
		}
		cfg.Auth.AccessTokenExpireMinutes = n
	}
	if v := os.Getenv("LOG_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LOG_RATE_LIMIT: %w", err)
		}
		cfg.LogRateLimit = f
	}
	if v := os.Getenv("LOG_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOG_RATE_BURST: %w", err)
		}
		cfg.LogRateBurst = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DatabaseFile == "" {
			return errors.New("config: database file is required for the sqlite store")
		}
	case StoreNeo4j:
		if c.Neo4j.URI == "" {
			return errors.New("config: neo4j uri is required for the neo4j store")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.Auth.SecretKey == "" {
		return errors.New("config: secret key must not be empty")
	}
	if c.LogRateLimit < 0 {
		return errors.New("config: log rate limit must not be negative")
	}
	return nil
}
