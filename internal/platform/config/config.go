package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverNone      = "none"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"

	DefaultAppPrefix  = "studydesk-"
	DefaultCollection = "users"
)

var DefaultExcludedKeys = []string{
	"studydesk-auth",
	"studydesk-session",
	"studydesk-user",
	"studydesk-migrated",
}

type Remote struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	ProjectID       string        `yaml:"project_id"`
	Collection      string        `yaml:"collection"`
	CredentialsFile string        `yaml:"credentials_file"`
	Timeout         time.Duration `yaml:"timeout"`
}

type Config struct {
	DataDir      string   `yaml:"-"`
	DBPath       string   `yaml:"-"`
	UserID       string   `yaml:"user"`
	AppPrefix    string   `yaml:"app_prefix"`
	ExcludedKeys []string `yaml:"excluded_keys"`
	Remote       Remote   `yaml:"remote"`
	Verbose      bool     `yaml:"verbose"`
}

// Overrides carries command-line values; empty fields leave the loaded value alone.
type Overrides struct {
	DataDir    string
	ConfigFile string
	UserID     string
	Verbose    bool
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "studydesk.db"),
		AppPrefix:    DefaultAppPrefix,
		ExcludedKeys: append([]string(nil), DefaultExcludedKeys...),
		Remote:       Remote{Driver: DriverNone, Collection: DefaultCollection},
	}, nil
}

// Load layers defaults, the YAML config file, .env/environment and flags, in
// that order.
func Load(o Overrides) (Config, error) {
	dataDir := firstNonEmpty(o.DataDir, os.Getenv("STUDYDESK_DATA_DIR"))
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".studydesk")
	}
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}

	path := o.ConfigFile
	if path == "" {
		path = filepath.Join(dataDir, "config.yaml")
	}
	if err := cfg.mergeFile(path, o.ConfigFile != ""); err != nil {
		return Config{}, err
	}

	_ = godotenv.Load()
	cfg.mergeEnv()

	if o.UserID != "" {
		cfg.UserID = o.UserID
	}
	if o.Verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	loaded := *c
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	if loaded.AppPrefix == "" {
		loaded.AppPrefix = c.AppPrefix
	}
	if loaded.Remote.Driver == "" {
		loaded.Remote.Driver = DriverNone
	}
	if loaded.Remote.Collection == "" {
		loaded.Remote.Collection = DefaultCollection
	}
	loaded.DataDir = c.DataDir
	loaded.DBPath = c.DBPath
	*c = loaded
	return nil
}

func (c *Config) mergeEnv() {
	c.UserID = firstNonEmpty(os.Getenv("STUDYDESK_USER"), c.UserID)
	c.Remote.Driver = firstNonEmpty(os.Getenv("STUDYDESK_REMOTE_DRIVER"), c.Remote.Driver)
	c.Remote.DSN = firstNonEmpty(os.Getenv("STUDYDESK_REMOTE_DSN"), c.Remote.DSN)
	c.Remote.ProjectID = firstNonEmpty(os.Getenv("STUDYDESK_FIRESTORE_PROJECT"), c.Remote.ProjectID)
	c.Remote.Collection = firstNonEmpty(os.Getenv("STUDYDESK_FIRESTORE_COLLECTION"), c.Remote.Collection)
	c.Remote.CredentialsFile = firstNonEmpty(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), c.Remote.CredentialsFile)
	if v := strings.TrimSpace(os.Getenv("STUDYDESK_REMOTE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Remote.Timeout = d
		}
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("user id is required (--user or STUDYDESK_USER)")
	}
	if strings.TrimSpace(c.AppPrefix) == "" {
		return fmt.Errorf("app prefix must not be empty")
	}
	switch c.Remote.Driver {
	case DriverNone:
	case DriverPostgres:
		if c.Remote.DSN == "" {
			return fmt.Errorf("remote.dsn is required for the postgres driver")
		}
	case DriverFirestore:
		if c.Remote.ProjectID == "" {
			return fmt.Errorf("remote.project_id is required for the firestore driver")
		}
	default:
		return fmt.Errorf("unknown remote driver %q", c.Remote.Driver)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
