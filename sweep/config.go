package sweep

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration strings ("10m", "90s") or bare seconds in
// yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind != yaml.ScalarNode {
		return nil
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// ArchiveDBConfig points at the archives app's Postgres database, which the
// sweep only ever reads.
type ArchiveDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DSN renders a pgx connection string.
func (c ArchiveDBConfig) DSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, port),
		Path:   "/" + c.Name,
	}
	return u.String()
}

// ArchivesAppConfig points at the archives web app that executes server-side
// file edits.
type ArchivesAppConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// InsecureSkipVerify disables TLS verification for archives app calls.
	// Some deployments front the app with a self-signed certificate.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// StoreConfig locates the tracking store. LocalPath is the working copy the
// session mutates; SharedPath is the published copy on shared storage.
type StoreConfig struct {
	LocalPath  string `yaml:"local_path"`
	SharedPath string `yaml:"shared_path"`
}

type Config struct {
	ArchiveDB   ArchiveDBConfig   `yaml:"archive_db"`
	ArchivesApp ArchivesAppConfig `yaml:"archives_app"`
	Store       StoreConfig       `yaml:"store"`

	// Mount is the file server root as the operator sees it, e.g.
	// `N:\PPDO\Records` or `/mnt/records`.
	Mount string `yaml:"mount"`

	// SyncInterval is how often a running session republishes the tracking
	// store to shared storage.
	SyncInterval Duration `yaml:"sync_interval"`

	// Filters names the exclusion predicates to apply, by FiltersByName key.
	Filters []string `yaml:"filters"`

	Debug bool `yaml:"debug"`
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays environment variables onto the config. Environment wins
// over file values so deployments can keep credentials out of yaml.
func (c *Config) ApplyEnv() {
	setString(&c.ArchiveDB.Host, "ARCHIVES_DB_HOST")
	setInt(&c.ArchiveDB.Port, "ARCHIVES_DB_PORT")
	setString(&c.ArchiveDB.Name, "ARCHIVES_DB_NAME")
	setString(&c.ArchiveDB.User, "ARCHIVES_DB_USER")
	setString(&c.ArchiveDB.Password, "ARCHIVES_DB_PASSWORD")
	setString(&c.ArchivesApp.URL, "ARCHIVES_APP_URL")
	setString(&c.ArchivesApp.User, "ARCHIVES_APP_USER")
	setString(&c.ArchivesApp.Password, "ARCHIVES_APP_PASSWORD")
	setString(&c.Store.LocalPath, "SWEEP_DB_LOCAL_PATH")
	setString(&c.Store.SharedPath, "SWEEP_DB_LOCATION")
	setString(&c.Mount, "FILE_SERVER_MOUNT")
}

// Normalize applies defaults and expands ~ in store paths.
func (c *Config) Normalize() error {
	if c.SyncInterval <= 0 {
		c.SyncInterval = Duration(10 * time.Minute)
	}
	if strings.TrimSpace(c.Store.LocalPath) == "" {
		c.Store.LocalPath = "sweep.db"
	}
	local, err := homedir.Expand(c.Store.LocalPath)
	if err != nil {
		return fmt.Errorf("expand store local_path: %w", err)
	}
	c.Store.LocalPath = local
	shared, err := homedir.Expand(c.Store.SharedPath)
	if err != nil {
		return fmt.Errorf("expand store shared_path: %w", err)
	}
	c.Store.SharedPath = shared
	return nil
}

// ValidateStore checks the fields init-db and sync-db need.
func (c *Config) ValidateStore() error {
	var missing []string
	if strings.TrimSpace(c.Store.LocalPath) == "" {
		missing = append(missing, "store.local_path")
	}
	if strings.TrimSpace(c.Store.SharedPath) == "" {
		missing = append(missing, "store.shared_path")
	}
	return missingErr(missing)
}

// Validate checks everything a sweep session needs.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ArchiveDB.Host) == "" {
		missing = append(missing, "archive_db.host")
	}
	if strings.TrimSpace(c.ArchiveDB.Name) == "" {
		missing = append(missing, "archive_db.name")
	}
	if strings.TrimSpace(c.ArchiveDB.User) == "" {
		missing = append(missing, "archive_db.user")
	}
	if strings.TrimSpace(c.ArchivesApp.URL) == "" {
		missing = append(missing, "archives_app.url")
	}
	if strings.TrimSpace(c.ArchivesApp.User) == "" {
		missing = append(missing, "archives_app.user")
	}
	if strings.TrimSpace(c.Mount) == "" {
		missing = append(missing, "mount")
	}
	if err := missingErr(missing); err != nil {
		return err
	}
	return c.ValidateStore()
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
