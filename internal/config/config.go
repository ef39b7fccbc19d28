// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragboletin/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Scraper: Infoleg base URL, daily cap, batch width, pacing delay
//   - Schedule: partition start date, timezone, daily trigger time
//   - Storage: PostgreSQL warehouse connection, GCS archive bucket
//   - AI: embedding and generation model selection
//
// Sensitive data (the PostgreSQL password) is never logged; see MarshalJSON.
// Validation is fail-fast with sentinel errors checked via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidBaseURL indicates the Infoleg base URL is malformed.
	ErrInvalidBaseURL = errors.New("invalid infoleg base URL")

	// ErrInvalidBatchWidth indicates the concurrent batch width is out of range.
	ErrInvalidBatchWidth = errors.New("invalid batch width")

	// ErrInvalidBatchDelay indicates the inter-batch delay is negative.
	ErrInvalidBatchDelay = errors.New("invalid batch delay")

	// ErrInvalidDailyCap indicates the per-run record cap is out of range.
	ErrInvalidDailyCap = errors.New("invalid daily record cap")

	// ErrInvalidStartDate indicates the partition start date does not parse.
	ErrInvalidStartDate = errors.New("invalid partition start date")

	// ErrInvalidTimezone indicates the schedule timezone cannot be loaded.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrInvalidScheduleAt indicates the daily trigger time is malformed.
	ErrInvalidScheduleAt = errors.New("invalid schedule time")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidEmbedderDimension indicates a non-positive vector dimension.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")
)

const (
	// DefaultEmbedderModel is the default Gemini embedding model.
	// gemini-embedding-001 supports truncation to 768 dimensions, which is
	// what the master_embeddings schema uses.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the vector(768) column in
	// master_embeddings.
	DefaultEmbedderDimension = 768

	// DefaultInfolegBaseURL is the fixed origin of the bulletin source.
	DefaultInfolegBaseURL = "https://servicios.infoleg.gob.ar/infolegInternet"

	// DefaultTimezone is the deployment timezone driving business-day
	// partitions and the daily trigger.
	DefaultTimezone = "America/Argentina/Buenos_Aires"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON().
type Config struct {
	// Scraper configuration
	InfolegBaseURL string `mapstructure:"infoleg_base_url" json:"infoleg_base_url"`
	DailyScrapeCap int    `mapstructure:"daily_scrape_cap" json:"daily_scrape_cap"`
	BatchWidth     int    `mapstructure:"batch_width" json:"batch_width"`
	BatchDelayMS   int    `mapstructure:"batch_delay_ms" json:"batch_delay_ms"`
	FetchTimeoutMS int    `mapstructure:"fetch_timeout_ms" json:"fetch_timeout_ms"`

	// Schedule configuration
	StartDate  string `mapstructure:"start_date" json:"start_date"`   // YYYY-MM-DD
	Timezone   string `mapstructure:"timezone" json:"timezone"`       // IANA name
	ScheduleAt string `mapstructure:"schedule_at" json:"schedule_at"` // HH:MM local wall clock

	// Local dataset and archive configuration
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`
	MasterObject string `mapstructure:"master_object" json:"master_object"`
	GCSBucket    string `mapstructure:"gcs_bucket" json:"gcs_bucket"`

	// Warehouse (PostgreSQL) configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// AI configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	ModelName         string `mapstructure:"model_name" json:"model_name"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragboletin")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual PostgreSQL fields when set.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Scraper defaults match the source's politeness limits.
	viper.SetDefault("infoleg_base_url", DefaultInfolegBaseURL)
	viper.SetDefault("daily_scrape_cap", 200)
	viper.SetDefault("batch_width", 10)
	viper.SetDefault("batch_delay_ms", 3000)
	viper.SetDefault("fetch_timeout_ms", 30000)

	// Schedule defaults
	viper.SetDefault("start_date", "2025-10-01")
	viper.SetDefault("timezone", DefaultTimezone)
	viper.SetDefault("schedule_at", "07:10")

	// Dataset and archive defaults
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("master_object", "base-infoleg-normativa-nacional.csv")
	viper.SetDefault("gcs_bucket", "ragboletin-data-dev")

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "ragboletin")
	viper.SetDefault("postgres_password", "ragboletin_dev_password")
	viper.SetDefault("postgres_db_name", "ragboletin")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// AI defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	viper.SetDefault("model_name", "gemini-2.5-flash")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
// GCS credentials come from Application Default Credentials.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("infoleg_base_url", "RAGBOLETIN_INFOLEG_BASE_URL")
	mustBind("daily_scrape_cap", "RAGBOLETIN_DAILY_SCRAPE_CAP")
	mustBind("batch_width", "RAGBOLETIN_BATCH_WIDTH")
	mustBind("batch_delay_ms", "RAGBOLETIN_BATCH_DELAY_MS")
	mustBind("start_date", "RAGBOLETIN_START_DATE")
	mustBind("timezone", "RAGBOLETIN_TIMEZONE")
	mustBind("schedule_at", "RAGBOLETIN_SCHEDULE_AT")
	mustBind("data_dir", "RAGBOLETIN_DATA_DIR")
	mustBind("gcs_bucket", "RAGBOLETIN_GCS_BUCKET")
	mustBind("embedder_model", "RAGBOLETIN_EMBEDDER_MODEL")
	mustBind("model_name", "RAGBOLETIN_MODEL_NAME")
}

// parseDatabaseURL overrides PostgreSQL fields from a postgres:// URL.
// An empty raw URL is a no-op.
func (c *Config) parseDatabaseURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if host := u.Hostname(); host != "" {
		c.PostgresHost = host
	}
	if port := u.Port(); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
			return fmt.Errorf("malformed port %q: %w", port, err)
		}
		c.PostgresPort = p
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if db := filepath.Base(u.Path); db != "" && db != "/" && db != "." {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}

	return nil
}

// PostgresURL assembles the pgx connection URL for the warehouse.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new sensitive fields (passwords, API keys), update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	if a.PostgresPassword != "" {
		a.PostgresPassword = maskedValue
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
