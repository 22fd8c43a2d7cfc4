package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Data source and photo store variants.
const (
	DataSourceLocal  = "local"
	DataSourceRemote = "remote"

	PhotoStoreLocal = "local"
	PhotoStoreS3    = "s3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataSource    string
	LocalDataPath string
	PhotoDir      string
	PhotoStore    string

	// Remote table.
	RemoteDBURL string
	RemoteDBKey string
	RemoteTable string

	// S3-compatible photo bucket.
	S3Bucket          string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string

	// Astrometry.net constellation detection.
	AstrometryAPIKey             string
	AstrometryEnabled            bool
	AstrometryBaseURL            string
	AstrometryPollInterval       time.Duration
	AstrometryMaxSubmissionPolls int
	AstrometryMaxJobPolls        int
	AstrometryTimeout            time.Duration
	AstrometryCacheSize          int

	// Bulk import review queue.
	KafkaBrokers     []string
	KafkaReviewTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. Invalid settings fail with domain.ErrConfiguration.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	pollInterval, err := parseDuration("ASTROMETRY_POLL_INTERVAL", "30s", true)
	if err != nil {
		return nil, err
	}
	detectTimeout, err := parseDuration("ASTROMETRY_TIMEOUT", "15m", false)
	if err != nil {
		return nil, err
	}
	maxSubPolls, err := parsePositiveInt("ASTROMETRY_MAX_SUBMISSION_POLLS", 10)
	if err != nil {
		return nil, err
	}
	maxJobPolls, err := parsePositiveInt("ASTROMETRY_MAX_JOB_POLLS", 20)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("ASTROMETRY_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("ASTROMETRY_API_KEY")
	detectEnabled := apiKey != ""
	if v := os.Getenv("ASTROMETRY_ENABLED"); v != "" {
		detectEnabled = v == "true"
	}

	cfg := &Config{
		DataSource:    strings.ToLower(sharedcfg.EnvOrDefault("DATA_SOURCE", DataSourceLocal)),
		LocalDataPath: sharedcfg.EnvOrDefault("LOCAL_DATA_PATH", "data/submissions.json"),
		PhotoDir:      sharedcfg.EnvOrDefault("PHOTO_DIR", "data/photos"),
		PhotoStore:    strings.ToLower(sharedcfg.EnvOrDefault("PHOTO_STORE", PhotoStoreLocal)),

		RemoteDBURL: os.Getenv("REMOTE_DB_URL"),
		RemoteDBKey: os.Getenv("REMOTE_DB_KEY"),
		RemoteTable: sharedcfg.EnvOrDefault("REMOTE_TABLE", "submissions"),

		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          sharedcfg.EnvOrDefault("S3_REGION", "auto"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),

		AstrometryAPIKey:             apiKey,
		AstrometryEnabled:            detectEnabled,
		AstrometryBaseURL:            sharedcfg.EnvOrDefault("ASTROMETRY_BASE_URL", "https://nova.astrometry.net/api/"),
		AstrometryPollInterval:       pollInterval,
		AstrometryMaxSubmissionPolls: maxSubPolls,
		AstrometryMaxJobPolls:        maxJobPolls,
		AstrometryTimeout:            detectTimeout,
		AstrometryCacheSize:          cacheSize,

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReviewTopic: sharedcfg.EnvOrDefault("KAFKA_REVIEW_TOPIC", "skylore-pending-review"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataSource {
	case DataSourceLocal:
		if c.LocalDataPath == "" {
			return configErr("LOCAL_DATA_PATH is required for the local data source")
		}
	case DataSourceRemote:
		if c.RemoteDBURL == "" || c.RemoteDBKey == "" {
			return configErr("DATA_SOURCE is remote but REMOTE_DB_URL or REMOTE_DB_KEY is not set")
		}
	default:
		return configErr(fmt.Sprintf("DATA_SOURCE must be %q or %q, got %q", DataSourceLocal, DataSourceRemote, c.DataSource))
	}

	switch c.PhotoStore {
	case PhotoStoreLocal:
	case PhotoStoreS3:
		if c.S3Bucket == "" {
			return configErr("PHOTO_STORE is s3 but S3_BUCKET is not set")
		}
	default:
		return configErr(fmt.Sprintf("PHOTO_STORE must be %q or %q, got %q", PhotoStoreLocal, PhotoStoreS3, c.PhotoStore))
	}

	if c.AstrometryEnabled && c.AstrometryAPIKey == "" {
		return configErr("ASTROMETRY_ENABLED is true but ASTROMETRY_API_KEY is not set")
	}
	return nil
}

// Redacted returns loggable settings with credentials removed.
func (c *Config) Redacted() []any {
	return []any{
		"data_source", c.DataSource,
		"photo_store", c.PhotoStore,
		"remote_table", c.RemoteTable,
		"detection_enabled", c.AstrometryEnabled,
		"review_topic", c.KafkaReviewTopic,
		"http_addr", c.HTTPAddr,
	}
}

func configErr(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrConfiguration, msg)
}

// parseDuration reads a duration variable. Zero is accepted only when
// allowZero is set; negative values never are.
func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, configErr("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, configErr("invalid " + key)
	}
	return n, nil
}
