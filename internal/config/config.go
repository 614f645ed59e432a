package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

// Config holds all pipeline settings. Values come from defaults, then an
// optional YAML file, then environment variables; flags are applied by the CLI.
type Config struct {
	CensusAPIKey string
	CacheDir     string
	LogLevel     string
	LogFormat    string

	MaxConnections int
	FetchAttempts  int
	FetchBaseDelay time.Duration
	FetchMaxDelay  time.Duration
	HTTPTimeout    time.Duration
	ScrapeInterval time.Duration

	CTCrosswalkPath string

	KafkaBrokers []string
	KafkaTopic   string

	MetricsFile string
	NPXPath     string
	Ogr2ogrPath string
}

// Load reads configuration. path names an optional YAML file whose keys are the
// lower-cased environment variable names (census_api_key, cache_dir, ...); an
// empty path skips it. Environment variables win over the file.
func Load(path string) (*Config, error) {
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}
	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v, ok := file[strings.ToLower(key)]; ok && v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		CensusAPIKey:    get("CENSUS_API_KEY", ""),
		CacheDir:        get("CACHE_DIR", "cache"),
		LogLevel:        get("LOG_LEVEL", "info"),
		LogFormat:       get("LOG_FORMAT", "text"),
		CTCrosswalkPath: get("CT_CROSSWALK_PATH", ""),
		KafkaBrokers:    parseBrokers(get("KAFKA_BROKERS", "")),
		KafkaTopic:      get("KAFKA_TOPIC", "county-results"),
		MetricsFile:     get("METRICS_FILE", ""),
		NPXPath:         get("NPX_PATH", "npx"),
		Ogr2ogrPath:     get("OGR2OGR_PATH", "ogr2ogr"),
	}

	if cfg.MaxConnections, err = parsePositiveInt("MAX_CONNECTIONS", get("MAX_CONNECTIONS", "3")); err != nil {
		return nil, err
	}
	if cfg.FetchAttempts, err = parsePositiveInt("FETCH_ATTEMPTS", get("FETCH_ATTEMPTS", "3")); err != nil {
		return nil, err
	}
	if cfg.FetchBaseDelay, err = parseDuration("FETCH_BASE_DELAY", get("FETCH_BASE_DELAY", "250ms"), false); err != nil {
		return nil, err
	}
	if cfg.FetchMaxDelay, err = parseDuration("FETCH_MAX_DELAY", get("FETCH_MAX_DELAY", "5s"), false); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = parseDuration("HTTP_TIMEOUT", get("HTTP_TIMEOUT", "60s"), true); err != nil {
		return nil, err
	}
	if cfg.ScrapeInterval, err = parseDuration("SCRAPE_INTERVAL", get("SCRAPE_INTERVAL", "1s"), false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that may have been overridden after Load.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be json or text, got %q", domain.ErrConfig, c.LogFormat)
	}
	if c.FetchMaxDelay < c.FetchBaseDelay {
		return fmt.Errorf("%w: FETCH_MAX_DELAY %s is below FETCH_BASE_DELAY %s", domain.ErrConfig, c.FetchMaxDelay, c.FetchBaseDelay)
	}
	if c.CacheDir == "" {
		return fmt.Errorf("%w: CACHE_DIR is required", domain.ErrConfig)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("%w: KAFKA_TOPIC is required when KAFKA_BROKERS is set", domain.ErrConfig)
	}
	return nil
}

// PublishEnabled reports whether merged rows should be sent to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file: %w", domain.ErrConfig, err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfig, path, err)
	}
	return raw, nil
}

func parsePositiveInt(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", domain.ErrConfig, key, s)
	}
	return n, nil
}

func parseDuration(key, s string, positive bool) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (positive && d == 0) {
		return 0, fmt.Errorf("%w: invalid %s %q", domain.ErrConfig, key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
