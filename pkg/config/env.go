package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// envOverride binds one MR_* variable to a config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envOverrides = []envOverride{
	{"MR_SERVER_PORT", intField(func(c *Config) *int { return &c.Server.Port })},
	{"MR_SERVER_RATE_LIMIT", intField(func(c *Config) *int { return &c.Server.RateLimit })},
	{"MR_SERVER_CORS_ORIGINS", listField(func(c *Config) *[]string { return &c.Server.CORSOrigins })},
	{"MR_POSTGRES_HOST", stringField(func(c *Config) *string { return &c.Postgres.Host })},
	{"MR_POSTGRES_PORT", intField(func(c *Config) *int { return &c.Postgres.Port })},
	{"MR_POSTGRES_DATABASE", stringField(func(c *Config) *string { return &c.Postgres.Database })},
	{"MR_POSTGRES_USER", stringField(func(c *Config) *string { return &c.Postgres.User })},
	{"MR_POSTGRES_PASSWORD", stringField(func(c *Config) *string { return &c.Postgres.Password })},
	{"MR_POSTGRES_SSLMODE", stringField(func(c *Config) *string { return &c.Postgres.SSLMode })},
	{"MR_KAFKA_ENABLED", boolField(func(c *Config) *bool { return &c.Kafka.Enabled })},
	{"MR_KAFKA_BROKERS", listField(func(c *Config) *[]string { return &c.Kafka.Brokers })},
	{"MR_REDIS_ENABLED", boolField(func(c *Config) *bool { return &c.Redis.Enabled })},
	{"MR_REDIS_ADDR", stringField(func(c *Config) *string { return &c.Redis.Addr })},
	{"MR_REDIS_PASSWORD", stringField(func(c *Config) *string { return &c.Redis.Password })},
	{"MR_REDIS_CACHE_TTL", durationField(func(c *Config) *time.Duration { return &c.Redis.CacheTTL })},
	{"MR_CATALOG_SOURCE", stringField(func(c *Config) *string { return &c.Catalog.Source })},
	{"MR_CATALOG_PATH", stringField(func(c *Config) *string { return &c.Catalog.Path })},
	{"MR_CATALOG_MIN_VOTE_COUNT", intField(func(c *Config) *int { return &c.Catalog.MinVoteCount })},
	{"MR_ANALYTICS_SNAPSHOT_INTERVAL", durationField(func(c *Config) *time.Duration { return &c.Analytics.SnapshotInterval })},
	{"MR_ANALYTICS_SNAPSHOT_RETENTION", durationField(func(c *Config) *time.Duration { return &c.Analytics.SnapshotRetention })},
	{"MR_AUTH_ENABLED", boolField(func(c *Config) *bool { return &c.Auth.Enabled })},
	{"MR_TRACING_ENABLED", boolField(func(c *Config) *bool { return &c.Tracing.Enabled })},
	{"MR_LOGGING_LEVEL", stringField(func(c *Config) *string { return &c.Logging.Level })},
	{"MR_LOGGING_FORMAT", stringField(func(c *Config) *string { return &c.Logging.Format })},
}

// applyEnvOverrides sets every field whose variable is present and
// non-empty. All malformed values are reported together.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", o.name, v, err))
		}
	}
	return errors.Join(errs...)
}

func stringField(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intField(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

// listField splits on commas and drops empty entries.
func listField(field func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		var items []string
		for item := range strings.SplitSeq(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*field(c) = items
		return nil
	}
}
