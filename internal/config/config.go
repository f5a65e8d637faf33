// Package config loads settings from defaults, an optional YAML file and
// OOMPH_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath   string         `yaml:"db_path"`
	Timezone string         `yaml:"timezone"`
	Log      LogConfig      `yaml:"log"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Backup   BackupConfig   `yaml:"backup"`

	loc *time.Location
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig sets when the daily materialization fires, as wall-clock
// time in Timezone.
type ScheduleConfig struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
	// Retries is how many times a failed run is retried before the day is
	// left for the next tick.
	Retries   uint64        `yaml:"retries"`
	RetryBase time.Duration `yaml:"retry_base"`
}

type BackupConfig struct {
	Dir        string   `yaml:"dir"`
	Passphrase string   `yaml:"passphrase"`
	S3         S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Enabled reports whether off-site upload is configured: a bucket and both
// keys. Validate rejects a partial set.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

func Default() Config {
	return Config{
		DBPath:   "oomph.db",
		Timezone: "America/Los_Angeles",
		Log:      LogConfig{Level: "info", Format: "text"},
		Schedule: ScheduleConfig{Hour: 1, Minute: 0, Retries: 3, RetryBase: 2 * time.Second},
		Backup:   BackupConfig{Dir: "backups", S3: S3Config{Region: "auto"}},
	}
}

// Load reads path (or $OOMPH_CONFIG when path is empty; no file is fine),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path, _ = lookup("OOMPH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"OOMPH_DB_PATH":           &c.DBPath,
		"OOMPH_TIMEZONE":          &c.Timezone,
		"OOMPH_LOG_LEVEL":         &c.Log.Level,
		"OOMPH_LOG_FORMAT":        &c.Log.Format,
		"OOMPH_BACKUP_DIR":        &c.Backup.Dir,
		"OOMPH_BACKUP_PASSPHRASE": &c.Backup.Passphrase,
		"OOMPH_S3_ENDPOINT":       &c.Backup.S3.Endpoint,
		"OOMPH_S3_BUCKET":         &c.Backup.S3.Bucket,
		"OOMPH_S3_REGION":         &c.Backup.S3.Region,
		"OOMPH_S3_ACCESS_KEY":     &c.Backup.S3.AccessKey,
		"OOMPH_S3_SECRET_KEY":     &c.Backup.S3.SecretKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"OOMPH_SCHEDULE_HOUR":   &c.Schedule.Hour,
		"OOMPH_SCHEDULE_MINUTE": &c.Schedule.Minute,
	}
	var err error
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(v))
		if convErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %q is not an integer", key, v))
			continue
		}
		*dst = n
	}
	return err
}

// Validate checks every field and loads the timezone. All problems are
// reported together.
func (c *Config) Validate() error {
	var err error
	if c.DBPath == "" {
		err = multierr.Append(err, fmt.Errorf("db_path is required"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		err = multierr.Append(err, fmt.Errorf("schedule.hour %d out of range 0-23", c.Schedule.Hour))
	}
	if c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		err = multierr.Append(err, fmt.Errorf("schedule.minute %d out of range 0-59", c.Schedule.Minute))
	}
	if c.Schedule.RetryBase < 0 {
		err = multierr.Append(err, fmt.Errorf("schedule.retry_base must not be negative"))
	}

	if s3 := c.Backup.S3; (s3.Bucket != "" || s3.AccessKey != "" || s3.SecretKey != "") && !s3.Enabled() {
		err = multierr.Append(err, fmt.Errorf("backup.s3 needs bucket, access_key and secret_key together"))
	}

	loc, locErr := time.LoadLocation(c.Timezone)
	if locErr != nil {
		err = multierr.Append(err, fmt.Errorf("timezone %q: %w", c.Timezone, locErr))
	} else {
		c.loc = loc
	}

	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location is the evaluation timezone. Only valid after Validate.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}
