// Package config assembles run settings from .env, an optional YAML file and
// RETAIL_* environment variables, with command-line flags applied on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"retail-analytics/pkg/export"
	"retail-analytics/pkg/models"
)

const envPrefix = "RETAIL_"

// SinkSettings selects where artifacts go.
type SinkSettings struct {
	Type     string `yaml:"type"`   // fs | s3 | gcs
	Format   string `yaml:"format"` // csv | json
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// TopSettings caps the ranked reports.
type TopSettings struct {
	Countries     int `yaml:"countries"`
	Customers     int `yaml:"customers"`
	LifetimeValue int `yaml:"lifetime_value"`
	Products      int `yaml:"products"`
}

// Settings is the full run configuration.
type Settings struct {
	DSN           string            `yaml:"dsn"`
	Table         string            `yaml:"table"`
	CSVPath       string            `yaml:"csv"`
	Sink          SinkSettings      `yaml:"sink"`
	AsOf          string            `yaml:"as_of"`
	StartMonth    string            `yaml:"start_month"` // MMYYYY
	EndMonth      string            `yaml:"end_month"`
	CancelPrefix  string            `yaml:"cancel_prefix"`
	Workers       int               `yaml:"workers"`
	Top           TopSettings       `yaml:"top"`
	Reports       []string          `yaml:"reports"`
	ReportFilters map[string]string `yaml:"report_filters"`
	Progress      bool              `yaml:"progress"`
	Verbose       bool              `yaml:"verbose"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Settings {
	return Settings{
		DSN:          "sqlite://online_retail.db",
		Sink:         SinkSettings{Type: string(export.SinkTypeFS), Format: string(export.FormatCSV), Dir: "outputs"},
		CancelPrefix: models.DefaultCancelPrefix,
		Workers:      1,
		Top:          TopSettings{Countries: 20, Customers: 20, LifetimeValue: 50, Products: 30},
		Progress:     true,
	}
}

// Load reads the env files (default ".env"; missing files are ignored), then
// the YAML file at path when non-empty, then RETAIL_* overrides. The result is
// not validated: callers apply their flags first and then call Validate.
func Load(path string, envFiles ...string) (Settings, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return Settings{}, err
	}

	s := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %q: %w", f, err)
		}
	}
	return nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DSN":           &s.DSN,
		"TABLE":         &s.Table,
		"CSV":           &s.CSVPath,
		"SINK":          &s.Sink.Type,
		"FORMAT":        &s.Sink.Format,
		"OUTPUT_DIR":    &s.Sink.Dir,
		"BUCKET":        &s.Sink.Bucket,
		"PREFIX":        &s.Sink.Prefix,
		"REGION":        &s.Sink.Region,
		"ENDPOINT":      &s.Sink.Endpoint,
		"AS_OF":         &s.AsOf,
		"START_MONTH":   &s.StartMonth,
		"END_MONTH":     &s.EndMonth,
		"CANCEL_PREFIX": &s.CancelPrefix,
	}
	for key, dst := range str {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":            &s.Workers,
		"TOP_COUNTRIES":      &s.Top.Countries,
		"TOP_CUSTOMERS":      &s.Top.Customers,
		"TOP_LIFETIME_VALUE": &s.Top.LifetimeValue,
		"TOP_PRODUCTS":       &s.Top.Products,
	}
	for key, dst := range ints {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"PROGRESS": &s.Progress,
		"VERBOSE":  &s.Verbose,
	}
	for key, dst := range bools {
		if v, ok := lookup(envPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup(envPrefix + "REPORTS"); ok {
		s.Reports = SplitList(v)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the values that would otherwise fail late.
func (s Settings) Validate() error {
	if s.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if _, err := export.ParseFormat(s.Sink.Format); err != nil {
		return err
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	if _, err := ParseAsOf(s.AsOf); err != nil {
		return err
	}
	if (s.StartMonth == "") != (s.EndMonth == "") {
		return fmt.Errorf("start_month and end_month must be set together")
	}
	return nil
}

// ParseAsOf accepts RFC 3339, "2006-01-02 15:04:05" or "2006-01-02". Empty is the zero time.
func ParseAsOf(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, models.TimestampLayout, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid as_of %q", v)
}

// Engine converts the settings into calculator parameters.
func (s Settings) Engine() (models.Config, error) {
	asOf, err := ParseAsOf(s.AsOf)
	if err != nil {
		return models.Config{}, err
	}
	return models.Config{
		AsOf:             asOf,
		StartMonth:       s.StartMonth,
		EndMonth:         s.EndMonth,
		CancelPrefix:     s.CancelPrefix,
		Workers:          s.Workers,
		TopCountries:     s.Top.Countries,
		TopCustomers:     s.Top.Customers,
		TopLifetimeValue: s.Top.LifetimeValue,
		TopProducts:      s.Top.Products,
		Reports:          s.Reports,
		ReportFilters:    s.ReportFilters,
		ShowProgress:     s.Progress,
		Verbose:          s.Verbose,
	}, nil
}

// SinkOptions converts the sink settings for export.NewSink.
func (s Settings) SinkOptions() (export.Options, error) {
	f, err := export.ParseFormat(s.Sink.Format)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		Type:     export.SinkType(s.Sink.Type),
		Format:   f,
		Dir:      s.Sink.Dir,
		Bucket:   s.Sink.Bucket,
		Prefix:   s.Sink.Prefix,
		Region:   s.Sink.Region,
		Endpoint: s.Sink.Endpoint,
	}, nil
}
