package config

import (
	"flag"
	"fmt"
	"strconv"

	"retail-analytics/pkg/export"
)

// ApplyFlags copies the flags explicitly set on fs over the loaded settings.
// -out lands in the output dir for the fs sink and in the key prefix otherwise,
// so it is resolved after -sink whatever the command-line order.
func (s *Settings) ApplyFlags(fs *flag.FlagSet) error {
	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })

	str := map[string]*string{
		"dsn":         &s.DSN,
		"table":       &s.Table,
		"csv":         &s.CSVPath,
		"format":      &s.Sink.Format,
		"sink":        &s.Sink.Type,
		"bucket":      &s.Sink.Bucket,
		"as-of":       &s.AsOf,
		"start_month": &s.StartMonth,
		"end_month":   &s.EndMonth,
	}
	for name, dst := range str {
		if v, ok := set[name]; ok {
			*dst = v
		}
	}
	if v, ok := set["workers"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("-workers: %w", err)
		}
		s.Workers = n
	}
	if v, ok := set["v"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("-v: %w", err)
		}
		s.Verbose = b
	}
	if v, ok := set["reports"]; ok {
		s.Reports = SplitList(v)
	}
	if v, ok := set["out"]; ok {
		if s.Sink.Type == "" || s.Sink.Type == string(export.SinkTypeFS) {
			s.Sink.Dir = v
		} else {
			s.Sink.Prefix = v
		}
	}
	return nil
}
