package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the run file when set.
const (
	EnvDSN            = "ETL_DSN"
	EnvStorageKind    = "ETL_STORAGE_KIND"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDatadogAddr    = "DATADOG_ADDR"
)

// LoadEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. With no arguments it reads
// ./.env and tolerates its absence; named files must exist.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(files...)
}

// Decode reads a run file from r. Unknown keys are rejected so typos in a
// hand-edited file surface instead of silently reverting to defaults.
func Decode(r io.Reader) (Run, error) {
	var run Run
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&run); err != nil {
		return Run{}, fmt.Errorf("decode run config: %w", err)
	}
	return run, nil
}

// Load reads the run file at path, applies environment overrides read
// through getenv (nil means os.Getenv) and fills defaults.
func Load(path string, getenv func(string) string) (Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("open run config: %w", err)
	}
	defer f.Close()

	run, err := Decode(f)
	if err != nil {
		return Run{}, fmt.Errorf("%s: %w", path, err)
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	ApplyEnv(&run, getenv)
	ApplyDefaults(&run)
	return run, nil
}

// ApplyEnv overrides storage and metrics settings from the environment.
func ApplyEnv(run *Run, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&run.Storage.DSN, EnvDSN)
	set(&run.Storage.Kind, EnvStorageKind)
	set(&run.Metrics.Backend, EnvMetricsBackend)
	set(&run.Metrics.PushgatewayURL, EnvPushgatewayURL)
	set(&run.Metrics.DatadogAddr, EnvDatadogAddr)
}

// ApplyDefaults fills optional fields left empty.
func ApplyDefaults(run *Run) {
	if strings.TrimSpace(run.Job) == "" {
		run.Job = "etl"
	}
	if run.Metrics.Backend == "" {
		run.Metrics.Backend = "none"
	}
	for i := range run.Sources {
		s := &run.Sources[i]
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Options == nil {
			s.Options = Options{}
		}
		if s.Sheet != "" {
			continue
		}
		switch s.Kind {
		case KindRoster:
			s.Sheet = DefaultRosterSheet
		case KindSurvey:
			s.Sheet = "Sheet1"
		}
	}
}
