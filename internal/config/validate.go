package config

import (
	"fmt"
	"slices"
	"strings"

	"rosteretl/internal/excel"
	"rosteretl/internal/survey"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the run
// file, e.g. "sources[1].options.season".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	return slices.ContainsFunc(issues, func(i Issue) bool { return i.Severity == SeverityError })
}

var knownStorage = []string{"memory", "mssql", "mysql", "postgres", "sqlite"}

// ValidateRun lints a decoded run without touching the filesystem or the
// database. It does not mutate run.
func ValidateRun(run Run) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(run.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels metrics and import log entries")
	}

	switch kind := strings.TrimSpace(run.Storage.Kind); {
	case kind == "":
		add(SeverityError, "storage.kind", "storage.kind must not be empty")
	case !slices.Contains(knownStorage, kind):
		add(SeverityWarning, "storage.kind", "unknown storage kind %q; ensure a matching backend is registered", kind)
	}
	if strings.TrimSpace(run.Storage.DSN) == "" && run.Storage.Kind != "memory" {
		add(SeverityError, "storage.dsn", "storage.dsn must not be empty (set it in the file or %s)", EnvDSN)
	}

	if len(run.Sources) == 0 {
		add(SeverityError, "sources", "no sources configured; nothing to ingest")
	}
	seen := map[string]int{}
	for i, s := range run.Sources {
		issues = append(issues, validateSource(i, s, run.Survey)...)
		if first, dup := seen[s.Path]; dup && s.Path != "" {
			add(SeverityWarning, fmt.Sprintf("sources[%d].path", i), "%s is also sources[%d]; it will be skipped as already imported", s.Path, first)
		} else {
			seen[s.Path] = i
		}
	}

	issues = append(issues, validateSurvey(run.Survey)...)
	issues = append(issues, validateMetrics(run.Metrics)...)
	return issues
}

func validateSource(i int, s Source, sv Survey) []Issue {
	var issues []Issue
	p := func(field string) string { return fmt.Sprintf("sources[%d].%s", i, field) }
	add := func(sev IssueSeverity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(s.Path) == "" {
		add(SeverityError, p("path"), "source requires a non-empty path")
	}

	switch s.Kind {
	case KindRoster:
	case KindSurvey:
		season := s.Options.String("season", "")
		seasons := sv.CatalogOptions().Seasons
		if len(seasons) == 0 {
			seasons = survey.DefaultOptions().Seasons
		}
		switch {
		case season == "":
			add(SeverityError, p("options.season"), "survey source requires a season")
		case !slices.ContainsFunc(seasons, func(x string) bool { return strings.EqualFold(x, season) }):
			add(SeverityError, p("options.season"), "season %q is not one of %s", season, strings.Join(seasons, ", "))
		}
		if y := s.Options.Int("year", 0); y < 1000 || y > 9999 {
			add(SeverityError, p("options.year"), "survey source requires a four digit year")
		}
		if s.Options.String("questions", "") == "" {
			add(SeverityError, p("options.questions"), "survey source requires a question configuration file")
		}
		if s.Options.Has("fuzzy_threshold") {
			if n := s.Options.Int("fuzzy_threshold", -1); n < 0 || n > 100 {
				add(SeverityError, p("options.fuzzy_threshold"), "fuzzy_threshold must be an integer between 0 and 100")
			}
		}
		if s.Options.Has("header_row") && s.Options.Int("header_row", -1) < 0 {
			add(SeverityError, p("options.header_row"), "header_row must be a non-negative integer")
		}
		if col := s.Options.String("key_column", ""); col != "" {
			if _, err := excel.ColumnIndex(col); err != nil {
				add(SeverityError, p("options.key_column"), "%v", err)
			}
		}
	case "":
		add(SeverityError, p("kind"), "source kind must not be empty")
	default:
		add(SeverityError, p("kind"), "unknown source kind %q; want %q or %q", s.Kind, KindRoster, KindSurvey)
	}
	return issues
}

func validateSurvey(s Survey) []Issue {
	var issues []Issue
	for i, y := range s.Years {
		if y < 1000 || y > 9999 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("survey.years[%d]", i),
				Message:  fmt.Sprintf("year %d is not a four digit year", y),
			})
		}
	}
	if !slices.IsSorted(s.Years) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "survey.years",
			Message:  "years are not in ascending order; consecutive years are compared in the order given",
		})
	}
	for i, season := range s.Seasons {
		if strings.TrimSpace(season) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("survey.seasons[%d]", i),
				Message:  "season must not be empty",
			})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url",
				fmt.Sprintf("pushgateway backend requires a URL (file or %s)", EnvPushgatewayURL)})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr",
				fmt.Sprintf("datadog backend requires a DogStatsD address (file or %s)", EnvDatadogAddr)})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend)})
	}
	return issues
}
