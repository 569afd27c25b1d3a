// Package ingest loads survey spreadsheets into the roster database.
//
// Every source file is read and validated in full before anything is
// written; the writes of one file then happen in a single transaction
// together with its import_log entry, so a file either lands completely or
// not at all. Files whose contents were already imported are skipped.
package ingest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rosteretl/internal/datasource"
	"rosteretl/internal/metrics"
	"rosteretl/internal/roster"
	"rosteretl/internal/schema"
	"rosteretl/internal/sectionmap"
	"rosteretl/internal/skiplog"
	"rosteretl/internal/storage"
	"rosteretl/internal/survey"
)

// Source kinds recorded in the import log.
const (
	KindRoster = "roster"
	KindSurvey = "survey"
)

// Source is a spreadsheet that can be read and fingerprinted.
type Source interface {
	datasource.Source
	Fingerprint(ctx context.Context) (string, error)
}

// Loader writes spreadsheets through a Repository.
type Loader struct {
	repo     storage.Repository
	sections *sectionmap.Map
	catalog  survey.Options
	job      string
	force    bool
	log      *zap.Logger
	skips    *skiplog.Log
	now      func() time.Time
	newRunID func() string
}

// Option configures a Loader.
type Option func(*Loader)

// WithJob names the run in metrics and the import log.
func WithJob(job string) Option { return func(l *Loader) { l.job = job } }

// WithCatalogOptions sets how roster headers are recognized.
func WithCatalogOptions(o survey.Options) Option { return func(l *Loader) { l.catalog = o } }

// WithForce re-imports files whose checksum is already in the import log.
func WithForce(force bool) Option { return func(l *Loader) { l.force = force } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithSkipLog records skipped columns and unmatched questions.
func WithSkipLog(s *skiplog.Log) Option { return func(l *Loader) { l.skips = s } }

// WithClock overrides the time source of import log timestamps.
func WithClock(now func() time.Time) Option { return func(l *Loader) { l.now = now } }

// New returns a Loader writing to repo and routing roster answers with
// sections.
func New(repo storage.Repository, sections *sectionmap.Map, opts ...Option) *Loader {
	l := &Loader{
		repo:     repo,
		sections: sections,
		catalog:  survey.DefaultOptions(),
		job:      "etl",
		log:      zap.NewNop(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, o := range opts {
		o(l)
	}
	l.log = l.log.Named("ingest")
	return l
}

// EnsureSchema creates every table the loader writes to.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	return l.repo.EnsureSchema(ctx, schema.Tables())
}

// Result summarizes one source file.
type Result struct {
	Source   string
	Kind     string
	Checksum string
	RunID    string

	// AlreadyImported is set when the file was skipped because its checksum
	// is in the import log.
	AlreadyImported bool

	// Rows is the number of data rows read.
	Rows int
	// Questionnaires is the number of (student, semester) answer sets written.
	Questionnaires int
	// Sections counts section rows written per section model.
	Sections map[string]int
	// Created counts rows inserted per table.
	Created map[string]int
	// Unmatched are answered questions the section map does not route.
	Unmatched []string

	Elapsed time.Duration
}

// SectionTotal is the number of section rows written.
func (r Result) SectionTotal() int {
	n := 0
	for _, c := range r.Sections {
		n += c
	}
	return n
}

// bucket is the answers of one student for one semester, already routed to
// section attributes.
type bucket struct {
	token    string
	season   string
	year     int
	sections []sectionmap.SectionValues
}

// prepared is a validated file ready to be written.
type prepared struct {
	rows      int
	buckets   []bucket
	unmatched []string
}

func (l *Loader) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(l.job, name, err, time.Since(start))
	return err
}

// run fingerprints src, skips it when already imported, prepares it and
// writes it in one transaction.
func (l *Loader) run(ctx context.Context, src Source, kind string, prepare func() (*prepared, error)) (res Result, err error) {
	start := time.Now()
	res = Result{Source: src.Name(), Kind: kind, Sections: map[string]int{}, Created: map[string]int{}}
	log := l.log.With(zap.String("source", src.Name()), zap.String("kind", kind))
	defer func() {
		res.Elapsed = time.Since(start)
		switch {
		case err != nil:
			metrics.RecordFile(l.job, kind, "failure")
		case res.AlreadyImported:
			metrics.RecordFile(l.job, kind, "skipped")
		default:
			metrics.RecordFile(l.job, kind, "success")
		}
	}()

	log.Info("ingesting file")

	if err = l.step("fingerprint", func() error {
		var ferr error
		res.Checksum, ferr = src.Fingerprint(ctx)
		return ferr
	}); err != nil {
		return res, fmt.Errorf("fingerprint %s: %w", src.Name(), err)
	}

	if !l.force {
		_, found, ferr := l.repo.FindID(ctx, schema.ImportLogTable, []storage.Field{storage.F("checksum", res.Checksum)})
		if ferr != nil {
			return res, fmt.Errorf("check import log: %w", ferr)
		}
		if found {
			res.AlreadyImported = true
			log.Info("file already imported; skipping", zap.String("checksum", res.Checksum))
			return res, nil
		}
	}

	var p *prepared
	if err = l.step("prepare", func() error {
		var perr error
		p, perr = prepare()
		return perr
	}); err != nil {
		return res, err
	}
	res.Rows = p.rows
	res.Unmatched = p.unmatched
	for _, q := range p.unmatched {
		l.skips.Add("unmatched question", src.Name(), "", q)
		log.Debug("question has no section mapping", zap.String("question", q))
	}

	res.RunID = l.newRunID()
	if err = l.step("load", func() error {
		return l.repo.InTx(ctx, func(s storage.Store) error {
			return l.write(ctx, s, p, &res)
		})
	}); err != nil {
		return res, fmt.Errorf("load %s: %w", src.Name(), err)
	}

	metrics.RecordRows(l.job, "processed", int64(res.Rows))
	metrics.RecordRows(l.job, "questionnaires", int64(res.Questionnaires))
	for _, model := range sortedKeys(res.Sections) {
		metrics.RecordSections(l.job, model, int64(res.Sections[model]))
	}
	log.Info("file ingested",
		zap.Int("rows", res.Rows),
		zap.Int("questionnaires", res.Questionnaires),
		zap.Int("sections", res.SectionTotal()),
		zap.Int("students_created", res.Created[schema.StudentTable]),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (l *Loader) write(ctx context.Context, s storage.Store, p *prepared, res *Result) error {
	r := roster.NewResolver(s)
	for _, b := range p.buckets {
		studentID, err := r.Student(ctx, b.token)
		if err != nil {
			return fmt.Errorf("student %s: %w", b.token, err)
		}
		semesterID, err := r.Semester(ctx, b.year, b.season)
		if err != nil {
			return fmt.Errorf("student %s: semester %s %d: %w", b.token, b.season, b.year, err)
		}
		qid, err := r.Questionnaire(ctx, studentID, semesterID)
		if err != nil {
			return fmt.Errorf("student %s: questionnaire: %w", b.token, err)
		}
		for _, sv := range b.sections {
			if len(sv.Fields) == 0 {
				continue
			}
			if _, err := r.SetSection(ctx, sv.Section, qid, sv.Fields); err != nil {
				return fmt.Errorf("student %s: %s: %w", b.token, sv.Section.Model, err)
			}
			res.Sections[sv.Section.Model]++
		}
		res.Questionnaires++
	}
	for table, n := range r.Created {
		res.Created[table] += n
	}

	_, err := s.Insert(ctx, schema.ImportLogTable, []storage.Field{
		storage.F("run_id", res.RunID),
		storage.F("job", l.job),
		storage.F("source", res.Source),
		storage.F("kind", res.Kind),
		storage.F("checksum", res.Checksum),
		storage.F("row_count", int64(res.Rows)),
		storage.F("section_count", int64(res.SectionTotal())),
		storage.F("finished_at", l.now().UTC()),
	})
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
