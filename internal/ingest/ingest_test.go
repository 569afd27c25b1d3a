package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rosteretl/internal/datasource/file"
	"rosteretl/internal/excel"
	"rosteretl/internal/excel/exceltest"
	"rosteretl/internal/schema"
	"rosteretl/internal/sectionmap"
	"rosteretl/internal/skiplog"
	"rosteretl/internal/storage"
	"rosteretl/internal/storage/memstore"
	"rosteretl/internal/storage/sqlite"
	"rosteretl/internal/survey"
	"rosteretl/internal/transform"
	"rosteretl/internal/worksheet"
)

var fixedNow = time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	qFriendly = "a. Are the kids at this program friendly with each other?"
	qLike     = "a. Do you like coming here?"
	qFun      = "b. Do you have fun here?"
)

var (
	social, _    = schema.SectionByModel("SupportiveSocialEnvironmentScale")
	enjoyment, _ = schema.SectionByModel("EnjoymentEngagementScale")
)

func rosterHeaders() []any {
	return []any{
		"MarkelID",
		"Fall 2015 " + qFriendly,
		"Fall 2015 " + qLike,
		"Spring 2015 " + qFriendly,
		"Spring 2015 " + qLike,
		"Fall 2015 descriptionreading",
		"Winter 2015 " + qLike,
		"Fall 2015 What is your favorite color?",
	}
}

func rosterBook(t *testing.T, rows ...[]any) Source {
	t.Helper()
	return file.NewLocal(exceltest.WriteWorkbook(t, "Students", append([][]any{rosterHeaders()}, rows...)))
}

func newLoader(t *testing.T, repo storage.Repository, opts ...Option) *Loader {
	t.Helper()
	m, err := sectionmap.Default()
	require.NoError(t, err)
	base := []Option{
		WithJob("test"),
		WithCatalogOptions(survey.Options{Years: []int{2015}}),
		WithClock(func() time.Time { return fixedNow }),
	}
	l := New(repo, m, append(base, opts...)...)
	require.NoError(t, l.EnsureSchema(context.Background()))
	return l
}

func only(t *testing.T, rows []memstore.Row, match map[string]any) memstore.Row {
	t.Helper()
	var found []memstore.Row
	for _, r := range rows {
		ok := true
		for k, v := range match {
			if r[k] != v {
				ok = false
				break
			}
		}
		if ok {
			found = append(found, r)
		}
	}
	require.Len(t, found, 1, "rows matching %v", match)
	return found[0]
}

// questionnaire returns the questionnaire id of a student token and semester.
func questionnaire(t *testing.T, repo *memstore.Repo, token, season string, year int64) int64 {
	t.Helper()
	student := only(t, repo.Rows(schema.StudentTable), map[string]any{"student_token": token})
	sy := only(t, repo.Rows(schema.SchoolYearTable), map[string]any{"school_year": year})
	sem := only(t, repo.Rows(schema.SemesterTable), map[string]any{"school_year_id": sy["id"], "name": season})
	q := only(t, repo.Rows(schema.QuestionnaireTable), map[string]any{"student_id": student["id"], "semester_id": sem["id"]})
	return q["id"].(int64)
}

func section(t *testing.T, repo *memstore.Repo, sec schema.Section, qid int64) memstore.Row {
	t.Helper()
	return only(t, repo.Rows(sec.TableName), map[string]any{schema.QuestionnaireKey: qid})
}

func TestLoadRoster_WritesQuestionnaires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memstore.New()
	skipPath := filepath.Join(t.TempDir(), "skipped.csv")
	skips, err := skiplog.New(skipPath)
	require.NoError(t, err)
	l := newLoader(t, repo, WithSkipLog(skips))

	src := rosterBook(t,
		[]any{"S1", int64(3), int64(4), int64(2), nil, "x", "y", "blue"},
		[]any{" S2 ", nil, "5", int64(1), 2.0, nil, nil, nil},
		[]any{nil, nil, nil, nil, nil, nil, nil, ""},
	)
	res, err := l.LoadRoster(ctx, src, "Students")
	require.NoError(t, err)
	require.NoError(t, skips.Close())

	require.False(t, res.AlreadyImported)
	require.Equal(t, 2, res.Rows)
	require.Equal(t, 4, res.Questionnaires)
	require.Len(t, res.Sections, len(schema.Sections()))
	for model, n := range res.Sections {
		require.Equal(t, 4, n, model)
	}
	require.Equal(t, 4*len(schema.Sections()), res.SectionTotal())
	require.Equal(t, []string{"What is your favorite color?"}, res.Unmatched)
	require.Equal(t, 2, res.Created[schema.StudentTable])
	require.Equal(t, 1, res.Created[schema.SchoolYearTable])
	require.Equal(t, 2, res.Created[schema.SemesterTable])
	require.Equal(t, 4, res.Created[schema.QuestionnaireTable])

	year := only(t, repo.Rows(schema.SchoolYearTable), map[string]any{"school_year": int64(2015)})
	require.Equal(t, "2014-2015", year["name"])
	require.Equal(t, int64(2014), year["start_year"])

	s1Fall := questionnaire(t, repo, "S1", "Fall", 2015)
	require.Equal(t, int64(3), section(t, repo, social, s1Fall)["kids_friendly_with_each_other"])
	require.Equal(t, int64(4), section(t, repo, enjoyment, s1Fall)["you_like_coming_here"])
	require.Nil(t, section(t, repo, enjoyment, s1Fall)["have_fun_here"])

	s1Spring := questionnaire(t, repo, "S1", "Spring", 2015)
	require.Equal(t, int64(2), section(t, repo, social, s1Spring)["kids_friendly_with_each_other"])
	require.Nil(t, section(t, repo, enjoyment, s1Spring)["you_like_coming_here"])

	s2Fall := questionnaire(t, repo, "S2", "Fall", 2015)
	require.Nil(t, section(t, repo, social, s2Fall)["kids_friendly_with_each_other"])
	require.Equal(t, int64(5), section(t, repo, enjoyment, s2Fall)["you_like_coming_here"])
	s2Spring := questionnaire(t, repo, "S2", "Spring", 2015)
	require.Equal(t, int64(2), section(t, repo, enjoyment, s2Spring)["you_like_coming_here"])

	logRow := only(t, repo.Rows(schema.ImportLogTable), map[string]any{"checksum": res.Checksum})
	require.Equal(t, res.RunID, logRow["run_id"])
	require.Equal(t, KindRoster, logRow["kind"])
	require.Equal(t, "test", logRow["job"])
	require.Equal(t, int64(2), logRow["row_count"])
	require.Equal(t, int64(res.SectionTotal()), logRow["section_count"])
	require.Equal(t, fixedNow, logRow["finished_at"])

	require.Equal(t, map[string]int{"skipped header": 2, "unmatched question": 1}, skips.Counts())
}

func TestLoadRoster_ImportLogSkipsAndForce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memstore.New()
	src := rosterBook(t, []any{"S1", int64(3), int64(4), int64(2), int64(1), nil, nil, nil})

	first, err := newLoader(t, repo).LoadRoster(ctx, src, "Students")
	require.NoError(t, err)
	require.NotEmpty(t, first.RunID)

	again, err := newLoader(t, repo).LoadRoster(ctx, src, "Students")
	require.NoError(t, err)
	require.True(t, again.AlreadyImported)
	require.Equal(t, first.Checksum, again.Checksum)
	require.Zero(t, again.Rows)
	require.Equal(t, 1, repo.Count(schema.ImportLogTable))

	forced, err := newLoader(t, repo, WithForce(true)).LoadRoster(ctx, src, "Students")
	require.NoError(t, err)
	require.False(t, forced.AlreadyImported)
	require.NotEqual(t, first.RunID, forced.RunID)
	require.Equal(t, 2, repo.Count(schema.ImportLogTable))
	require.Equal(t, 1, repo.Count(schema.StudentTable))
	require.Equal(t, 2, repo.Count(schema.QuestionnaireTable))
	require.Empty(t, forced.Created[schema.StudentTable])
}

func TestLoadRoster_RejectsBadWorkbooks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers func() []any
		rows    [][]any
		want    string
	}{
		{
			name:    "unknown student key column",
			headers: func() []any { h := rosterHeaders(); h[0] = "Name"; return h },
			rows:    [][]any{{"S1", int64(1), nil, nil, nil, nil, nil, nil}},
			want:    "student id alias",
		},
		{
			name:    "missing student token",
			headers: rosterHeaders,
			rows: [][]any{
				{"S1", int64(1), nil, nil, nil, nil, nil, nil},
				{nil, int64(1), int64(2), nil, nil, nil, nil, nil},
			},
			want: "row 3",
		},
		{
			name:    "non-numeric answer",
			headers: rosterHeaders,
			rows:    [][]any{{"S1", "often", nil, nil, nil, nil, nil, nil}},
			want:    "not a number",
		},
		{
			name: "repeated question",
			headers: func() []any {
				return append(rosterHeaders(), "fall 2015 "+qLike)
			},
			rows: [][]any{{"S1", nil, nil, nil, nil, nil, nil, nil, nil}},
			want: "duplicate question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := memstore.New()
			path := exceltest.WriteWorkbook(t, "Students", append([][]any{tt.headers()}, tt.rows...))

			_, err := newLoader(t, repo).LoadRoster(ctx, file.NewLocal(path), "Students")
			var ve *survey.ValidationError
			require.True(t, errors.As(err, &ve), "error %v is not a ValidationError", err)
			require.ErrorContains(t, err, tt.want)
			require.Zero(t, repo.Count(schema.StudentTable))
			require.Zero(t, repo.Count(schema.ImportLogTable))
		})
	}
}

func TestLoadRoster_MissingSheet(t *testing.T) {
	t.Parallel()

	repo := memstore.New()
	_, err := newLoader(t, repo).LoadRoster(context.Background(), rosterBook(t), "Roster")
	var ie *excel.IngestionError
	require.ErrorAs(t, err, &ie)
}

// ReadSheet pads every row to the header width, so a short row only reaches
// the loader from a sheet built by hand.
func TestPrepareRosterSheet_ShortRow(t *testing.T) {
	t.Parallel()

	sh := &excel.Sheet{Source: "hand", Name: "Students", Rows: [][]any{
		rosterHeaders(),
		{"S1", int64(4)},
	}}
	_, err := newLoader(t, memstore.New()).prepareRosterSheet("hand", sh)
	var ve *survey.ValidationError
	require.ErrorAs(t, err, &ve)
	require.ErrorContains(t, err, "row 2 has 2 cells but the question columns reach column")
	require.ErrorContains(t, err, "hand: ")
}

func TestLoadRoster_RollsBackFailedFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memstore.New()
	m, err := sectionmap.Default()
	require.NoError(t, err)

	// Without an import_log table the final insert of the transaction fails.
	var tables []schema.Table
	for _, tb := range schema.Tables() {
		if tb.Name != schema.ImportLogTable {
			tables = append(tables, tb)
		}
	}
	require.NoError(t, repo.EnsureSchema(ctx, tables))

	l := New(repo, m, WithForce(true), WithCatalogOptions(survey.Options{Years: []int{2015}}))
	_, err = l.LoadRoster(ctx, rosterBook(t, []any{"S1", int64(3), nil, nil, nil, nil, nil, nil}), "Students")
	require.ErrorContains(t, err, "record import")
	require.Zero(t, repo.Count(schema.StudentTable))
	require.Zero(t, repo.Count(schema.QuestionnaireTable))
}

func surveyBook(t *testing.T) Source {
	t.Helper()
	return file.NewLocal(exceltest.WriteWorkbook(t, "Sheet1", [][]any{
		{"Student ID", "Grade", "a. Do you like coming here", "b. Do you have fun here!", "Comments"},
		{"S1", "10th", "Yes", "mostly no", "great"},
		{"S2", "9", "NO", nil, nil},
	}))
}

func surveyQuestions() []worksheet.QuestionConfig {
	return []worksheet.QuestionConfig{
		{ColumnLabel: "B", ExpectedHeader: "grade", Transformation: "gradestringtointtransformation"},
		{ColumnLabel: "C", ExpectedHeader: qLike, Transformation: "ScaleTransformation", Target: "EnjoymentEngagementScale.you_like_coming_here"},
		{ColumnLabel: "D", ExpectedHeader: qFun, Transformation: "scale", Target: "EnjoymentEngagementScale.have_fun_here"},
	}
}

func TestLoadSurvey_SQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, err := sqlite.NewRepository(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	l := newLoader(t, repo)
	res, err := l.LoadSurvey(ctx, surveyBook(t), SurveySheet{
		Sheet: "Sheet1", Season: "spring", Year: 2019, Questions: surveyQuestions(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Rows)
	require.Equal(t, 2, res.Questionnaires)
	require.Equal(t, map[string]int{enjoyment.Model: 2}, res.Sections)

	type answer struct {
		Token string `db:"student_token"`
		Like  *int64 `db:"you_like_coming_here"`
		Fun   *int64 `db:"have_fun_here"`
	}
	var got []answer
	require.NoError(t, repo.DB().SelectContext(ctx, &got, `
		SELECT s.student_token, e.you_like_coming_here, e.have_fun_here
		FROM student_experience_questionnaire_enjoyment_scale e
		JOIN student_experience_questionnaire q ON q.id = e.questionnaire_id
		JOIN student s ON s.id = q.student_id
		ORDER BY s.student_token`))
	require.Len(t, got, 2)
	require.Equal(t, "S1", got[0].Token)
	require.Equal(t, int64(4), *got[0].Like)
	require.Equal(t, int64(2), *got[0].Fun)
	require.Equal(t, int64(1), *got[1].Like)
	require.Nil(t, got[1].Fun)

	var semester string
	require.NoError(t, repo.DB().GetContext(ctx, &semester, `SELECT name FROM semester`))
	require.Equal(t, "Spring", semester)

	var kinds []string
	require.NoError(t, repo.DB().SelectContext(ctx, &kinds, `SELECT kind FROM import_log`))
	require.Equal(t, []string{KindSurvey}, kinds)
}

func TestLoadSurvey_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(s *SurveySheet)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown transformation",
			mutate: func(s *SurveySheet) { s.Questions[0].Transformation = "rot13" },
			check: func(t *testing.T, err error) {
				var ce *worksheet.ConfigurationError
				require.ErrorAs(t, err, &ce)
				require.ErrorIs(t, err, transform.ErrUnknownTransformation)
			},
		},
		{
			name:   "bad target",
			mutate: func(s *SurveySheet) { s.Questions[1].Target = "EnjoymentEngagementScale.nope" },
			check: func(t *testing.T, err error) {
				var ce *worksheet.ConfigurationError
				require.ErrorAs(t, err, &ce)
				require.Equal(t, "C", ce.Column)
			},
		},
		{
			name:   "target stored twice",
			mutate: func(s *SurveySheet) { s.Questions[2].Target = s.Questions[1].Target },
			check: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "already stored from column C")
			},
		},
		{
			name:   "header drift beyond threshold",
			mutate: func(s *SurveySheet) { s.Questions[2].ExpectedHeader = "What grade are you in?" },
			check: func(t *testing.T, err error) {
				var ie *excel.IngestionError
				require.ErrorAs(t, err, &ie)
				require.ErrorContains(t, err, "threshold")
			},
		},
		{
			name:   "answer outside the scale",
			mutate: func(s *SurveySheet) { s.Questions[2].Transformation = "agreement" },
			check: func(t *testing.T, err error) {
				var te *transform.TransformationError
				require.ErrorAs(t, err, &te)
				require.Equal(t, "mostly no", te.Value)
			},
		},
		{
			name:   "unknown season",
			mutate: func(s *SurveySheet) { s.Season = "summer" },
			check: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "summer")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := memstore.New()
			ws := SurveySheet{Sheet: "Sheet1", Season: "fall", Year: 2018, Questions: surveyQuestions()}
			tt.mutate(&ws)
			_, err := newLoader(t, repo).LoadSurvey(context.Background(), surveyBook(t), ws)
			require.Error(t, err)
			tt.check(t, err)
			require.Zero(t, repo.Count(schema.QuestionnaireTable))
		})
	}
}

func TestAnswerValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      any
		want    any
		wantErr bool
	}{
		{nil, nil, false},
		{"", nil, false},
		{"  ", nil, false},
		{int64(3), int64(3), false},
		{4, int64(4), false},
		{2.0, int64(2), false},
		{" 5 ", int64(5), false},
		{"3.0", int64(3), false},
		{2.5, nil, true},
		{"often", nil, true},
		{true, nil, true},
	}
	for _, tt := range tests {
		got, err := answerValue(tt.in)
		if tt.wantErr {
			require.Error(t, err, "answerValue(%#v)", tt.in)
			continue
		}
		require.NoError(t, err, "answerValue(%#v)", tt.in)
		require.Equal(t, tt.want, got, "answerValue(%#v)", tt.in)
	}
}

func TestCapProblems(t *testing.T) {
	t.Parallel()

	p := make([]string, maxProblems+3)
	got := capProblems(p)
	require.Len(t, got, maxProblems+1)
	require.Equal(t, "... and 3 more", got[maxProblems])
	require.Len(t, capProblems(p[:2]), 2)
}
