package worksheet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"rosteretl/internal/transform"
)

// QuestionConfig declares one column of a current-format survey worksheet.
//
//	[
//	  {"column_label": "C", "expected_header": "Do you like coming here?",
//	   "transformation": "ScaleTransformation",
//	   "target": "EnjoymentEngagementScale.you_like_coming_here"}
//	]
//
// Transformation is optional; Target, when set, routes the answer onto a
// questionnaire section attribute.
type QuestionConfig struct {
	ColumnLabel    string `json:"column_label"`
	ExpectedHeader string `json:"expected_header"`
	Transformation string `json:"transformation,omitempty"`
	Target         string `json:"target,omitempty"`
}

// ConfigurationError reports a question configuration that cannot be built.
type ConfigurationError struct {
	Column string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s column configuration error: %v", e.Column, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DecodeQuestionConfigs reads a JSON array of question configs.
func DecodeQuestionConfigs(r io.Reader) ([]QuestionConfig, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var out []QuestionConfig
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode question configs: %w", err)
	}
	return out, nil
}

// LoadQuestionConfigs reads a JSON question config file.
func LoadQuestionConfigs(path string) ([]QuestionConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeQuestionConfigs(f)
}

// Build turns configs into unbound fields, wrapping each question in its
// transformation. Unknown transformations and bad column labels fail with
// a *ConfigurationError.
func Build(configs []QuestionConfig) ([]Field, error) {
	fields := make([]Field, 0, len(configs))
	for _, c := range configs {
		q, err := NewQuestion(c.ColumnLabel, c.ExpectedHeader)
		if err != nil {
			return nil, &ConfigurationError{Column: c.ColumnLabel, Err: err}
		}
		src, err := transform.New(c.Transformation, q)
		if err != nil {
			return nil, &ConfigurationError{Column: c.ColumnLabel, Err: err}
		}
		fields = append(fields, Field{Question: q, Source: src, Target: c.Target})
	}
	return fields, nil
}

// AddFields binds every field to r in order, stopping at the first error.
func (r *Runner) AddFields(fields []Field) error {
	for _, f := range fields {
		if err := r.AddField(f); err != nil {
			return err
		}
	}
	return nil
}
