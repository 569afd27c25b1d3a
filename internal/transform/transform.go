// Package transform maps raw survey answers onto numbers.
//
// A transformation wraps exactly one Source and is itself a Source, so chains
// are built by nesting: Scale{Kind: Likert, Inner: column}. Blank upstream
// values pass through every transformation unchanged.
package transform

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rosteretl/internal/excel"
	"rosteretl/internal/textutil"
)

// Source yields the value of one column for a data row.
type Source interface {
	Value(row int) (any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(row int) (any, error)

func (f SourceFunc) Value(row int) (any, error) { return f(row) }

// TransformationError reports an answer outside a transformation's vocabulary.
type TransformationError struct {
	Transform string
	Value     string
	Options   []string
}

func (e *TransformationError) Error() string {
	if len(e.Options) == 0 {
		return fmt.Sprintf("%s: %q is not a valid value", e.Transform, e.Value)
	}
	quoted := make([]string, len(e.Options))
	for i, o := range e.Options {
		quoted[i] = strconv.Quote(o)
	}
	return fmt.Sprintf("%s does not have a key for %q. Valid options are %s.",
		e.Transform, e.Value, strings.Join(quoted, ", "))
}

// ScaleKind selects one of the ordinal answer scales.
type ScaleKind int

const (
	Likert ScaleKind = iota
	InverseLikert
	Agreement
	Expectation
)

type option struct {
	answer string
	value  int
}

// scaleTables holds each kind's answers in ascending order of meaning.
var scaleTables = [...][]option{
	Likert:        {{"no", 1}, {"mostly no", 2}, {"mostly yes", 3}, {"yes", 4}},
	InverseLikert: {{"no", 4}, {"mostly no", 3}, {"mostly yes", 2}, {"yes", 1}},
	Agreement:     {{"don't agree", 1}, {"agree a little", 2}, {"mostly agree", 3}, {"agree a lot", 4}},
	Expectation:   {{"probably won't", 1}, {"probably will", 2}, {"definitely will", 3}},
}

var kindNames = [...]string{
	Likert:        "ScaleTransformation",
	InverseLikert: "InverseScaleTransformation",
	Agreement:     "AgreementTransformation",
	Expectation:   "ExpectationTransformation",
}

func (k ScaleKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "ScaleKind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Options returns the accepted answers of k in table order.
func (k ScaleKind) Options() []string {
	if k < 0 || int(k) >= len(scaleTables) {
		return nil
	}
	t := scaleTables[k]
	out := make([]string, len(t))
	for i, o := range t {
		out[i] = o.answer
	}
	return out
}

// Max is the highest value of the scale.
func (k ScaleKind) Max() int {
	hi := 0
	if k >= 0 && int(k) < len(scaleTables) {
		for _, o := range scaleTables[k] {
			hi = max(hi, o.value)
		}
	}
	return hi
}

func (k ScaleKind) lookup(answer string) (int, bool) {
	if k < 0 || int(k) >= len(scaleTables) {
		return 0, false
	}
	for _, o := range scaleTables[k] {
		if o.answer == answer {
			return o.value, true
		}
	}
	return 0, false
}

// Scale maps a worded answer onto its ordinal value. Answers are compared
// case-insensitively with surrounding and repeated spaces ignored.
type Scale struct {
	Kind  ScaleKind
	Inner Source
}

func (s Scale) Value(row int) (any, error) {
	v, err := s.Inner.Value(row)
	if err != nil || excel.IsBlank(v) {
		return v, err
	}
	key := normalizeAnswer(excel.CellString(v))
	n, ok := s.Kind.lookup(key)
	if !ok {
		return nil, &TransformationError{Transform: s.Kind.String(), Value: key, Options: s.Kind.Options()}
	}
	return n, nil
}

var quotes = strings.NewReplacer("\u2019", "'", "\u2018", "'")

func normalizeAnswer(s string) string {
	return textutil.Fold(textutil.CollapseWhitespace(quotes.Replace(s)))
}

var leadingDigits = regexp.MustCompile(`^\d+`)

// GradeLevel reads the leading integer of an ordinal grade such as "10th".
// Numeric cells are returned as int.
type GradeLevel struct {
	Inner Source
}

func (g GradeLevel) Value(row int) (any, error) {
	v, err := g.Inner.Value(row)
	if err != nil || excel.IsBlank(v) {
		return v, err
	}
	switch x := v.(type) {
	case int64:
		return int(x), nil
	case int:
		return x, nil
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	}
	s := strings.TrimSpace(excel.CellString(v))
	digits := leadingDigits.FindString(s)
	if digits == "" {
		return nil, &TransformationError{Transform: "GradeStringToIntTransformation", Value: s}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil, &TransformationError{Transform: "GradeStringToIntTransformation", Value: s}
	}
	return n, nil
}

// ErrUnknownTransformation is returned by New for an unregistered name.
var ErrUnknownTransformation = errors.New("unknown transformation")

type constructor func(Source) Source

func scale(k ScaleKind) constructor {
	return func(inner Source) Source { return Scale{Kind: k, Inner: inner} }
}

var registry = map[string]constructor{
	"scaletransformation":            scale(Likert),
	"scale":                          scale(Likert),
	"likert":                         scale(Likert),
	"inversescaletransformation":     scale(InverseLikert),
	"inverse":                        scale(InverseLikert),
	"inverselikert":                  scale(InverseLikert),
	"agreementtransformation":        scale(Agreement),
	"agreement":                      scale(Agreement),
	"expectationtransformation":      scale(Expectation),
	"expectation":                    scale(Expectation),
	"gradestringtointtransformation": func(inner Source) Source { return GradeLevel{Inner: inner} },
	"grade":                          func(inner Source) Source { return GradeLevel{Inner: inner} },
}

// New wraps inner with the transformation registered under name, compared
// case-insensitively. An empty name returns inner unchanged.
func New(name string, inner Source) (Source, error) {
	if strings.TrimSpace(name) == "" {
		return inner, nil
	}
	c, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTransformation, name)
	}
	return c(inner), nil
}

// Known reports whether name is a registered transformation.
func Known(name string) bool {
	_, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return ok || strings.TrimSpace(name) == ""
}
