package schema

import (
	"slices"
	"sort"
)

// Section is one scale of the student experience questionnaire. Every
// attribute holds a small ordinal answer and may be null.
type Section struct {
	Model      string
	TableName  string
	Attributes []string
}

// Table renders the section as a table keyed by its questionnaire.
func (s Section) Table() Table {
	cols := make([]Column, 0, len(s.Attributes)+1)
	cols = append(cols, Column{Name: QuestionnaireKey, Type: Integer, NotNull: true, References: QuestionnaireTable})
	for _, a := range s.Attributes {
		cols = append(cols, Column{Name: a, Type: Integer})
	}
	return Table{Name: s.TableName, Columns: cols, Unique: []string{QuestionnaireKey}}
}

// HasAttribute reports whether attr is a column of the section.
func (s Section) HasAttribute(attr string) bool {
	return slices.Contains(s.Attributes, attr)
}

var sections = []Section{
	{
		Model:     "SupportiveSocialEnvironmentScale",
		TableName: "student_experience_questionnaire_social_scale",
		Attributes: []string{
			"kids_friendly_with_each_other",
			"does_unwanted_teasing",
			"kids_treat_each_other_respect",
			"have_good_friends",
			"other_kids_help",
			"other_kids_listen_to_you",
		},
	},
	{
		Model:      "EnjoymentEngagementScale",
		TableName:  "student_experience_questionnaire_enjoyment_scale",
		Attributes: []string{"you_like_coming_here", "have_fun_here", "feel_bored", "find_things_to_do"},
	},
	{
		Model:      "FeelChallengedScale",
		TableName:  "student_experience_questionnaire_challenge_scale",
		Attributes: []string{"learn_new_things", "feel_challenged", "do_new_things"},
	},
	{
		Model:     "SupportiveAdultScale",
		TableName: "student_experience_questionnaire_supportive_adult_scale",
		Attributes: []string{
			"adult_interested_in_think",
			"adult_can_talk_when_upset",
			"adult_helps_with_problems",
			"adult_you_respect",
		},
	},
	{
		Model:     "ReaderScale",
		TableName: "student_experience_questionnaire_reader_scale",
		Attributes: []string{
			"like_to_read_at_home",
			"like_to_read_at_school",
			"like_to_read_after_school_program",
			"good_at_reading",
			"like_to_give_new_books_try",
		},
	},
	{
		Model:     "MathScale",
		TableName: "student_experience_questionnaire_math_scale",
		Attributes: []string{
			"like_to_learn_new_math",
			"like_to_do_math_at_school",
			"like_to_do_math_at_after_school_program",
			"math_is_something_good_at",
			"interested_in_math",
			"like_to_try_new_math_problems",
		},
	},
	// Asked on the spring survey only; fall rows stay null.
	{
		Model:     "RetrospectiveQuestionnaire",
		TableName: "student_experience_questionnaire_retrospective",
		Attributes: []string{
			"coming_to_this_program_helped_read_more_often",
			"coming_helped_math",
			"coming_helped_homework",
			"coming_helped_try_harder_in_school",
			"coming_helped_do_better_in_school",
			"be_successful_in_high_school",
			"graduated_from_high_school",
			"go_to_college",
		},
	},
}

// Sections returns the questionnaire sections.
func Sections() []Section { return slices.Clone(sections) }

// SectionByModel returns the section with the given model name.
func SectionByModel(model string) (Section, bool) {
	for _, s := range sections {
		if s.Model == model {
			return s, true
		}
	}
	return Section{}, false
}

// Models returns the section model names, sorted.
func Models() []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Model
	}
	sort.Strings(out)
	return out
}
