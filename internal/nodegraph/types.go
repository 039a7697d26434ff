package nodegraph

import "strings"

// Type discriminates the node variants stored in the nodes table.
type Type string

const (
	CategoryDescription    Type = "category_description"
	TextQuestion           Type = "text_question"
	SingleChoiceQuestion   Type = "single_choice_question"
	MultipleChoiceQuestion Type = "multiple_choice_question"
	ScaleQuestion          Type = "scale_question"
	ImageQuestion          Type = "image_question"
	Result                 Type = "result"
	WeeklyRecipe           Type = "weekly_recipe"
	Video                  Type = "video"
	TextNode               Type = "text_node"
	Image                  Type = "image"
)

var allTypes = []Type{
	CategoryDescription,
	TextQuestion,
	SingleChoiceQuestion,
	MultipleChoiceQuestion,
	ScaleQuestion,
	ImageQuestion,
	Result,
	WeeklyRecipe,
	Video,
	TextNode,
	Image,
}

func (t Type) Valid() bool {
	for _, candidate := range allTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsQuestion reports whether the node collects an answer.
func (t Type) IsQuestion() bool {
	switch t {
	case TextQuestion, SingleChoiceQuestion, MultipleChoiceQuestion, ScaleQuestion, ImageQuestion:
		return true
	}
	return false
}

// HasChoices reports whether the node carries an options list.
func (t Type) HasChoices() bool {
	return t == SingleChoiceQuestion || t == MultipleChoiceQuestion
}

// HasMedia reports whether the node may reference an uploaded file.
func (t Type) HasMedia() bool {
	switch t {
	case ImageQuestion, WeeklyRecipe, Video, TextNode, Image:
		return true
	}
	return false
}

// Trainable reports whether the type may appear in a training sequence.
// Description nodes only act as template roots.
func (t Type) Trainable() bool {
	return t.Valid() && t != CategoryDescription
}

// ParseType accepts a type name in any case, e.g. "TEXT_NODE".
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}
