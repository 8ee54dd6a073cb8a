package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sat-prep/backend/internal/models"
)

type Kind string

const (
	KindSingleChoice Kind = "single_choice"
	KindMultiChoice  Kind = "multi_choice"
	KindFreeText     Kind = "free_text"
)

// AnswerKey is the resolved, already-parsed answer key of a version. It is
// one of SingleChoice, MultiChoice or FreeText.
type AnswerKey interface {
	Kind() Kind
}

type SingleChoice struct {
	OptionID string
}

func (SingleChoice) Kind() Kind { return KindSingleChoice }

type MultiChoice struct {
	OptionIDs []string
}

func (MultiChoice) Kind() Kind { return KindMultiChoice }

func (m MultiChoice) Contains(id string) bool {
	for _, o := range m.OptionIDs {
		if o == id {
			return true
		}
	}
	return false
}

// FreeText holds every accepted variant, in stored order.
type FreeText struct {
	Accepted []string
}

func (FreeText) Kind() Kind { return KindFreeText }

// ResolveKey turns a stored answer_keys row into an AnswerKey for the given
// question type. A nil row means the version has no key.
func ResolveKey(qt models.QuestionType, row *models.AnswerKeyRow) (AnswerKey, error) {
	switch qt {
	case models.QuestionTypeMCQ, models.QuestionTypeSPR:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, qt)
	}
	if row == nil {
		return nil, ErrMissingAnswerKey
	}

	if qt == models.QuestionTypeSPR {
		if row.CorrectText == nil || strings.TrimSpace(*row.CorrectText) == "" {
			return nil, ErrMissingAnswerKey
		}
		// An empty array resolves to a key nothing matches.
		return FreeText{Accepted: AcceptedAnswers(*row.CorrectText)}, nil
	}

	if row.AnswerType != nil && *row.AnswerType == models.AnswerTypeMultipleChoice {
		var ids []string
		if row.CorrectOptionIDs != nil {
			ids = parseOptionIDs(*row.CorrectOptionIDs)
		}
		if len(ids) == 0 {
			return nil, ErrMissingAnswerKey
		}
		return MultiChoice{OptionIDs: ids}, nil
	}

	if row.CorrectOptionID == nil || *row.CorrectOptionID == "" {
		return nil, ErrMissingAnswerKey
	}
	return SingleChoice{OptionID: *row.CorrectOptionID}, nil
}

// AcceptedAnswers coerces a stored correct_text value into the list of
// accepted answers. Text that looks like a JSON array is parsed; if parsing
// fails the whole string is one literal answer.
func AcceptedAnswers(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		if list, ok := decodeStringList(trimmed); ok {
			return list
		}
	}
	return []string{raw}
}

func parseOptionIDs(raw string) []string {
	list, ok := decodeStringList(strings.TrimSpace(raw))
	if !ok {
		return nil
	}
	out := list[:0]
	for _, id := range list {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// decodeStringList decodes a JSON array whose elements are strings or
// numbers. Numbers keep their literal text, so "[11, -7]" yields "11", "-7".
func decodeStringList(s string) ([]string, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case json.Number:
			out = append(out, v.String())
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, true
}
