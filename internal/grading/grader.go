package grading

import (
	"fmt"
	"strings"
)

// Submission is what the user sent. Only the field matching the key kind is
// consulted.
type Submission struct {
	SelectedOptionID string
	ResponseText     string
}

// Grade compares a submission against a resolved key. It is deterministic
// and has no side effects.
func Grade(key AnswerKey, sub Submission) (bool, error) {
	switch k := key.(type) {
	case SingleChoice:
		if sub.SelectedOptionID == "" {
			return false, ErrMissingSelection
		}
		return sub.SelectedOptionID == k.OptionID, nil

	case MultiChoice:
		if sub.SelectedOptionID == "" {
			return false, ErrMissingSelection
		}
		return k.Contains(sub.SelectedOptionID), nil

	case FreeText:
		if strings.TrimSpace(sub.ResponseText) == "" {
			return false, ErrMissingResponse
		}
		got := Normalize(sub.ResponseText)
		for _, accepted := range k.Accepted {
			if got == Normalize(accepted) {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("%w: key %T", ErrUnsupportedType, key)
	}
}

// Feedback exposes the parts of a key the client renders after answering.
func Feedback(key AnswerKey) (optionID *string, optionIDs []string, text []string) {
	switch k := key.(type) {
	case SingleChoice:
		id := k.OptionID
		return &id, nil, nil
	case MultiChoice:
		return nil, k.OptionIDs, nil
	case FreeText:
		return nil, nil, k.Accepted
	}
	return nil, nil, nil
}
