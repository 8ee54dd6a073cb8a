package grading

import "errors"

var (
	// ErrMissingAnswerKey marks a data-authoring defect: the version has no
	// usable key. Not retryable.
	ErrMissingAnswerKey = errors.New("missing answer key")
	ErrMissingSelection = errors.New("selected_option_id is required")
	ErrMissingResponse  = errors.New("response_text is required")
	ErrUnsupportedType  = errors.New("unsupported question type")
)
