package models

import (
	"encoding/json"
	"time"
)

type Attempt struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	QuestionID       string    `json:"question_id"`
	SelectedOptionID *string   `json:"selected_option_id"`
	ResponseText     *string   `json:"response_text"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentMs      *int64    `json:"time_spent_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// ── Request Types ────────────────────────────────────────

type SubmitAttemptRequest struct {
	QuestionID       string     `json:"question_id"`
	SelectedOptionID FlexString `json:"selected_option_id"`
	ResponseText     string     `json:"response_text"`
	TimeSpentMs      FlexMillis `json:"time_spent_ms"`
}

// StatusPatchRequest keeps the patch raw so unknown keys can be dropped and
// known keys type-checked individually.
type StatusPatchRequest struct {
	QuestionID string                     `json:"question_id"`
	Patch      map[string]json.RawMessage `json:"patch"`
}

// StatusPatch is the whitelisted subset of a status patch. Nil means "leave
// the column alone".
type StatusPatch struct {
	MarkedForReview *bool
	IsDone          *bool
	IsBroken        *bool
	Notes           *string
	NotesSet        bool
}

func (p StatusPatch) Empty() bool {
	return p.MarkedForReview == nil && p.IsDone == nil && p.IsBroken == nil && !p.NotesSet
}

// ── Response Types ────────────────────────────────────────

type SubmitAttemptResponse struct {
	OK                   bool     `json:"ok"`
	IsCorrect            bool     `json:"is_correct"`
	AttemptsCount        int      `json:"attempts_count"`
	CorrectAttemptsCount int      `json:"correct_attempts_count"`
	CorrectOptionID      *string  `json:"correct_option_id,omitempty"`
	CorrectOptionIDs     []string `json:"correct_option_ids,omitempty"`
	CorrectText          *string  `json:"correct_text,omitempty"`
	AcceptedAnswers      []string `json:"accepted_answers,omitempty"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
