package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type QuestionType string

const (
	QuestionTypeMCQ QuestionType = "mcq"
	QuestionTypeSPR QuestionType = "spr"
)

var ValidQuestionTypes = map[QuestionType]bool{
	QuestionTypeMCQ: true,
	QuestionTypeSPR: true,
}

const (
	AnswerTypeSingleChoice   = "single_choice"
	AnswerTypeMultipleChoice = "multiple_choice"
)

type Taxonomy struct {
	DomainName string `json:"domain_name"`
	SkillName  string `json:"skill_name"`
	Difficulty *int   `json:"difficulty,omitempty"`
	ScoreBand  *int   `json:"score_band,omitempty"`
}

type QuestionVersion struct {
	ID            string       `json:"id"`
	QuestionID    string       `json:"question_id"`
	QuestionType  QuestionType `json:"question_type"`
	StimulusHTML  *string      `json:"stimulus_html,omitempty"`
	StemHTML      *string      `json:"stem_html,omitempty"`
	RationaleHTML *string      `json:"rationale_html,omitempty"`
	IsCurrent     bool         `json:"is_current"`
	CreatedAt     time.Time    `json:"created_at"`
}

type AnswerOption struct {
	ID          string `json:"id"`
	VersionID   string `json:"-"`
	Ordinal     int    `json:"ordinal"`
	Label       string `json:"label"`
	ContentHTML string `json:"content_html"`
}

// AnswerKeyRow is the answer_keys row as stored. Which fields are populated
// depends on the version's question type and answer_type.
type AnswerKeyRow struct {
	VersionID        string
	AnswerType       *string
	CorrectOptionID  *string
	CorrectOptionIDs *string
	CorrectText      *string
}

// QuestionStatus is the per-user rollup for one question.
type QuestionStatus struct {
	UserID               string     `json:"-"`
	QuestionID           string     `json:"question_id"`
	AttemptsCount        int        `json:"attempts_count"`
	CorrectAttemptsCount int        `json:"correct_attempts_count"`
	LastIsCorrect        *bool      `json:"last_is_correct"`
	LastSelectedOptionID *string    `json:"last_selected_option_id"`
	LastResponseText     *string    `json:"last_response_text"`
	MarkedForReview      bool       `json:"marked_for_review"`
	IsDone               bool       `json:"is_done"`
	IsBroken             bool       `json:"is_broken"`
	Notes                *string    `json:"notes"`
	LastAttemptedAt      *time.Time `json:"last_attempted_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ── Response Types ────────────────────────────────────────

type QuestionDetail struct {
	QuestionID       string          `json:"question_id"`
	Version          QuestionVersion `json:"version"`
	Options          []AnswerOption  `json:"options"`
	Taxonomy         *Taxonomy       `json:"taxonomy"`
	Status           *QuestionStatus `json:"status"`
	CorrectOptionID  *string         `json:"correct_option_id,omitempty"`
	CorrectOptionIDs []string        `json:"correct_option_ids,omitempty"`
	CorrectText      *string         `json:"correct_text,omitempty"`
	AcceptedAnswers  []string        `json:"accepted_answers,omitempty"`
}

type QuestionListItem struct {
	QuestionID   string          `json:"question_id"`
	QuestionType *QuestionType   `json:"question_type"`
	Taxonomy     Taxonomy        `json:"taxonomy"`
	Status       *QuestionStatus `json:"status,omitempty"`
}

type QuestionListResponse struct {
	Page            int                `json:"page"`
	PageSize        int                `json:"page_size"`
	Total           int                `json:"total"`
	Items           []QuestionListItem `json:"items"`
	FirstQuestionID *string            `json:"first_question_id"`
}

type NeighborsResponse struct {
	PrevID *string `json:"prev_id"`
	NextID *string `json:"next_id"`
}

type FiltersResponse struct {
	Domains []string `json:"domains,omitempty"`
	Domain  string   `json:"domain,omitempty"`
	Skills  []string `json:"skills,omitempty"`
}

// FlexString accepts a JSON string or number and keeps its textual form.
// Option ids arrive as either depending on the client.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// FlexMillis is an elapsed time that tolerates numbers, numeric strings and
// junk. Anything that is not a finite number decodes to nil rather than
// failing the request.
type FlexMillis struct {
	Value *int64
}

func (f *FlexMillis) UnmarshalJSON(data []byte) error {
	f.Value = nil
	data = bytes.TrimSpace(data)
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
	} else {
		raw = string(data)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != v || v > 9e15 || v < -9e15 {
		return nil
	}
	if v < 0 {
		v = 0
	}
	ms := int64(v + 0.5)
	f.Value = &ms
	return nil
}
