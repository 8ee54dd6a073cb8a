package models

import "time"

// ── Export/Import Types ──────────────────────────────────

type ExportEnvelope struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Questions  []ExportQuestion `json:"questions"`
}

type ExportQuestion struct {
	QuestionID    string         `json:"question_id"`
	DomainName    string         `json:"domain_name"`
	SkillName     string         `json:"skill_name"`
	Difficulty    *int           `json:"difficulty"`
	ScoreBand     *int           `json:"score_band"`
	QuestionType  QuestionType   `json:"question_type"`
	StimulusHTML  string         `json:"stimulus_html,omitempty"`
	StemHTML      string         `json:"stem_html"`
	RationaleHTML string         `json:"rationale_html,omitempty"`
	Options       []ExportOption `json:"options,omitempty"`
	Key           *ExportKey     `json:"key"`
}

type ExportOption struct {
	ID          string `json:"id,omitempty"`
	Label       string `json:"label"`
	ContentHTML string `json:"content_html"`
}

// ExportKey mirrors answer_keys. Authors may reference the correct option by
// label instead of id; the importer resolves it.
type ExportKey struct {
	AnswerType         *string  `json:"answer_type,omitempty"`
	CorrectOptionID    string   `json:"correct_option_id,omitempty"`
	CorrectOptionLabel string   `json:"correct_option_label,omitempty"`
	CorrectOptionIDs   []string `json:"correct_option_ids,omitempty"`
	CorrectText        *string  `json:"correct_text,omitempty"`
}

type ImportResult struct {
	TotalInPayload int `json:"total_in_payload"`
	Created        int `json:"created"`
	Versioned      int `json:"versioned"`
}
