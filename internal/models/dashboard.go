package models

import "time"

// ProgressRow is one completed question for a user, joined with taxonomy.
type ProgressRow struct {
	QuestionID      string     `json:"question_id"`
	DomainName      string     `json:"domain_name"`
	SkillName       string     `json:"skill_name"`
	Difficulty      *int       `json:"difficulty,omitempty"`
	ScoreBand       *int       `json:"score_band,omitempty"`
	LastIsCorrect   *bool      `json:"last_is_correct"`
	AttemptsCount   int        `json:"attempts_count"`
	LastAttemptedAt *time.Time `json:"last_attempted_at"`
}

type AccuracyStat struct {
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

type SkillStat struct {
	SkillName string `json:"skill_name"`
	AccuracyStat
}

type DomainStat struct {
	DomainName string `json:"domain_name"`
	AccuracyStat
	Skills []SkillStat `json:"skills"`
}

type ProgressBreakdown struct {
	Overall AccuracyStat `json:"overall"`
	Domains []DomainStat `json:"domains"`
}

type DashboardResponse struct {
	DisplayName    string        `json:"display_name,omitempty"`
	TotalQuestions int           `json:"total_questions"`
	MarkedCount    int           `json:"marked_for_review"`
	Overall        AccuracyStat  `json:"overall"`
	Domains        []DomainStat  `json:"domains"`
	RecentActivity []ProgressRow `json:"recent_activity"`
}

type ReviewItem struct {
	QuestionID           string        `json:"question_id"`
	QuestionType         *QuestionType `json:"question_type"`
	Taxonomy             Taxonomy      `json:"taxonomy"`
	AttemptsCount        int           `json:"attempts_count"`
	CorrectAttemptsCount int           `json:"correct_attempts_count"`
	LastIsCorrect        *bool         `json:"last_is_correct"`
	Notes                *string       `json:"notes"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

type ReviewListResponse struct {
	Items    []ReviewItem `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
