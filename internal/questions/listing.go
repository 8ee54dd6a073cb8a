package questions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sat-prep/backend/internal/models"
)

const (
	defaultPage     = 1
	defaultPageSize = 25
	maxPageSize     = 100
)

// Status buckets. One at a time, never combined.
const (
	StatusUnattempted = "unattempted"
	StatusDone        = "done"
	StatusMarked      = "marked"
	StatusCorrect     = "correct"
	StatusIncorrect   = "incorrect"
)

// Sort modes.
const (
	SortDifficulty = "difficulty"
	SortScoreBand  = "score_band"
	SortTopic      = "topic"
)

var statusConditions = map[string]string{
	StatusUnattempted: "(s.user_id IS NULL OR s.is_done = FALSE)",
	StatusDone:        "s.is_done = TRUE",
	StatusMarked:      "s.marked_for_review = TRUE",
	StatusCorrect:     "s.last_is_correct = TRUE",
	StatusIncorrect:   "s.last_is_correct = FALSE",
}

// Every mode ends in q.id so equal keys still page deterministically.
var sortOrders = map[string]string{
	SortDifficulty: "t.difficulty ASC NULLS LAST, t.score_band ASC NULLS LAST, t.skill_name ASC, q.id ASC",
	SortScoreBand:  "t.score_band ASC NULLS LAST, t.difficulty ASC NULLS LAST, t.skill_name ASC, q.id ASC",
	SortTopic:      "t.skill_name ASC, t.difficulty ASC NULLS LAST, t.score_band ASC NULLS LAST, q.id ASC",
}

// ListFilter is the question bank query shared by the list and neighbor
// endpoints. Zero values mean "no constraint".
type ListFilter struct {
	DomainName   string
	SkillName    string
	Difficulty   *int
	ScoreBand    *int
	QuestionType string
	Status       string
	Search       string
	Sort         string
	Page         int
	PageSize     int
}

// Validate fills defaults and rejects unknown modes.
func (f *ListFilter) Validate() error {
	if f.Page == 0 {
		f.Page = defaultPage
	}
	if f.PageSize == 0 {
		f.PageSize = defaultPageSize
	}
	if f.Page < 1 {
		return fmt.Errorf("%w: page must be at least 1", ErrInvalidInput)
	}
	if f.PageSize < 1 {
		return fmt.Errorf("%w: page_size must be at least 1", ErrInvalidInput)
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.Sort == "" {
		f.Sort = SortDifficulty
	}
	if _, ok := sortOrders[f.Sort]; !ok {
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, f.Sort)
	}
	if f.Status != "" {
		if _, ok := statusConditions[f.Status]; !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
		}
	}
	if f.QuestionType != "" && !models.ValidQuestionTypes[models.QuestionType(f.QuestionType)] {
		return fmt.Errorf("%w: unknown question_type %q", ErrInvalidInput, f.QuestionType)
	}
	return nil
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// listQuery accumulates the shared FROM/WHERE of a bank query and its
// positional arguments.
type listQuery struct {
	from  string
	where []string
	args  []interface{}
	order string
}

func (q *listQuery) arg(v interface{}) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *listQuery) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// resolvedVersionJoin picks the current version, or the newest one when no
// version is flagged current.
const resolvedVersionJoin = `LEFT JOIN question_versions v ON v.id = (
		SELECT v2.id FROM question_versions v2
		WHERE v2.question_id = q.id
		ORDER BY v2.is_current DESC, v2.created_at DESC, v2.id DESC
		LIMIT 1)`

// buildListQuery turns a validated filter into SQL. viewer may be empty, in
// which case the status join matches nothing and the status filter is
// ignored.
func buildListQuery(viewer string, f ListFilter) *listQuery {
	q := &listQuery{}
	q.from = `FROM questions q
		JOIN question_taxonomy t ON t.question_id = q.id
		` + resolvedVersionJoin + `
		LEFT JOIN question_status s ON s.question_id = q.id AND s.user_id = ` + q.arg(viewer)

	if f.DomainName != "" {
		q.where = append(q.where, "t.domain_name = "+q.arg(f.DomainName))
	}
	if f.SkillName != "" {
		q.where = append(q.where, "t.skill_name = "+q.arg(f.SkillName))
	}
	if f.Difficulty != nil {
		q.where = append(q.where, "t.difficulty = "+q.arg(*f.Difficulty))
	}
	if f.ScoreBand != nil {
		q.where = append(q.where, "t.score_band = "+q.arg(*f.ScoreBand))
	}
	if f.QuestionType != "" {
		q.where = append(q.where, "v.question_type = "+q.arg(f.QuestionType))
	}
	if f.Status != "" && viewer != "" {
		q.where = append(q.where, statusConditions[f.Status])
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		p := q.arg("%" + escapeLike(strings.ToLower(term)) + "%")
		q.where = append(q.where, fmt.Sprintf(
			`(LOWER(q.id) LIKE %[1]s ESCAPE '\' OR LOWER(t.skill_name) LIKE %[1]s ESCAPE '\' OR LOWER(COALESCE(v.stem_html, '')) LIKE %[1]s ESCAPE '\')`, p))
	}

	q.order = sortOrders[f.Sort]
	return q
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
