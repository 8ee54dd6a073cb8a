package questions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sat-prep/backend/internal/models"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ── Versions & Keys ─────────────────────────────────────

// ResolveVersion returns the current version of a question, falling back to
// the newest version when none is flagged current.
func (s *Store) ResolveVersion(ctx context.Context, questionID string) (*models.QuestionVersion, error) {
	var v models.QuestionVersion
	var qt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question_id, question_type, stimulus_html, stem_html, rationale_html, is_current, created_at
		 FROM question_versions
		 WHERE question_id = $1
		 ORDER BY is_current DESC, created_at DESC, id DESC
		 LIMIT 1`,
		questionID,
	).Scan(&v.ID, &v.QuestionID, &qt, &v.StimulusHTML, &v.StemHTML, &v.RationaleHTML, &v.IsCurrent, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve version: %w", err)
	}
	v.QuestionType = models.QuestionType(qt)
	return &v, nil
}

// AnswerKeyRow returns the stored key of a version, or nil when it has none.
func (s *Store) AnswerKeyRow(ctx context.Context, versionID string) (*models.AnswerKeyRow, error) {
	k := models.AnswerKeyRow{VersionID: versionID}
	err := s.db.QueryRowContext(ctx,
		`SELECT answer_type, correct_option_id, correct_option_ids, correct_text
		 FROM answer_keys WHERE version_id = $1`,
		versionID,
	).Scan(&k.AnswerType, &k.CorrectOptionID, &k.CorrectOptionIDs, &k.CorrectText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	return &k, nil
}

func (s *Store) Options(ctx context.Context, versionID string) ([]models.AnswerOption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version_id, ordinal, label, content_html
		 FROM answer_options WHERE version_id = $1
		 ORDER BY ordinal, id`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	options := []models.AnswerOption{}
	for rows.Next() {
		var o models.AnswerOption
		if err := rows.Scan(&o.ID, &o.VersionID, &o.Ordinal, &o.Label, &o.ContentHTML); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

func (s *Store) Taxonomy(ctx context.Context, questionID string) (*models.Taxonomy, error) {
	var t models.Taxonomy
	err := s.db.QueryRowContext(ctx,
		`SELECT domain_name, skill_name, difficulty, score_band
		 FROM question_taxonomy WHERE question_id = $1`,
		questionID,
	).Scan(&t.DomainName, &t.SkillName, &t.Difficulty, &t.ScoreBand)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get taxonomy: %w", err)
	}
	return &t, nil
}

func (s *Store) QuestionExists(ctx context.Context, questionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE id = $1`, questionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check question: %w", err)
	}
	return n > 0, nil
}

// ── Status ──────────────────────────────────────────────

const statusColumns = `user_id, question_id, attempts_count, correct_attempts_count, last_is_correct,
		last_selected_option_id, last_response_text, marked_for_review, is_done, is_broken,
		notes, last_attempted_at, updated_at`

func (s *Store) Status(ctx context.Context, userID, questionID string) (*models.QuestionStatus, error) {
	var st models.QuestionStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM question_status WHERE user_id = $1 AND question_id = $2`,
		userID, questionID,
	).Scan(&st.UserID, &st.QuestionID, &st.AttemptsCount, &st.CorrectAttemptsCount, &st.LastIsCorrect,
		&st.LastSelectedOptionID, &st.LastResponseText, &st.MarkedForReview, &st.IsDone, &st.IsBroken,
		&st.Notes, &st.LastAttemptedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &st, nil
}

// AttemptInput is one graded submission ready to be persisted. Exactly one
// of SelectedOptionID and ResponseText is set, matching the question type.
type AttemptInput struct {
	UserID           string
	QuestionID       string
	SelectedOptionID *string
	ResponseText     *string
	IsCorrect        bool
	TimeSpentMs      *int64
}

// RecordAttempt appends the attempt and folds it into the status row in one
// transaction. The counters are incremented by the upsert itself, so
// concurrent submissions for the same pair never lose an increment.
func (s *Store) RecordAttempt(ctx context.Context, in AttemptInput) (attempts, correct int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, question_id, selected_option_id, response_text, is_correct, time_spent_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), in.UserID, in.QuestionID, in.SelectedOptionID, in.ResponseText, in.IsCorrect, in.TimeSpentMs, now,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("insert attempt: %w", err)
	}

	correctInc := 0
	if in.IsCorrect {
		correctInc = 1
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO question_status
		 (user_id, question_id, attempts_count, correct_attempts_count, last_is_correct,
		  last_selected_option_id, last_response_text, marked_for_review, is_done, is_broken,
		  last_attempted_at, created_at, updated_at)
		 VALUES ($1, $2, 1, $3, $4, $5, $6, FALSE, TRUE, FALSE, $7, $7, $7)
		 ON CONFLICT (user_id, question_id) DO UPDATE SET
		   attempts_count = question_status.attempts_count + 1,
		   correct_attempts_count = question_status.correct_attempts_count + EXCLUDED.correct_attempts_count,
		   last_is_correct = EXCLUDED.last_is_correct,
		   last_selected_option_id = EXCLUDED.last_selected_option_id,
		   last_response_text = EXCLUDED.last_response_text,
		   is_done = TRUE,
		   last_attempted_at = EXCLUDED.last_attempted_at,
		   updated_at = EXCLUDED.updated_at
		 RETURNING attempts_count, correct_attempts_count`,
		in.UserID, in.QuestionID, correctInc, in.IsCorrect, in.SelectedOptionID, in.ResponseText, now,
	).Scan(&attempts, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("upsert status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit attempt: %w", err)
	}
	return attempts, correct, nil
}

// PatchStatus upserts only the patched columns. Counters and last-attempt
// fields are never touched here.
func (s *Store) PatchStatus(ctx context.Context, userID, questionID string, p models.StatusPatch) error {
	if p.Empty() {
		return nil
	}

	marked, done, broken := false, false, false
	var sets []string
	if p.MarkedForReview != nil {
		marked = *p.MarkedForReview
		sets = append(sets, "marked_for_review = EXCLUDED.marked_for_review")
	}
	if p.IsDone != nil {
		done = *p.IsDone
		sets = append(sets, "is_done = EXCLUDED.is_done")
	}
	if p.IsBroken != nil {
		broken = *p.IsBroken
		sets = append(sets, "is_broken = EXCLUDED.is_broken")
	}
	if p.NotesSet {
		sets = append(sets, "notes = EXCLUDED.notes")
	}
	sets = append(sets, "updated_at = EXCLUDED.updated_at")

	now := s.now()
	query := `INSERT INTO question_status
		 (user_id, question_id, attempts_count, correct_attempts_count, marked_for_review, is_done, is_broken, notes, created_at, updated_at)
		 VALUES ($1, $2, 0, 0, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (user_id, question_id) DO UPDATE SET ` + strings.Join(sets, ", ")

	if _, err := s.db.ExecContext(ctx, query, userID, questionID, marked, done, broken, p.Notes, now); err != nil {
		return fmt.Errorf("patch status: %w", err)
	}
	return nil
}

// ── Listing ─────────────────────────────────────────────

// ListQuestions returns one page of the filtered, sorted bank, the total
// size of the filtered set, and the id of its first question.
func (s *Store) ListQuestions(ctx context.Context, viewer string, f ListFilter) ([]models.QuestionListItem, int, *string, error) {
	q := buildListQuery(viewer, f)

	limit := q.arg(f.PageSize)
	offset := q.arg(f.Offset())
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, v.question_type, t.domain_name, t.skill_name, t.difficulty, t.score_band,
		        s.user_id, s.attempts_count, s.correct_attempts_count, s.last_is_correct,
		        s.last_selected_option_id, s.last_response_text, s.marked_for_review, s.is_done,
		        s.is_broken, s.notes, s.last_attempted_at, s.updated_at
		 `+q.from+q.whereClause()+`
		 ORDER BY `+q.order+`
		 LIMIT `+limit+` OFFSET `+offset,
		q.args...,
	)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("list questions: %w", err)
	}

	items := []models.QuestionListItem{}
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			rows.Close()
			return nil, 0, nil, err
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, nil, fmt.Errorf("list questions: %w", err)
	}

	// Count and first id share the filter args but not LIMIT/OFFSET.
	base := buildListQuery(viewer, f)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+base.from+base.whereClause(), base.args...).Scan(&total); err != nil {
		return nil, 0, nil, fmt.Errorf("count questions: %w", err)
	}

	var first *string
	if f.Page == 1 && len(items) > 0 {
		id := items[0].QuestionID
		first = &id
	} else if total > 0 {
		var id string
		err := s.db.QueryRowContext(ctx,
			`SELECT q.id `+base.from+base.whereClause()+` ORDER BY `+base.order+` LIMIT 1`,
			base.args...,
		).Scan(&id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil, fmt.Errorf("first question: %w", err)
		}
		if err == nil {
			first = &id
		}
	}

	return items, total, first, nil
}

func scanListItem(rows *sql.Rows) (models.QuestionListItem, error) {
	var (
		item       models.QuestionListItem
		qt         sql.NullString
		statusUser sql.NullString
		attempts   sql.NullInt64
		correct    sql.NullInt64
		marked     sql.NullBool
		done       sql.NullBool
		broken     sql.NullBool
		updatedAt  sql.NullTime
		st         models.QuestionStatus
	)
	if err := rows.Scan(&item.QuestionID, &qt, &item.Taxonomy.DomainName, &item.Taxonomy.SkillName,
		&item.Taxonomy.Difficulty, &item.Taxonomy.ScoreBand,
		&statusUser, &attempts, &correct, &st.LastIsCorrect,
		&st.LastSelectedOptionID, &st.LastResponseText, &marked, &done,
		&broken, &st.Notes, &st.LastAttemptedAt, &updatedAt); err != nil {
		return item, fmt.Errorf("scan question: %w", err)
	}
	if qt.Valid {
		t := models.QuestionType(qt.String)
		item.QuestionType = &t
	}
	if statusUser.Valid {
		st.UserID = statusUser.String
		st.QuestionID = item.QuestionID
		st.AttemptsCount = int(attempts.Int64)
		st.CorrectAttemptsCount = int(correct.Int64)
		st.MarkedForReview = marked.Bool
		st.IsDone = done.Bool
		st.IsBroken = broken.Bool
		st.UpdatedAt = updatedAt.Time
		item.Status = &st
	}
	return item, nil
}

// Neighbors finds the ids just before and after questionID in the filtered,
// sorted bank. Both are nil when the question is not in the set.
func (s *Store) Neighbors(ctx context.Context, viewer, questionID string, f ListFilter) (*models.NeighborsResponse, error) {
	q := buildListQuery(viewer, f)
	target := q.arg(questionID)

	var resp models.NeighborsResponse
	err := s.db.QueryRowContext(ctx,
		`SELECT w.prev_id, w.next_id FROM (
		   SELECT q.id AS id,
		          LAG(q.id) OVER (ORDER BY `+q.order+`) AS prev_id,
		          LEAD(q.id) OVER (ORDER BY `+q.order+`) AS next_id
		   `+q.from+q.whereClause()+`
		 ) w
		 WHERE w.id = `+target,
		q.args...,
	).Scan(&resp.PrevID, &resp.NextID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.NeighborsResponse{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	return &resp, nil
}

// ── Dashboard & Review ──────────────────────────────────

// ProgressRows returns the user's completed questions with taxonomy, most
// recently attempted first. Rows marked done without an attempt carry no
// verdict and are left out.
func (s *Store) ProgressRows(ctx context.Context, userID string) ([]models.ProgressRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.question_id, t.domain_name, t.skill_name, t.difficulty, t.score_band,
		        s.last_is_correct, s.attempts_count, s.last_attempted_at
		 FROM question_status s
		 JOIN question_taxonomy t ON t.question_id = s.question_id
		 WHERE s.user_id = $1 AND s.is_done = TRUE AND s.attempts_count > 0
		 ORDER BY s.last_attempted_at DESC NULLS LAST, s.question_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("progress rows: %w", err)
	}
	defer rows.Close()

	var out []models.ProgressRow
	for rows.Next() {
		var r models.ProgressRow
		if err := rows.Scan(&r.QuestionID, &r.DomainName, &r.SkillName, &r.Difficulty, &r.ScoreBand,
			&r.LastIsCorrect, &r.AttemptsCount, &r.LastAttemptedAt); err != nil {
			return nil, fmt.Errorf("scan progress row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *Store) CountMarked(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM question_status WHERE user_id = $1 AND marked_for_review = TRUE`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count marked: %w", err)
	}
	return n, nil
}

// UserName returns the account name, or "" when the user has no account row.
func (s *Store) UserName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user name: %w", err)
	}
	return name, nil
}

// ReviewItems lists questions the user marked for review, newest update
// first.
func (s *Store) ReviewItems(ctx context.Context, userID string, limit, offset int) ([]models.ReviewItem, int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.question_id, v.question_type, t.domain_name, t.skill_name, t.difficulty, t.score_band,
		        s.attempts_count, s.correct_attempts_count, s.last_is_correct, s.notes, s.updated_at
		 FROM question_status s
		 JOIN questions q ON q.id = s.question_id
		 JOIN question_taxonomy t ON t.question_id = s.question_id
		 `+resolvedVersionJoin+`
		 WHERE s.user_id = $1 AND s.marked_for_review = TRUE
		 ORDER BY s.updated_at DESC, s.question_id ASC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("review items: %w", err)
	}

	items := []models.ReviewItem{}
	for rows.Next() {
		var it models.ReviewItem
		var qt sql.NullString
		if err := rows.Scan(&it.QuestionID, &qt, &it.Taxonomy.DomainName, &it.Taxonomy.SkillName,
			&it.Taxonomy.Difficulty, &it.Taxonomy.ScoreBand,
			&it.AttemptsCount, &it.CorrectAttemptsCount, &it.LastIsCorrect, &it.Notes, &it.UpdatedAt); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan review item: %w", err)
		}
		if qt.Valid {
			t := models.QuestionType(qt.String)
			it.QuestionType = &t
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("review items: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM question_status s
		 JOIN questions q ON q.id = s.question_id
		 JOIN question_taxonomy t ON t.question_id = s.question_id
		 WHERE s.user_id = $1 AND s.marked_for_review = TRUE`,
		userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count review items: %w", err)
	}
	return items, total, nil
}

// ── Filters ─────────────────────────────────────────────

func (s *Store) Domains(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT domain_name FROM question_taxonomy ORDER BY domain_name`)
}

func (s *Store) Skills(ctx context.Context, domain string) ([]string, error) {
	return s.distinct(ctx,
		`SELECT DISTINCT skill_name FROM question_taxonomy WHERE domain_name = $1 ORDER BY skill_name`,
		domain)
}

func (s *Store) distinct(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct values: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
