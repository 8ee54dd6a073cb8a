package questions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sat-prep/backend/internal/models"
)

// ── Export/Import ────────────────────────────────────────

// ImportQuestions writes every question in one transaction. A question id
// already in the bank gets a new current version; the old versions stay but
// lose their current flag.
func (s *Store) ImportQuestions(ctx context.Context, questions []models.ExportQuestion) (*models.ImportResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result := &models.ImportResult{TotalInPayload: len(questions)}
	now := s.now()

	for _, q := range questions {
		questionID := q.QuestionID
		if questionID == "" {
			questionID = uuid.NewString()
		}

		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE id = $1`, questionID).Scan(&existing); err != nil {
			return nil, fmt.Errorf("check existing question: %w", err)
		}

		if existing == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO questions (id, created_at) VALUES ($1, $2)`,
				questionID, now,
			); err != nil {
				return nil, fmt.Errorf("insert import question: %w", err)
			}
			result.Created++
		} else {
			if _, err := tx.ExecContext(ctx,
				`UPDATE question_versions SET is_current = FALSE WHERE question_id = $1`,
				questionID,
			); err != nil {
				return nil, fmt.Errorf("demote versions: %w", err)
			}
			result.Versioned++
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_taxonomy (question_id, domain_name, skill_name, difficulty, score_band)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (question_id) DO UPDATE SET
			   domain_name = EXCLUDED.domain_name,
			   skill_name = EXCLUDED.skill_name,
			   difficulty = EXCLUDED.difficulty,
			   score_band = EXCLUDED.score_band`,
			questionID, q.DomainName, q.SkillName, q.Difficulty, q.ScoreBand,
		); err != nil {
			return nil, fmt.Errorf("upsert taxonomy: %w", err)
		}

		versionID := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_versions (id, question_id, question_type, stimulus_html, stem_html, rationale_html, is_current, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)`,
			versionID, questionID, string(q.QuestionType),
			nullString(q.StimulusHTML), nullString(q.StemHTML), nullString(q.RationaleHTML), now,
		); err != nil {
			return nil, fmt.Errorf("insert import version: %w", err)
		}

		// Option ids are regenerated per version; the key may refer to the
		// payload's ids or to labels.
		optionIDs := make(map[string]string, len(q.Options))
		for i, o := range q.Options {
			id := uuid.NewString()
			if o.ID != "" {
				optionIDs[o.ID] = id
			}
			optionIDs["label:"+o.Label] = id
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO answer_options (id, version_id, ordinal, label, content_html)
				 VALUES ($1, $2, $3, $4, $5)`,
				id, versionID, i+1, o.Label, o.ContentHTML,
			); err != nil {
				return nil, fmt.Errorf("insert import option: %w", err)
			}
		}

		if q.Key != nil {
			if err := insertKey(ctx, tx, versionID, *q.Key, optionIDs); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return result, nil
}

func insertKey(ctx context.Context, tx *sql.Tx, versionID string, k models.ExportKey, optionIDs map[string]string) error {
	var correctID *string
	if k.CorrectOptionID != "" {
		id, ok := optionIDs[k.CorrectOptionID]
		if !ok {
			return fmt.Errorf("%w: correct_option_id %q matches no option", ErrInvalidInput, k.CorrectOptionID)
		}
		correctID = &id
	} else if k.CorrectOptionLabel != "" {
		id, ok := optionIDs["label:"+k.CorrectOptionLabel]
		if !ok {
			return fmt.Errorf("%w: correct_option_label %q matches no option", ErrInvalidInput, k.CorrectOptionLabel)
		}
		correctID = &id
	}

	var correctIDs *string
	if len(k.CorrectOptionIDs) > 0 {
		mapped := make([]string, 0, len(k.CorrectOptionIDs))
		for _, ref := range k.CorrectOptionIDs {
			id, ok := optionIDs[ref]
			if !ok {
				id, ok = optionIDs["label:"+ref]
			}
			if !ok {
				return fmt.Errorf("%w: correct_option_ids entry %q matches no option", ErrInvalidInput, ref)
			}
			mapped = append(mapped, id)
		}
		data, err := json.Marshal(mapped)
		if err != nil {
			return fmt.Errorf("encode option ids: %w", err)
		}
		encoded := string(data)
		correctIDs = &encoded
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO answer_keys (version_id, answer_type, correct_option_id, correct_option_ids, correct_text)
		 VALUES ($1, $2, $3, $4, $5)`,
		versionID, k.AnswerType, correctID, correctIDs, k.CorrectText,
	); err != nil {
		return fmt.Errorf("insert import key: %w", err)
	}
	return nil
}

// ExportQuestions emits every question with its resolved version, options
// and key, ordered by question id.
func (s *Store) ExportQuestions(ctx context.Context) ([]models.ExportQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, v.id, t.domain_name, t.skill_name, t.difficulty, t.score_band,
		        v.question_type, v.stimulus_html, v.stem_html, v.rationale_html
		 FROM questions q
		 JOIN question_taxonomy t ON t.question_id = q.id
		 `+resolvedVersionJoin+`
		 WHERE v.id IS NOT NULL
		 ORDER BY q.id`)
	if err != nil {
		return nil, fmt.Errorf("export query: %w", err)
	}

	var out []models.ExportQuestion
	byVersion := make(map[string]int)
	for rows.Next() {
		var (
			eq                        models.ExportQuestion
			versionID, qt             string
			stimulus, stem, rationale sql.NullString
		)
		if err := rows.Scan(&eq.QuestionID, &versionID, &eq.DomainName, &eq.SkillName, &eq.Difficulty, &eq.ScoreBand,
			&qt, &stimulus, &stem, &rationale); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		eq.QuestionType = models.QuestionType(qt)
		eq.StimulusHTML = stimulus.String
		eq.StemHTML = stem.String
		eq.RationaleHTML = rationale.String
		byVersion[versionID] = len(out)
		out = append(out, eq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export query: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	optRows, err := s.db.QueryContext(ctx,
		`SELECT version_id, id, label, content_html FROM answer_options ORDER BY version_id, ordinal, id`)
	if err != nil {
		return nil, fmt.Errorf("export options: %w", err)
	}
	for optRows.Next() {
		var versionID string
		var o models.ExportOption
		if err := optRows.Scan(&versionID, &o.ID, &o.Label, &o.ContentHTML); err != nil {
			optRows.Close()
			return nil, fmt.Errorf("scan export option: %w", err)
		}
		if i, ok := byVersion[versionID]; ok {
			out[i].Options = append(out[i].Options, o)
		}
	}
	optRows.Close()
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("export options: %w", err)
	}

	keyRows, err := s.db.QueryContext(ctx,
		`SELECT version_id, answer_type, correct_option_id, correct_option_ids, correct_text FROM answer_keys`)
	if err != nil {
		return nil, fmt.Errorf("export keys: %w", err)
	}
	defer keyRows.Close()
	for keyRows.Next() {
		var (
			versionID string
			k         models.ExportKey
			correctID sql.NullString
			ids       sql.NullString
		)
		if err := keyRows.Scan(&versionID, &k.AnswerType, &correctID, &ids, &k.CorrectText); err != nil {
			return nil, fmt.Errorf("scan export key: %w", err)
		}
		i, ok := byVersion[versionID]
		if !ok {
			continue
		}
		k.CorrectOptionID = correctID.String
		if ids.Valid && ids.String != "" {
			if err := json.Unmarshal([]byte(ids.String), &k.CorrectOptionIDs); err != nil {
				return nil, fmt.Errorf("decode option ids for %s: %w", out[i].QuestionID, err)
			}
		}
		out[i].Key = &k
	}
	return out, keyRows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
