package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sat-prep/backend/internal/cache"
	"github.com/sat-prep/backend/internal/grading"
	"github.com/sat-prep/backend/internal/models"
)

const exportFormatVersion = 1

type Service struct {
	store      *Store
	cache      cache.Cache
	filtersTTL time.Duration
}

func NewService(store *Store, c cache.Cache, filtersTTL time.Duration) *Service {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{store: store, cache: c, filtersTTL: filtersTTL}
}

// ── Attempt Submission ──────────────────────────────────

// SubmitAttempt resolves the question's key, grades the submission and
// records it. Nothing is written when resolution or grading fails.
func (s *Service) SubmitAttempt(ctx context.Context, userID string, req models.SubmitAttemptRequest) (*models.SubmitAttemptResponse, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	questionID := strings.TrimSpace(req.QuestionID)
	if questionID == "" {
		return nil, fmt.Errorf("%w: question_id is required", ErrInvalidInput)
	}

	version, err := s.store.ResolveVersion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.AnswerKeyRow(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	key, err := grading.ResolveKey(version.QuestionType, raw)
	if err != nil {
		return nil, err
	}

	sub := grading.Submission{
		SelectedOptionID: string(req.SelectedOptionID),
		ResponseText:     req.ResponseText,
	}
	isCorrect, err := grading.Grade(key, sub)
	if err != nil {
		return nil, err
	}

	in := AttemptInput{
		UserID:      userID,
		QuestionID:  questionID,
		IsCorrect:   isCorrect,
		TimeSpentMs: req.TimeSpentMs.Value,
	}
	if version.QuestionType == models.QuestionTypeMCQ {
		in.SelectedOptionID = &sub.SelectedOptionID
	} else {
		in.ResponseText = &sub.ResponseText
	}

	attempts, correct, err := s.store.RecordAttempt(ctx, in)
	if err != nil {
		return nil, err
	}

	resp := &models.SubmitAttemptResponse{
		OK:                   true,
		IsCorrect:            isCorrect,
		AttemptsCount:        attempts,
		CorrectAttemptsCount: correct,
	}
	resp.CorrectOptionID, resp.CorrectOptionIDs, resp.AcceptedAnswers = grading.Feedback(key)
	if _, ok := key.(grading.FreeText); ok {
		resp.CorrectText = raw.CorrectText
	}
	return resp, nil
}

// ── Question Access ─────────────────────────────────────

// GetQuestion assembles the detail view. Key fields are only filled in once
// the viewer has completed the question.
func (s *Service) GetQuestion(ctx context.Context, viewer, questionID string) (*models.QuestionDetail, error) {
	version, err := s.store.ResolveVersion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	options, err := s.store.Options(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	taxonomy, err := s.store.Taxonomy(ctx, questionID)
	if err != nil {
		return nil, err
	}

	detail := &models.QuestionDetail{
		QuestionID: questionID,
		Version:    *version,
		Options:    options,
		Taxonomy:   taxonomy,
	}
	if viewer == "" {
		return detail, nil
	}

	status, err := s.store.Status(ctx, viewer, questionID)
	if err != nil {
		return nil, err
	}
	detail.Status = status
	if status == nil || !status.IsDone {
		return detail, nil
	}

	raw, err := s.store.AnswerKeyRow(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	key, err := grading.ResolveKey(version.QuestionType, raw)
	if err != nil {
		log.Printf("[questions] key for %s unavailable: %v", questionID, err)
		return detail, nil
	}
	detail.CorrectOptionID, detail.CorrectOptionIDs, detail.AcceptedAnswers = grading.Feedback(key)
	if _, ok := key.(grading.FreeText); ok {
		detail.CorrectText = raw.CorrectText
	}
	return detail, nil
}

func (s *Service) ListQuestions(ctx context.Context, viewer string, f ListFilter) (*models.QuestionListResponse, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	items, total, first, err := s.store.ListQuestions(ctx, viewer, f)
	if err != nil {
		return nil, err
	}
	return &models.QuestionListResponse{
		Page:            f.Page,
		PageSize:        f.PageSize,
		Total:           total,
		Items:           items,
		FirstQuestionID: first,
	}, nil
}

func (s *Service) Neighbors(ctx context.Context, viewer, questionID string, f ListFilter) (*models.NeighborsResponse, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.store.Neighbors(ctx, viewer, questionID, f)
}

// ── Status ──────────────────────────────────────────────

func (s *Service) PatchStatus(ctx context.Context, userID string, req models.StatusPatchRequest) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	questionID := strings.TrimSpace(req.QuestionID)
	if questionID == "" {
		return fmt.Errorf("%w: question_id is required", ErrInvalidInput)
	}
	if req.Patch == nil {
		return fmt.Errorf("%w: patch is required", ErrInvalidInput)
	}
	patch, err := ParseStatusPatch(req.Patch)
	if err != nil {
		return err
	}

	exists, err := s.store.QuestionExists(ctx, questionID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.store.PatchStatus(ctx, userID, questionID, patch)
}

// ParseStatusPatch keeps the whitelisted keys and type-checks them. Keys
// outside the whitelist are dropped silently.
func ParseStatusPatch(raw map[string]json.RawMessage) (models.StatusPatch, error) {
	var p models.StatusPatch
	var err error
	if v, ok := raw["marked_for_review"]; ok {
		if p.MarkedForReview, err = decodeBool("marked_for_review", v); err != nil {
			return p, err
		}
	}
	if v, ok := raw["is_done"]; ok {
		if p.IsDone, err = decodeBool("is_done", v); err != nil {
			return p, err
		}
	}
	if v, ok := raw["is_broken"]; ok {
		if p.IsBroken, err = decodeBool("is_broken", v); err != nil {
			return p, err
		}
	}
	if v, ok := raw["notes"]; ok {
		p.NotesSet = true
		if !isNull(v) {
			var notes string
			if err := json.Unmarshal(v, &notes); err != nil {
				return p, fmt.Errorf("%w: notes must be a string or null", ErrInvalidInput)
			}
			p.Notes = &notes
		}
	}
	return p, nil
}

func decodeBool(field string, v json.RawMessage) (*bool, error) {
	var b bool
	if isNull(v) || json.Unmarshal(v, &b) != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidInput, field)
	}
	return &b, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// ── Dashboard & Review ──────────────────────────────────

func (s *Service) Dashboard(ctx context.Context, userID string) (*models.DashboardResponse, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	rows, err := s.store.ProgressRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountQuestions(ctx)
	if err != nil {
		return nil, err
	}
	marked, err := s.store.CountMarked(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, err := s.store.UserName(ctx, userID)
	if err != nil {
		return nil, err
	}

	breakdown := AggregateProgress(rows)
	return &models.DashboardResponse{
		DisplayName:    models.User{Name: name}.DisplayName(),
		TotalQuestions: total,
		MarkedCount:    marked,
		Overall:        breakdown.Overall,
		Domains:        breakdown.Domains,
		RecentActivity: RecentActivity(rows, recentActivityLimit),
	}, nil
}

func (s *Service) Review(ctx context.Context, userID string, page, pageSize int) (*models.ReviewListResponse, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	f := ListFilter{Page: page, PageSize: pageSize}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.store.ReviewItems(ctx, userID, f.PageSize, f.Offset())
	if err != nil {
		return nil, err
	}
	return &models.ReviewListResponse{
		Items:    items,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	}, nil
}

// ── Filters ─────────────────────────────────────────────

func filtersCacheKey(domain string) string {
	if domain == "" {
		return "filters:domains"
	}
	return "filters:skills:" + domain
}

// Filters lists distinct domains, or the skills of one domain. Results are
// cached; a cache failure only costs a database round trip.
func (s *Service) Filters(ctx context.Context, domain string) (*models.FiltersResponse, error) {
	domain = strings.TrimSpace(domain)
	key := filtersCacheKey(domain)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var resp models.FiltersResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Printf("[cache] get %s: %v", key, err)
	}

	var resp models.FiltersResponse
	if domain == "" {
		domains, err := s.store.Domains(ctx)
		if err != nil {
			return nil, err
		}
		resp.Domains = domains
	} else {
		skills, err := s.store.Skills(ctx, domain)
		if err != nil {
			return nil, err
		}
		resp.Domain = domain
		resp.Skills = skills
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, data, s.filtersTTL); err != nil {
			log.Printf("[cache] set %s: %v", key, err)
		}
	}
	return &resp, nil
}

// ── Export/Import ────────────────────────────────────────

func (s *Service) ExportQuestions(ctx context.Context) (*models.ExportEnvelope, error) {
	questions, err := s.store.ExportQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("export questions: %w", err)
	}
	if questions == nil {
		questions = []models.ExportQuestion{}
	}
	return &models.ExportEnvelope{
		Version:    exportFormatVersion,
		ExportedAt: time.Now().UTC(),
		Questions:  questions,
	}, nil
}

func (s *Service) ImportQuestions(ctx context.Context, envelope models.ExportEnvelope) (*models.ImportResult, error) {
	if envelope.Version != exportFormatVersion {
		return nil, fmt.Errorf("%w: unsupported export version %d", ErrInvalidInput, envelope.Version)
	}
	if len(envelope.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions in payload", ErrInvalidInput)
	}
	for i, q := range envelope.Questions {
		if err := validateExportQuestion(q); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidInput, i+1, err)
		}
	}

	result, err := s.store.ImportQuestions(ctx, envelope.Questions)
	if err != nil {
		return nil, fmt.Errorf("import questions: %w", err)
	}

	keys := []string{filtersCacheKey("")}
	seen := map[string]bool{}
	for _, q := range envelope.Questions {
		if !seen[q.DomainName] {
			seen[q.DomainName] = true
			keys = append(keys, filtersCacheKey(q.DomainName))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("[cache] invalidate filters: %v", err)
	}
	return result, nil
}

func validateExportQuestion(q models.ExportQuestion) error {
	if !models.ValidQuestionTypes[q.QuestionType] {
		return fmt.Errorf("invalid question_type %q", q.QuestionType)
	}
	if strings.TrimSpace(q.DomainName) == "" || strings.TrimSpace(q.SkillName) == "" {
		return fmt.Errorf("domain_name and skill_name are required")
	}
	if q.Difficulty != nil && (*q.Difficulty < 1 || *q.Difficulty > 3) {
		return fmt.Errorf("difficulty %d out of range 1-3", *q.Difficulty)
	}
	if q.ScoreBand != nil && (*q.ScoreBand < 1 || *q.ScoreBand > 7) {
		return fmt.Errorf("score_band %d out of range 1-7", *q.ScoreBand)
	}
	if strings.TrimSpace(q.StemHTML) == "" {
		return fmt.Errorf("empty stem_html")
	}

	switch q.QuestionType {
	case models.QuestionTypeMCQ:
		if len(q.Options) < 2 {
			return fmt.Errorf("expected at least 2 options, got %d", len(q.Options))
		}
		labels := make(map[string]bool, len(q.Options))
		for i, o := range q.Options {
			if o.Label == "" {
				return fmt.Errorf("option %d has no label", i+1)
			}
			if labels[o.Label] {
				return fmt.Errorf("duplicate option label %q", o.Label)
			}
			labels[o.Label] = true
		}
		if err := validateChoiceKey(q.Key, q.Options, labels); err != nil {
			return err
		}
	case models.QuestionTypeSPR:
		if q.Key == nil || q.Key.CorrectText == nil || strings.TrimSpace(*q.Key.CorrectText) == "" {
			return fmt.Errorf("spr question has no correct_text")
		}
	}
	return nil
}

// validateChoiceKey checks that an mcq key has the shape its answer_type
// calls for and that every reference names an option in the payload.
func validateChoiceKey(k *models.ExportKey, options []models.ExportOption, labels map[string]bool) error {
	if k == nil {
		return fmt.Errorf("mcq question has no key")
	}
	ids := make(map[string]bool, len(options))
	for _, o := range options {
		if o.ID != "" {
			ids[o.ID] = true
		}
	}

	answerType := models.AnswerTypeSingleChoice
	if k.AnswerType != nil && *k.AnswerType != "" {
		answerType = *k.AnswerType
	}

	switch answerType {
	case models.AnswerTypeSingleChoice:
		if len(k.CorrectOptionIDs) > 0 {
			return fmt.Errorf("correct_option_ids needs answer_type %q", models.AnswerTypeMultipleChoice)
		}
		switch {
		case k.CorrectOptionID != "":
			if !ids[k.CorrectOptionID] {
				return fmt.Errorf("correct_option_id %q matches no option", k.CorrectOptionID)
			}
		case k.CorrectOptionLabel != "":
			if !labels[k.CorrectOptionLabel] {
				return fmt.Errorf("correct_option_label %q matches no option", k.CorrectOptionLabel)
			}
		default:
			return fmt.Errorf("mcq question has no correct option")
		}
	case models.AnswerTypeMultipleChoice:
		if len(k.CorrectOptionIDs) == 0 {
			return fmt.Errorf("answer_type %q needs correct_option_ids", models.AnswerTypeMultipleChoice)
		}
		for _, ref := range k.CorrectOptionIDs {
			if !ids[ref] && !labels[ref] {
				return fmt.Errorf("correct_option_ids entry %q matches no option", ref)
			}
		}
	default:
		return fmt.Errorf("unknown answer_type %q", answerType)
	}
	return nil
}
