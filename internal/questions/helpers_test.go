package questions

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/sat-prep/backend/internal/cache"
	"github.com/sat-prep/backend/internal/database"
	"github.com/sat-prep/backend/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "questions.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := database.Connect(context.Background(), database.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, database.DriverSQLite))
	return db
}

func newTestStore(t *testing.T) *Store {
	return NewStore(newTestDB(t))
}

func newTestService(t *testing.T) (*Service, *Store) {
	store := newTestStore(t)
	return NewService(store, cache.NewMemory(), time.Minute), store
}

func intp(v int) *int       { return &v }
func strp(s string) *string { return &s }

func mcqQuestion(id, domain, skill string, difficulty, band *int, correctLabel string) models.ExportQuestion {
	return models.ExportQuestion{
		QuestionID:   id,
		DomainName:   domain,
		SkillName:    skill,
		Difficulty:   difficulty,
		ScoreBand:    band,
		QuestionType: models.QuestionTypeMCQ,
		StemHTML:     "<p>Stem of " + id + "</p>",
		Options: []models.ExportOption{
			{Label: "A", ContentHTML: "alpha"},
			{Label: "B", ContentHTML: "bravo"},
			{Label: "C", ContentHTML: "charlie"},
			{Label: "D", ContentHTML: "delta"},
		},
		Key: &models.ExportKey{CorrectOptionLabel: correctLabel},
	}
}

func sprQuestion(id, domain, skill string, difficulty, band *int, correctText string) models.ExportQuestion {
	return models.ExportQuestion{
		QuestionID:   id,
		DomainName:   domain,
		SkillName:    skill,
		Difficulty:   difficulty,
		ScoreBand:    band,
		QuestionType: models.QuestionTypeSPR,
		StemHTML:     "<p>Solve " + id + "</p>",
		Key:          &models.ExportKey{CorrectText: strp(correctText)},
	}
}

func seed(t *testing.T, store *Store, qs ...models.ExportQuestion) {
	t.Helper()
	_, err := store.ImportQuestions(context.Background(), qs)
	require.NoError(t, err)
}

// optionID returns the generated id of the option with the given label on the
// question's resolved version.
func optionID(t *testing.T, store *Store, questionID, label string) string {
	t.Helper()
	ctx := context.Background()
	v, err := store.ResolveVersion(ctx, questionID)
	require.NoError(t, err)
	opts, err := store.Options(ctx, v.ID)
	require.NoError(t, err)
	for _, o := range opts {
		if o.Label == label {
			return o.ID
		}
	}
	t.Fatalf("question %s has no option %s", questionID, label)
	return ""
}

func ids(items []models.QuestionListItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.QuestionID
	}
	return out
}

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
