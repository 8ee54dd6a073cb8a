package questions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sat-prep/backend/internal/middleware"
	"github.com/sat-prep/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router *mux.Router
	store  *Store
	tokens *middleware.Auth
}

func newTestAPI(t *testing.T) *testAPI {
	svc, store := newTestService(t)
	h := NewHandler(svc)
	tokens := middleware.NewAuth("handler-test")

	r := mux.NewRouter()
	public := r.PathPrefix("/api/v1").Subrouter()
	public.Use(tokens.OptionalAuth)
	h.RegisterPublicRoutes(public)
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(tokens.RequireAuth)
	h.RegisterProtectedRoutes(protected)

	return &testAPI{router: r, store: store, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		tok, err := a.tokens.IssueToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var e models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func TestHandlerSubmitAttempt(t *testing.T) {
	api := newTestAPI(t)
	seed(t, api.store,
		mcqQuestion("Q1", "Algebra", "Systems", intp(1), nil, "B"),
		sprQuestion("Q2", "Algebra", "Systems", nil, nil, `["11","-7"]`),
	)
	correct := optionID(t, api.store, "Q1", "B")

	rec := api.do(t, http.MethodPost, "/api/v1/attempts", "u1", map[string]interface{}{
		"question_id":        "Q1",
		"selected_option_id": correct,
		"time_spent_ms":      "4200",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SubmitAttemptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.IsCorrect)
	assert.Equal(t, 1, resp.AttemptsCount)
	assert.Equal(t, 1, resp.CorrectAttemptsCount)

	rec = api.do(t, http.MethodPost, "/api/v1/attempts", "u1", map[string]interface{}{
		"question_id":   "Q2",
		"response_text": "−7",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsCorrect)

	var spent int64
	require.NoError(t, api.store.db.QueryRow(
		`SELECT time_spent_ms FROM attempts WHERE question_id = 'Q1'`).Scan(&spent))
	assert.Equal(t, int64(4200), spent)
}

func TestHandlerErrors(t *testing.T) {
	api := newTestAPI(t)
	noKey := mcqQuestion("NK", "Algebra", "Systems", nil, nil, "A")
	noKey.Key = nil
	seed(t, api.store, mcqQuestion("Q1", "Algebra", "Systems", nil, nil, "A"), noKey)

	tests := []struct {
		name     string
		method   string
		path     string
		user     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"attempt without token", http.MethodPost, "/api/v1/attempts", "", map[string]string{"question_id": "Q1"}, http.StatusUnauthorized, "unauthenticated"},
		{"dashboard without token", http.MethodGet, "/api/v1/dashboard", "", nil, http.StatusUnauthorized, "unauthenticated"},
		{"malformed body", http.MethodPost, "/api/v1/attempts", "u1", "{not json", http.StatusBadRequest, "invalid_input"},
		{"missing key", http.MethodPost, "/api/v1/attempts", "u1", map[string]string{"question_id": "NK", "selected_option_id": "x"}, http.StatusBadRequest, "missing_answer_key"},
		{"missing selection", http.MethodPost, "/api/v1/attempts", "u1", map[string]string{"question_id": "Q1"}, http.StatusBadRequest, "missing_selection"},
		{"unknown question", http.MethodPost, "/api/v1/attempts", "u1", map[string]string{"question_id": "zzz", "selected_option_id": "x"}, http.StatusNotFound, "not_found"},
		{"unknown detail", http.MethodGet, "/api/v1/questions/zzz", "", nil, http.StatusNotFound, "not_found"},
		{"bad sort", http.MethodGet, "/api/v1/questions?sort=random", "", nil, http.StatusBadRequest, "invalid_input"},
		{"bad page", http.MethodGet, "/api/v1/questions?page=abc", "", nil, http.StatusBadRequest, "invalid_input"},
		{"bad difficulty", http.MethodGet, "/api/v1/questions?difficulty=hard", "", nil, http.StatusBadRequest, "invalid_input"},
		{"status wrong type", http.MethodPost, "/api/v1/status", "u1", `{"question_id":"Q1","patch":{"is_done":"yes"}}`, http.StatusBadRequest, "invalid_input"},
		{"status unknown question", http.MethodPost, "/api/v1/status", "u1", `{"question_id":"zzz","patch":{"is_done":true}}`, http.StatusNotFound, "not_found"},
		{"review bad page size", http.MethodGet, "/api/v1/review?page_size=0", "u1", nil, http.StatusBadRequest, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestHandlerListAndNeighbors(t *testing.T) {
	api := newTestAPI(t)
	seed(t, api.store,
		mcqQuestion("a", "Algebra", "Systems", intp(1), nil, "A"),
		mcqQuestion("b", "Algebra", "Systems", intp(2), nil, "A"),
		mcqQuestion("c", "Algebra", "Systems", intp(3), nil, "A"),
		mcqQuestion("g", "Geometry", "Circles", intp(1), nil, "A"),
	)

	rec := api.do(t, http.MethodGet, "/api/v1/questions?domain_name=Algebra&page_size=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list models.QuestionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.PageSize)
	assert.Equal(t, []string{"a", "b"}, ids(list.Items))
	require.NotNil(t, list.FirstQuestionID)
	assert.Equal(t, "a", *list.FirstQuestionID)

	rec = api.do(t, http.MethodGet, "/api/v1/questions/b/neighbors?domain_name=Algebra", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var nb models.NeighborsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nb))
	require.NotNil(t, nb.PrevID)
	require.NotNil(t, nb.NextID)
	assert.Equal(t, "a", *nb.PrevID)
	assert.Equal(t, "c", *nb.NextID)

	rec = api.do(t, http.MethodGet, "/api/v1/filters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var filters models.FiltersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filters))
	assert.Equal(t, []string{"Algebra", "Geometry"}, filters.Domains)
}

func TestHandlerStatusAndReview(t *testing.T) {
	api := newTestAPI(t)
	seed(t, api.store, mcqQuestion("Q1", "Algebra", "Systems", nil, nil, "A"))

	rec := api.do(t, http.MethodPost, "/api/v1/status", "u1",
		`{"question_id":"Q1","patch":{"marked_for_review":true,"notes":"recheck","attempts_count":50}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/review", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var review models.ReviewListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &review))
	require.Len(t, review.Items, 1)
	assert.Equal(t, "Q1", review.Items[0].QuestionID)
	assert.Equal(t, 0, review.Items[0].AttemptsCount)
	require.NotNil(t, review.Items[0].Notes)
	assert.Equal(t, "recheck", *review.Items[0].Notes)

	// Anonymous detail has no status; the owner sees theirs.
	rec = api.do(t, http.MethodGet, "/api/v1/questions/Q1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.QuestionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Nil(t, detail.Status)

	rec = api.do(t, http.MethodGet, "/api/v1/questions/Q1", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.NotNil(t, detail.Status)
	assert.True(t, detail.Status.MarkedForReview)
	assert.Nil(t, detail.CorrectOptionID)

	rec = api.do(t, http.MethodGet, "/api/v1/dashboard", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash models.DashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, 1, dash.TotalQuestions)
	assert.Equal(t, 1, dash.MarkedCount)
	assert.Equal(t, 0, dash.Overall.Attempted)
}
