package questions

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sat-prep/backend/internal/middleware"
	"github.com/sat-prep/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// getUserID extracts the authenticated user ID from the request context.
// Anonymous requests yield "".
func getUserID(r *http.Request) string {
	uid, _ := middleware.UserIDFromContext(r.Context())
	return uid
}

// RegisterPublicRoutes mounts the endpoints that work for anonymous viewers.
// The subrouter is expected to run OptionalAuth.
func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/questions", h.ListQuestions).Methods("GET")
	r.HandleFunc("/questions/{id}", h.GetQuestion).Methods("GET")
	r.HandleFunc("/questions/{id}/neighbors", h.GetNeighbors).Methods("GET")
	r.HandleFunc("/filters", h.GetFilters).Methods("GET")
}

// RegisterProtectedRoutes mounts the endpoints that need a user.
func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/attempts", h.SubmitAttempt).Methods("POST")
	r.HandleFunc("/status", h.PatchStatus).Methods("POST")
	r.HandleFunc("/dashboard", h.GetDashboard).Methods("GET")
	r.HandleFunc("/review", h.GetReview).Methods("GET")
}

// ── Bank ────────────────────────────────────────────────

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, "ListQuestions", err)
		return
	}

	resp, err := h.service.ListQuestions(r.Context(), getUserID(r), f)
	if err != nil {
		writeServiceError(w, "ListQuestions", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	detail, err := h.service.GetQuestion(r.Context(), getUserID(r), id)
	if err != nil {
		writeServiceError(w, "GetQuestion", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, "GetNeighbors", err)
		return
	}

	resp, err := h.service.Neighbors(r.Context(), getUserID(r), id, f)
	if err != nil {
		writeServiceError(w, "GetNeighbors", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Filters(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		writeServiceError(w, "GetFilters", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Attempts & Status ───────────────────────────────────

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body", Code: "invalid_input"})
		return
	}

	resp, err := h.service.SubmitAttempt(r.Context(), getUserID(r), req)
	if err != nil {
		writeServiceError(w, "SubmitAttempt", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body", Code: "invalid_input"})
		return
	}

	if err := h.service.PatchStatus(r.Context(), getUserID(r), req); err != nil {
		writeServiceError(w, "PatchStatus", err)
		return
	}
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

// ── Dashboard & Review ──────────────────────────────────

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Dashboard(r.Context(), getUserID(r))
	if err != nil {
		writeServiceError(w, "GetDashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := intQueryParam(query, "page")
	if err != nil {
		writeServiceError(w, "GetReview", err)
		return
	}
	pageSize, err := intQueryParam(query, "page_size")
	if err != nil {
		writeServiceError(w, "GetReview", err)
		return
	}

	resp, err := h.service.Review(r.Context(), getUserID(r), page, pageSize)
	if err != nil {
		writeServiceError(w, "GetReview", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Helpers ─────────────────────────────────────────────

func parseListFilter(query url.Values) (ListFilter, error) {
	f := ListFilter{
		DomainName:   query.Get("domain_name"),
		SkillName:    query.Get("skill_name"),
		QuestionType: query.Get("question_type"),
		Status:       query.Get("status"),
		Search:       query.Get("q"),
		Sort:         query.Get("sort"),
	}

	var err error
	if f.Page, err = intQueryParam(query, "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = intQueryParam(query, "page_size"); err != nil {
		return f, err
	}
	if f.Difficulty, err = intQueryParamPtr(query, "difficulty"); err != nil {
		return f, err
	}
	if f.ScoreBand, err = intQueryParamPtr(query, "score_band"); err != nil {
		return f, err
	}
	return f, nil
}

// intQueryParam returns 0 when the key is absent so the service can apply
// its default; a present but non-numeric or non-positive value is an error.
func intQueryParam(query url.Values, key string) (int, error) {
	s := query.Get(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidInput, key)
	}
	return v, nil
}

func intQueryParamPtr(query url.Values, key string) (*int, error) {
	s := query.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidInput, key)
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
