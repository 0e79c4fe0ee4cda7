package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondDomainError maps a typed domain error onto its HTTP status.
// Untyped errors become 500s without leaking internals.
func respondDomainError(w http.ResponseWriter, err error) {
	if de := models.AsDomainError(err); de != nil {
		respondError(w, de.HTTPStatus(), string(de.Kind), de.Message)
		return
	}
	slog.Error("unhandled error reached handler", "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// challengeView is the API shape of a challenge
type challengeView struct {
	ID            string                  `json:"id"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description,omitempty"`
	ChallengeType string                  `json:"challenge_type,omitempty"`
	FormatType    string                  `json:"format_type,omitempty"`
	Difficulty    string                  `json:"difficulty,omitempty"`
	FocusArea     string                  `json:"focus_area,omitempty"`
	UserEmail     string                  `json:"user_email,omitempty"`
	Status        string                  `json:"status"`
	Content       models.ChallengeContent `json:"content"`
	Questions     []models.Question       `json:"questions,omitempty"`
	Responses     []models.Response       `json:"responses,omitempty"`
	Evaluation    *models.Evaluation      `json:"evaluation,omitempty"`
	ExpectedTime  float64                 `json:"expected_completion_minutes"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	SubmittedAt   *time.Time              `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
}

func toChallengeView(ch *models.Challenge) challengeView {
	return challengeView{
		ID:            ch.ID.String(),
		Title:         ch.Title,
		Description:   ch.Description,
		ChallengeType: ch.ChallengeType,
		FormatType:    ch.FormatType,
		Difficulty:    ch.Difficulty.String(),
		FocusArea:     ch.FocusArea.Code(),
		UserEmail:     ch.UserEmail.String(),
		Status:        string(ch.Status),
		Content:       ch.Content,
		Questions:     ch.Questions,
		Responses:     ch.Responses,
		Evaluation:    ch.Evaluation,
		ExpectedTime:  ch.ExpectedCompletionTime(),
		CreatedAt:     ch.CreatedAt,
		UpdatedAt:     ch.UpdatedAt,
		SubmittedAt:   ch.SubmittedAt,
		CompletedAt:   ch.CompletedAt,
	}
}

// --- Challenge handlers ---

func (s *Server) handleGenerateChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.UserEmail == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_email is required")
		return
	}

	ch, err := s.coordinator.GenerateAndPersist(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toChallengeView(ch))
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "challenge id is required")
		return
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ch, err := s.coordinator.SubmitResponse(r.Context(), id, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toChallengeView(ch))
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChallengeID(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	ch, err := s.challenges.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toChallengeView(ch))
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	filters := models.ChallengeFilters{
		UserID:        r.URL.Query().Get("user"),
		FocusArea:     r.URL.Query().Get("focus_area"),
		ChallengeType: r.URL.Query().Get("type"),
		Status:        models.ChallengeStatus(r.URL.Query().Get("status")),
		Limit:         50,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filters.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filters.Offset = o
		}
	}

	challenges, err := s.challenges.Find(r.Context(), filters)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]challengeView, 0, len(challenges))
	for _, ch := range challenges {
		views = append(views, toChallengeView(ch))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": views,
		"total":      len(views),
	})
}

// updateChallengeRequest is the PATCH body; only provided fields change
type updateChallengeRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Difficulty  *string `json:"difficulty,omitempty"`
	FocusArea   *string `json:"focus_area,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChallengeID(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var req updateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	patch := models.ChallengePatch{
		Title:       req.Title,
		Description: req.Description,
	}

	if req.Difficulty != nil {
		d, err := models.ParseDifficulty(*req.Difficulty)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		patch.Difficulty = &d
	}

	if req.FocusArea != nil {
		fa, err := models.ParseFocusArea(*req.FocusArea)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		patch.FocusArea = &fa
	}

	if req.Status != nil {
		st := models.ChallengeStatus(*req.Status)
		patch.Status = &st
	}

	ch, err := s.challenges.ApplyPatch(r.Context(), id, patch)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toChallengeView(ch))
}

func (s *Server) handleDeleteChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseChallengeID(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if err := s.challenges.Delete(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": "deleted"})
}

// --- Template handlers ---

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if focusArea := r.URL.Query().Get("focus_area"); focusArea != "" {
		respondJSON(w, http.StatusOK, s.templateLoader.ListByFocusArea(focusArea))
		return
	}
	respondJSON(w, http.StatusOK, s.templateLoader.List())
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tmpl := s.templateLoader.Get(id)
	if tmpl == nil {
		respondError(w, http.StatusNotFound, "not_found", "template not found")
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// --- Focus areas ---

func (s *Server) handleListFocusAreas(w http.ResponseWriter, r *http.Request) {
	codes := models.FocusAreaCodes()
	areas := make([]map[string]string, 0, len(codes))
	for _, code := range codes {
		fa, err := models.ParseFocusArea(code)
		if err != nil {
			continue
		}
		areas = append(areas, map[string]string{
			"code": fa.Code(),
			"name": fa.DisplayName(),
		})
	}
	respondJSON(w, http.StatusOK, areas)
}

// --- User journey ---

func (s *Server) handleUserJourney(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user id is required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	events, err := s.journey.History(r.Context(), userID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "database unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
