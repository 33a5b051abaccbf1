package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
)

type statsService interface {
	RecyclerStats(ctx context.Context, principal application.Principal) (application.RecyclerStats, error)
}

type profileService interface {
	UpsertProfile(ctx context.Context, principal application.Principal, input application.ProfileInput) (application.OwnerProfile, error)
}

// AccountHandler serves the caller's statistics and display profile.
type AccountHandler struct {
	stats     statsService
	profiles  profileService
	responder responder
	logger    *slog.Logger
}

func NewAccountHandler(stats statsService, profiles profileService, logger *slog.Logger) *AccountHandler {
	base := defaultLogger(logger)
	return &AccountHandler{stats: stats, profiles: profiles, responder: newResponder(base), logger: base}
}

func (h *AccountHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AccountHandler", operation, attrs...)
}

func (h *AccountHandler) RecyclerStats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.stats == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "RecyclerStats", "principal_id", principal.UserID)
	stats, err := h.stats.RecyclerStats(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "stats lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStatsDTO(stats))
}

func (h *AccountHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.profiles == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpsertProfile", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode profile request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpsertProfile", "principal_id", principal.UserID)
	profile, err := h.profiles.UpsertProfile(r.Context(), principal, application.ProfileInput{
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "profile upsert failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "profile saved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, profileResponse{Profile: ownerDTO{
		ID:        profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		Phone:     profile.Phone,
		AvatarURL: profile.AvatarURL,
	}})
}

type profileRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatar_url"`
}

type profileResponse struct {
	Profile ownerDTO `json:"profile"`
}

type statsDTO struct {
	Total    int               `json:"total"`
	ByStatus map[string]int    `json:"by_status"`
	ByMonth  []monthlyStatsDTO `json:"by_month"`
}

type monthlyStatsDTO struct {
	Month     string `json:"month"`
	Claimed   int    `json:"claimed"`
	Completed int    `json:"completed"`
	Cancelled int    `json:"cancelled"`
}

func toStatsDTO(stats application.RecyclerStats) statsDTO {
	dto := statsDTO{
		Total:    stats.Total,
		ByStatus: make(map[string]int, len(stats.ByStatus)),
		ByMonth:  make([]monthlyStatsDTO, 0, len(stats.ByMonth)),
	}
	for status, count := range stats.ByStatus {
		dto.ByStatus[string(status)] = count
	}
	for _, month := range stats.ByMonth {
		dto.ByMonth = append(dto.ByMonth, monthlyStatsDTO{
			Month:     month.Month,
			Claimed:   month.Claimed,
			Completed: month.Completed,
			Cancelled: month.Cancelled,
		})
	}
	return dto
}
