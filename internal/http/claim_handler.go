package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
)

type claimService interface {
	CreateClaim(ctx context.Context, params application.CreateClaimParams) (application.Claim, error)
	CancelClaim(ctx context.Context, principal application.Principal, claimID, reason string) (application.Claim, error)
	CompleteClaim(ctx context.Context, principal application.Principal, claimID string) (application.Claim, error)
	GetClaim(ctx context.Context, principal application.Principal, claimID string) (application.Claim, error)
	ListClaimsByRecycler(ctx context.Context, principal application.Principal) ([]application.Claim, error)
	ListClaimsByOwner(ctx context.Context, principal application.Principal) ([]application.Claim, error)
	ArchiveTerminalClaims(ctx context.Context, principal application.Principal) (int, error)
}

type ClaimHandler struct {
	service   claimService
	responder responder
	logger    *slog.Logger
}

func NewClaimHandler(service claimService, logger *slog.Logger) *ClaimHandler {
	base := defaultLogger(logger)
	return &ClaimHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ClaimHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ClaimHandler", operation, attrs...)
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode claim request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	pickup, err := req.pickupTime()
	if err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid pickup time", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "point_id", req.PointID)

	claim, err := h.service.CreateClaim(r.Context(), application.CreateClaimParams{
		Principal:  principal,
		PointID:    strings.TrimSpace(req.PointID),
		OwnerID:    strings.TrimSpace(req.OwnerID),
		PickupTime: pickup,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "claim creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("claim_id", claim.ID).InfoContext(r.Context(), "claim created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, claimResponse{Claim: toClaimDTO(claim)})
}

func (h *ClaimHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	claimID, ok := pathID(r)
	if !ok {
		h.log(r.Context(), "Cancel", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid claim id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClaimID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req cancelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "claim_id", claimID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode cancel request", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "claim_id", claimID)
	claim, err := h.service.CancelClaim(r.Context(), principal, claimID, req.Reason)
	if err != nil {
		logger.ErrorContext(r.Context(), "claim cancel failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "claim cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, claimResponse{Claim: toClaimDTO(claim)})
}

func (h *ClaimHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	claimID, ok := pathID(r)
	if !ok {
		h.log(r.Context(), "Complete", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid claim id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClaimID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Complete", "principal_id", principal.UserID, "claim_id", claimID)
	claim, err := h.service.CompleteClaim(r.Context(), principal, claimID)
	if err != nil {
		logger.ErrorContext(r.Context(), "claim completion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "claim completed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, claimResponse{Claim: toClaimDTO(claim)})
}

// Get returns one claim to its recycler or to the point owner.
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	claimID, ok := pathID(r)
	if !ok {
		h.log(r.Context(), "Get", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid claim id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClaimID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	claim, err := h.service.GetClaim(r.Context(), principal, claimID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "claim_id", claimID).
			WarnContext(r.Context(), "claim lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, claimResponse{Claim: toClaimDTO(claim)})
}

// List returns the caller's claims as recycler (default) or as point owner.
func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	role := r.URL.Query().Get("role")
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "role", role)

	var (
		claims []application.Claim
		err    error
	)
	switch role {
	case "", application.RoleRecycler:
		claims, err = h.service.ListClaimsByRecycler(r.Context(), principal)
	case "owner":
		claims, err = h.service.ListClaimsByOwner(r.Context(), principal)
	default:
		err = errInvalidQuery
	}
	if errors.Is(err, errInvalidQuery) {
		logger.With("error_kind", "bad_request").ErrorContext(r.Context(), "unsupported claim role filter")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "claim list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(claims)).InfoContext(r.Context(), "claims listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listClaimsResponse{Claims: toClaimDTOs(claims)})
}

func (h *ClaimHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Archive", "principal_id", principal.UserID)
	moved, err := h.service.ArchiveTerminalClaims(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "claim archive failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("archived_count", moved).InfoContext(r.Context(), "claims archived")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, archiveResponse{Archived: moved})
}

type claimRequest struct {
	PointID    string `json:"point_id"`
	OwnerID    string `json:"owner_id"`
	PickupTime string `json:"pickup_time"`
}

func (r claimRequest) pickupTime() (time.Time, error) {
	value := strings.TrimSpace(r.PickupTime)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type claimResponse struct {
	Claim claimDTO `json:"claim"`
}

type listClaimsResponse struct {
	Claims []claimDTO `json:"claims"`
}

type archiveResponse struct {
	Archived int `json:"archived"`
}

type claimDTO struct {
	ID                 string  `json:"id"`
	PointID            string  `json:"point_id"`
	RecyclerID         string  `json:"recycler_id"`
	OwnerID            string  `json:"owner_id"`
	Status             string  `json:"status"`
	PickupTime         string  `json:"pickup_time"`
	CreatedAt          string  `json:"created_at"`
	CancelledAt        *string `json:"cancelled_at,omitempty"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
	CompletedAt        *string `json:"completed_at,omitempty"`
}

func toClaimDTO(claim application.Claim) claimDTO {
	return claimDTO{
		ID:                 claim.ID,
		PointID:            claim.PointID,
		RecyclerID:         claim.RecyclerID,
		OwnerID:            claim.OwnerID,
		Status:             string(claim.Status),
		PickupTime:         claim.PickupTime.UTC().Format(time.RFC3339Nano),
		CreatedAt:          claim.CreatedAt.UTC().Format(time.RFC3339Nano),
		CancelledAt:        formatOptionalTime(claim.CancelledAt),
		CancellationReason: claim.CancellationReason,
		CompletedAt:        formatOptionalTime(claim.CompletedAt),
	}
}

func toClaimDTOs(claims []application.Claim) []claimDTO {
	out := make([]claimDTO, 0, len(claims))
	for _, claim := range claims {
		out = append(out, toClaimDTO(claim))
	}
	return out
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339Nano)
	return &formatted
}
