package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/geo"
)

type pointService interface {
	CreatePoint(ctx context.Context, params application.CreatePointParams) (application.Point, error)
	GetPoint(ctx context.Context, pointID string) (application.Point, error)
	ListPointsByOwner(ctx context.Context, principal application.Principal) ([]application.Point, error)
	DeletePoint(ctx context.Context, principal application.Principal, pointID string) error
	ArchivePoint(ctx context.Context, principal application.Principal, pointID string) error
}

type availabilityService interface {
	ListAvailable(ctx context.Context, query application.AvailabilityQuery) ([]application.AvailablePoint, error)
}

type PointHandler struct {
	service      pointService
	availability availabilityService
	responder    responder
	logger       *slog.Logger
}

func NewPointHandler(service pointService, availability availabilityService, logger *slog.Logger) *PointHandler {
	base := defaultLogger(logger)
	return &PointHandler{service: service, availability: availability, responder: newResponder(base), logger: base}
}

func (h *PointHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PointHandler", operation, attrs...)
}

func (h *PointHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode point request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	point, err := h.service.CreatePoint(r.Context(), application.CreatePointParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "point creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("point_id", point.ID).InfoContext(r.Context(), "point created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, pointResponse{Point: toPointDTO(point)})
}

func (h *PointHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pointID, ok := pathID(r)
	if !ok {
		h.log(r.Context(), "Get", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid point id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPointID)
		return
	}

	point, err := h.service.GetPoint(r.Context(), pointID)
	if err != nil {
		h.log(r.Context(), "Get", "point_id", pointID).ErrorContext(r.Context(), "point lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, pointResponse{Point: toPointDTO(point)})
}

// List only supports owner=me; other owners' points are reached through the
// availability listing.
func (h *PointHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if owner := r.URL.Query().Get("owner"); owner != "" && owner != "me" && owner != principal.UserID {
		h.log(r.Context(), "List", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "unsupported owner filter", "owner", owner)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	points, err := h.service.ListPointsByOwner(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "point list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(points)).InfoContext(r.Context(), "points listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPointsResponse{Points: toPointDTOs(points)})
}

func (h *PointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "Delete", "point deleted", func(ctx context.Context, principal application.Principal, pointID string) error {
		return h.service.DeletePoint(ctx, principal, pointID)
	})
}

func (h *PointHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "Archive", "point archived", func(ctx context.Context, principal application.Principal, pointID string) error {
		return h.service.ArchivePoint(ctx, principal, pointID)
	})
}

func (h *PointHandler) mutate(w http.ResponseWriter, r *http.Request, operation, message string, run func(context.Context, application.Principal, string) error) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pointID, ok := pathID(r)
	if !ok {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid point id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPointID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "point_id", pointID)
	if err := run(r.Context(), principal, pointID); err != nil {
		logger.ErrorContext(r.Context(), "point "+strings.ToLower(operation)+" failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), message)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *PointHandler) Available(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query, err := parseAvailabilityQuery(r, principal)
	if err != nil {
		h.log(r.Context(), "Available", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid availability query", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	logger := h.log(r.Context(), "Available", "principal_id", principal.UserID)
	points, err := h.availability.ListAvailable(r.Context(), query)
	if err != nil {
		logger.ErrorContext(r.Context(), "availability listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(points)).InfoContext(r.Context(), "available points listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAvailableResponse{Points: toAvailableDTOs(points)})
}

func parseAvailabilityQuery(r *http.Request, principal application.Principal) (application.AvailabilityQuery, error) {
	values := r.URL.Query()
	query := application.AvailabilityQuery{Principal: principal}

	latValue, lngValue := strings.TrimSpace(values.Get("lat")), strings.TrimSpace(values.Get("lng"))
	if latValue != "" || lngValue != "" {
		lat, err := strconv.ParseFloat(latValue, 64)
		if err != nil {
			return query, err
		}
		lng, err := strconv.ParseFloat(lngValue, 64)
		if err != nil {
			return query, err
		}
		query.Origin = &geo.Coordinate{Lat: lat, Lng: lng}
	}

	if v := strings.TrimSpace(values.Get("max_km")); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return query, err
		}
		query.MaxDistanceKm = &km
	}
	return query, nil
}

func pathID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

type pointRequest struct {
	Address   string   `json:"address"`
	District  string   `json:"district"`
	Schedule  string   `json:"schedule"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Materials []string `json:"materials"`
	Type      string   `json:"type"`
	PhotoURL  *string  `json:"photo_url"`
	Notes     string   `json:"notes"`
}

func (r pointRequest) toInput() application.PointInput {
	return application.PointInput{
		Address:   strings.TrimSpace(r.Address),
		District:  strings.TrimSpace(r.District),
		Schedule:  strings.TrimSpace(r.Schedule),
		Lat:       r.Lat,
		Lng:       r.Lng,
		Materials: r.Materials,
		Type:      application.PointType(strings.TrimSpace(r.Type)),
		PhotoURL:  r.PhotoURL,
		Notes:     strings.TrimSpace(r.Notes),
	}
}

type pointResponse struct {
	Point pointDTO `json:"point"`
}

type listPointsResponse struct {
	Points []pointDTO `json:"points"`
}

type listAvailableResponse struct {
	Points []availablePointDTO `json:"points"`
}

type pointDTO struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Address     string    `json:"address"`
	District    string    `json:"district,omitempty"`
	Schedule    string    `json:"schedule,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	Materials   []string  `json:"materials"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
	LatestClaim *claimDTO `json:"latest_claim,omitempty"`
}

type availablePointDTO struct {
	pointDTO
	DistanceKm *float64  `json:"distance_km,omitempty"`
	Owner      *ownerDTO `json:"owner,omitempty"`
}

type ownerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func toPointDTO(point application.Point) pointDTO {
	dto := pointDTO{
		ID:        point.ID,
		OwnerID:   point.OwnerID,
		Address:   point.Address,
		District:  point.District,
		Schedule:  point.Schedule,
		Materials: point.Materials,
		Type:      string(point.Type),
		Status:    string(point.Status),
		PhotoURL:  point.PhotoURL,
		Notes:     point.Notes,
		CreatedAt: point.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: point.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if dto.Materials == nil {
		dto.Materials = []string{}
	}
	if point.Location != nil {
		lat, lng := point.Location.Lat, point.Location.Lng
		dto.Lat, dto.Lng = &lat, &lng
	}
	if point.LatestClaim != nil {
		claim := toClaimDTO(*point.LatestClaim)
		dto.LatestClaim = &claim
	}
	return dto
}

func toPointDTOs(points []application.Point) []pointDTO {
	out := make([]pointDTO, 0, len(points))
	for _, point := range points {
		out = append(out, toPointDTO(point))
	}
	return out
}

func toAvailableDTOs(points []application.AvailablePoint) []availablePointDTO {
	out := make([]availablePointDTO, 0, len(points))
	for _, point := range points {
		dto := availablePointDTO{pointDTO: toPointDTO(point.Point), DistanceKm: point.DistanceKm}
		if point.Owner != nil {
			dto.Owner = &ownerDTO{
				ID:        point.Owner.ID,
				Name:      point.Owner.Name,
				Email:     point.Owner.Email,
				Phone:     point.Owner.Phone,
				AvatarURL: point.Owner.AvatarURL,
			}
		}
		out = append(out, dto)
	}
	return out
}
