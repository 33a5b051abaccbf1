package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/geo"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

// PointService owns collection points. Status is never stored beyond
// creation; it is read through the latest claim of each point.
type PointService struct {
	points      persistence.PointRepository
	claims      persistence.ClaimRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPointService constructs a point service with the provided dependencies.
func NewPointService(points persistence.PointRepository, claims persistence.ClaimRepository, idGenerator func() string, now func() time.Time) *PointService {
	return NewPointServiceWithLogger(points, claims, idGenerator, now, nil)
}

// NewPointServiceWithLogger constructs a point service with a specified logger.
func NewPointServiceWithLogger(points persistence.PointRepository, claims persistence.ClaimRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PointService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PointService{points: points, claims: claims, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *PointService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PointService", operation, attrs...)
}

// CreatePoint validates input and stores a new point owned by the principal.
func (s *PointService) CreatePoint(ctx context.Context, params CreatePointParams) (point Point, err error) {
	if s == nil {
		err = fmt.Errorf("PointService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreatePoint",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create point", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("point_id", point.ID).InfoContext(ctx, "point created")
	}()

	vErr := validatePointInput(params.Principal, params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	created := s.now().UTC()
	model := persistence.CollectionPoint{
		ID:        s.idGenerator(),
		OwnerID:   params.Principal.UserID,
		Address:   strings.TrimSpace(params.Input.Address),
		District:  strings.TrimSpace(params.Input.District),
		Schedule:  strings.TrimSpace(params.Input.Schedule),
		Lat:       params.Input.Lat,
		Lng:       params.Input.Lng,
		Materials: normalizeMaterials(params.Input.Materials),
		Type:      string(params.Input.Type),
		Status:    persistence.PointStatusAvailable,
		PhotoURL:  normalizeOptionalString(params.Input.PhotoURL),
		Notes:     strings.TrimSpace(params.Input.Notes),
		CreatedAt: created,
		UpdatedAt: created,
	}
	if model.Type == "" {
		model.Type = string(PointTypeIndividual)
	}

	if err = s.points.CreatePoint(ctx, model); err != nil {
		err = mapRepoError(err)
		return
	}

	point = toPoint(model, nil)
	return
}

// GetPoint returns a point with its derived status.
func (s *PointService) GetPoint(ctx context.Context, pointID string) (Point, error) {
	if s == nil {
		return Point{}, fmt.Errorf("PointService is nil")
	}

	model, err := s.points.GetPoint(ctx, pointID)
	if err != nil {
		return Point{}, mapRepoError(err)
	}
	latest, err := s.claims.LatestClaimsForPoints(ctx, []string{pointID})
	if err != nil {
		return Point{}, mapRepoError(err)
	}
	return toPoint(model, latestOf(latest, pointID)), nil
}

// ListPointsByOwner returns the principal's points, newest first.
func (s *PointService) ListPointsByOwner(ctx context.Context, principal Principal) (points []Point, err error) {
	if s == nil {
		err = fmt.Errorf("PointService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListPointsByOwner",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list points", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(points)).DebugContext(ctx, "points listed")
	}()

	var models []persistence.CollectionPoint
	models, err = s.points.ListPointsByOwner(ctx, principal.UserID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if len(models) == 0 {
		return nil, nil
	}

	var latest map[string]persistence.Claim
	latest, err = s.claims.LatestClaimsForPoints(ctx, pointIDs(models))
	if err != nil {
		err = mapRepoError(err)
		return
	}

	points = make([]Point, 0, len(models))
	for _, model := range models {
		points = append(points, toPoint(model, latestOf(latest, model.ID)))
	}
	return
}

// DeletePoint removes a point owned by the principal. Deleting a point that
// is already gone succeeds. Claims referencing the point are kept.
func (s *PointService) DeletePoint(ctx context.Context, principal Principal, pointID string) (err error) {
	if s == nil {
		return fmt.Errorf("PointService is nil")
	}

	logger := s.loggerWith(ctx, "DeletePoint",
		"principal_id", principal.UserID,
		"point_id", pointID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete point", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "point deleted")
	}()

	var point Point
	point, err = s.GetPoint(ctx, pointID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if point.OwnerID != principal.UserID {
		return ErrForbidden
	}
	if point.Status == PointStatusClaimed {
		return fmt.Errorf("%w: point has a live claim", ErrConflict)
	}

	if err = s.points.DeletePoint(ctx, pointID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		return mapRepoError(err)
	}
	return nil
}

// ArchivePoint copies a point whose latest claim is terminal into the
// archive and removes it from the catalog.
func (s *PointService) ArchivePoint(ctx context.Context, principal Principal, pointID string) (err error) {
	if s == nil {
		return fmt.Errorf("PointService is nil")
	}

	logger := s.loggerWith(ctx, "ArchivePoint",
		"principal_id", principal.UserID,
		"point_id", pointID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to archive point", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "point archived")
	}()

	var point Point
	point, err = s.GetPoint(ctx, pointID)
	if err != nil {
		return err
	}
	if point.OwnerID != principal.UserID {
		return ErrForbidden
	}
	if point.LatestClaim == nil || !point.LatestClaim.Status.Terminal() {
		return fmt.Errorf("%w: only completed or cancelled points can be archived", ErrConflict)
	}

	return mapRepoError(s.points.ArchivePoint(ctx, pointID, s.now().UTC()))
}

func validatePointInput(principal Principal, input PointInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(principal.UserID) == "" {
		vErr.add("owner", "owner is required")
	}
	if strings.TrimSpace(input.Address) == "" {
		vErr.add("address", "address is required")
	}
	switch input.Type {
	case "", PointTypeIndividual, PointTypeCollective:
	default:
		vErr.add("type", "type must be individual or colective_point")
	}

	switch {
	case input.Lat == nil && input.Lng == nil:
	case input.Lat == nil || input.Lng == nil:
		vErr.add("location", "lat and lng must be provided together")
	default:
		vErr.merge(validateCoordinate(geo.Coordinate{Lat: *input.Lat, Lng: *input.Lng}))
	}

	return vErr
}

// validateCoordinate reports out-of-range coordinates under the location field.
func validateCoordinate(c geo.Coordinate) *ValidationError {
	if err := c.Validate(); err != nil {
		return &ValidationError{FieldErrors: map[string]string{"location": "coordinates are out of range"}}
	}
	return nil
}

func normalizeMaterials(materials []string) []string {
	seen := make(map[string]struct{}, len(materials))
	out := make([]string, 0, len(materials))
	for _, material := range materials {
		m := strings.ToLower(strings.TrimSpace(material))
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func pointIDs(models []persistence.CollectionPoint) []string {
	ids := make([]string, 0, len(models))
	for _, model := range models {
		ids = append(ids, model.ID)
	}
	return ids
}

func latestOf(latest map[string]persistence.Claim, pointID string) *persistence.Claim {
	claim, ok := latest[pointID]
	if !ok {
		return nil
	}
	return &claim
}
