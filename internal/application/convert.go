package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/geo"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

func toPoint(model persistence.CollectionPoint, latest *persistence.Claim) Point {
	point := Point{
		ID:        model.ID,
		OwnerID:   model.OwnerID,
		Address:   model.Address,
		District:  model.District,
		Schedule:  model.Schedule,
		Materials: append([]string(nil), model.Materials...),
		Type:      PointType(model.Type),
		PhotoURL:  cloneString(model.PhotoURL),
		Notes:     model.Notes,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if model.Lat != nil && model.Lng != nil {
		point.Location = &geo.Coordinate{Lat: *model.Lat, Lng: *model.Lng}
	}
	if latest != nil {
		claim := toClaim(*latest)
		point.LatestClaim = &claim
	}
	point.Status = derivePointStatus(point.LatestClaim)
	return point
}

// derivePointStatus projects the latest claim onto the point. A cancelled
// latest claim leaves the point available.
func derivePointStatus(latest *Claim) PointStatus {
	if latest == nil {
		return PointStatusAvailable
	}
	switch latest.Status {
	case ClaimStatusClaimed:
		return PointStatusClaimed
	case ClaimStatusCompleted:
		return PointStatusCompleted
	default:
		return PointStatusAvailable
	}
}

func toClaim(model persistence.Claim) Claim {
	return Claim{
		ID:                 model.ID,
		PointID:            model.PointID,
		RecyclerID:         model.RecyclerID,
		OwnerID:            model.OwnerID,
		Status:             ClaimStatus(model.Status),
		PickupTime:         model.PickupTime,
		CreatedAt:          model.CreatedAt,
		CancelledAt:        cloneTime(model.CancelledAt),
		CancellationReason: cloneString(model.CancellationReason),
		CompletedAt:        cloneTime(model.CompletedAt),
	}
}

func toClaims(models []persistence.Claim) []Claim {
	if len(models) == 0 {
		return nil
	}
	claims := make([]Claim, 0, len(models))
	for _, model := range models {
		claims = append(claims, toClaim(model))
	}
	return claims
}

// mapRepoError converts persistence sentinels into application errors while
// keeping the storage error in the chain for logging.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate), errors.Is(err, persistence.ErrLiveClaim):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, persistence.ErrTransient):
		return fmt.Errorf("%w: %w", ErrTransientStorage, err)
	case errors.Is(err, persistence.ErrConstraintViolation), errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("record", "violates a storage constraint")
		return vErr
	}
	return err
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
