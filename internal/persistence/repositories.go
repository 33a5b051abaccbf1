package persistence

import (
	"context"
	"time"
)

// PointRepository stores collection points.
type PointRepository interface {
	CreatePoint(ctx context.Context, point CollectionPoint) error
	GetPoint(ctx context.Context, id string) (CollectionPoint, error)
	ListPointsByOwner(ctx context.Context, ownerID string) ([]CollectionPoint, error)
	ListPointsByType(ctx context.Context, pointType string) ([]CollectionPoint, error)
	ListPoints(ctx context.Context) ([]CollectionPoint, error)
	// DeletePoint and ArchivePoint remove the point only while it holds no
	// claimed row, failing with ErrLiveClaim otherwise and ErrNotFound when
	// the point is absent.
	DeletePoint(ctx context.Context, id string) error
	ArchivePoint(ctx context.Context, id string, archivedAt time.Time) error
}

// ClaimFilter narrows claim listings.
type ClaimFilter struct {
	RecyclerID     string
	OwnerID        string
	Status         string
	CancelledAfter *time.Time
}

// ClaimRepository stores claim rows and performs conditional status transitions.
type ClaimRepository interface {
	// CreateClaim fails with ErrDuplicate when the point already holds a claimed row.
	CreateClaim(ctx context.Context, claim Claim) error
	GetClaim(ctx context.Context, id string) (Claim, error)
	// LatestClaimsForPoints returns the newest claim per point, keyed by point id.
	LatestClaimsForPoints(ctx context.Context, pointIDs []string) (map[string]Claim, error)
	ListClaims(ctx context.Context, filter ClaimFilter) ([]Claim, error)
	// CancelClaim and CompleteClaim only move rows out of status claimed and
	// report ErrNotFound when no claimed row matched.
	CancelClaim(ctx context.Context, id string, reason string, at time.Time) error
	CompleteClaim(ctx context.Context, id string, at time.Time) error
	// ArchiveTerminalClaims moves the recycler's completed rows and the
	// cancelled rows older than cancelledBefore into the archive table and
	// returns how many were moved.
	ArchiveTerminalClaims(ctx context.Context, recyclerID string, cancelledBefore, archivedAt time.Time) (int, error)
}

// ProfileRepository stores display profiles.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, profile Profile) error
	GetProfiles(ctx context.Context, ids []string) (map[string]Profile, error)
}
