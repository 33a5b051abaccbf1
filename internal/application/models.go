package application

import (
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/geo"
)

// Actor roles carried by Principal.
const (
	RoleResident    = "resident"
	RoleRecycler    = "recycler"
	RoleInstitution = "institution"
)

// Principal represents the authenticated actor invoking a service method.
type Principal struct {
	UserID string
	Role   string
}

// PointType distinguishes resident points from institutional ones.
type PointType string

const (
	PointTypeIndividual PointType = "individual"
	PointTypeCollective PointType = "colective_point"
)

// PointStatus is the status of a point as derived from its latest claim.
type PointStatus string

const (
	PointStatusAvailable PointStatus = "available"
	PointStatusClaimed   PointStatus = "claimed"
	PointStatusCompleted PointStatus = "completed"
)

// ClaimStatus is the state of a claim.
type ClaimStatus string

const (
	ClaimStatusClaimed   ClaimStatus = "claimed"
	ClaimStatusCompleted ClaimStatus = "completed"
	ClaimStatusCancelled ClaimStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusCompleted || s == ClaimStatusCancelled
}

// PointInput captures caller provided point attributes.
type PointInput struct {
	Address   string
	District  string
	Schedule  string
	Lat       *float64
	Lng       *float64
	Materials []string
	Type      PointType
	PhotoURL  *string
	Notes     string
}

// Point is a collection point together with its derived status.
type Point struct {
	ID          string
	OwnerID     string
	Address     string
	District    string
	Schedule    string
	Location    *geo.Coordinate
	Materials   []string
	Type        PointType
	Status      PointStatus
	PhotoURL    *string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LatestClaim *Claim
}

// Claim is a recycler's commitment to collect from a point.
type Claim struct {
	ID                 string
	PointID            string
	RecyclerID         string
	OwnerID            string
	Status             ClaimStatus
	PickupTime         time.Time
	CreatedAt          time.Time
	CancelledAt        *time.Time
	CancellationReason *string
	CompletedAt        *time.Time
}

// CreatePointParams wraps the data required to create a point.
type CreatePointParams struct {
	Principal Principal
	Input     PointInput
}

// CreateClaimParams wraps the data required to claim a point. OwnerID may be
// left empty, in which case the point's owner is used.
type CreateClaimParams struct {
	Principal  Principal
	PointID    string
	OwnerID    string
	PickupTime time.Time
}

// OwnerProfile is the display information attached to availability results.
type OwnerProfile struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	AvatarURL string
}

// ProfileInput captures the caller's display profile.
type ProfileInput struct {
	Name      string
	Email     string
	Phone     string
	AvatarURL string
}

// AvailabilityQuery wraps the parameters of an availability listing.
type AvailabilityQuery struct {
	Principal     Principal
	Origin        *geo.Coordinate
	MaxDistanceKm *float64
}

// AvailablePoint is a claimable point ranked for the requesting recycler.
type AvailablePoint struct {
	Point
	DistanceKm *float64
	Owner      *OwnerProfile
}

// MonthlyClaimStats counts a recycler's claims created in one month.
type MonthlyClaimStats struct {
	Month     string
	Claimed   int
	Completed int
	Cancelled int
}

// RecyclerStats aggregates a recycler's claim history.
type RecyclerStats struct {
	Total    int
	ByStatus map[ClaimStatus]int
	ByMonth  []MonthlyClaimStats
}

// ClaimEventType names a claim transition published to subscribers.
type ClaimEventType string

const (
	ClaimEventCreated   ClaimEventType = "claim.created"
	ClaimEventCancelled ClaimEventType = "claim.cancelled"
	ClaimEventCompleted ClaimEventType = "claim.completed"
)

// ClaimEvent describes a claim transition.
type ClaimEvent struct {
	Type       ClaimEventType
	ClaimID    string
	PointID    string
	RecyclerID string
	OwnerID    string
	Status     ClaimStatus
	Reason     string
	OccurredAt time.Time
}
