package persistence

import "time"

// Point type values stored in collection_points.type.
const (
	PointTypeIndividual = "individual"
	PointTypeCollective = "colective_point"
)

// Claim status values stored in collection_claims.status.
const (
	ClaimStatusClaimed   = "claimed"
	ClaimStatusCompleted = "completed"
	ClaimStatusCancelled = "cancelled"
)

// PointStatusAvailable is the only status ever written to collection_points.status.
const PointStatusAvailable = "available"

// CollectionPoint is a row of collection_points.
type CollectionPoint struct {
	ID        string
	OwnerID   string
	Address   string
	District  string
	Schedule  string
	Lat       *float64
	Lng       *float64
	Materials []string
	Type      string
	Status    string
	PhotoURL  *string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Claim is a row of collection_claims.
type Claim struct {
	ID                 string
	PointID            string
	RecyclerID         string
	OwnerID            string
	Status             string
	PickupTime         time.Time
	CreatedAt          time.Time
	CancelledAt        *time.Time
	CancellationReason *string
	CompletedAt        *time.Time
}

// Profile is the display information denormalized into availability listings.
type Profile struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	AvatarURL string
	Role      string
	UpdatedAt time.Time
}
