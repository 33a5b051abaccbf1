// Package availability decides which collection points a recycler may claim
// and ranks them by distance. It performs no I/O; callers load points and
// claims and pass them in.
package availability

import (
	"sort"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/geo"
)

// DefaultPenaltyWindow is how long a recycler is kept away from a point they cancelled.
const DefaultPenaltyWindow = 3 * time.Hour

// Point type and claim status values understood by the filter.
const (
	TypeIndividual    = "individual"
	TypeInstitutional = "colective_point"

	StatusClaimed   = "claimed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Candidate is a collection point considered for the availability list.
type Candidate struct {
	PointID  string
	Address  string
	Type     string
	Location *geo.Coordinate
}

// ClaimRecord is the subset of a claim the filter needs.
type ClaimRecord struct {
	PointID     string
	RecyclerID  string
	Status      string
	CancelledAt *time.Time
}

// Query describes who is asking and from where.
type Query struct {
	RecyclerID    string
	Origin        *geo.Coordinate
	MaxDistanceKm *float64
	Now           time.Time
	PenaltyWindow time.Duration
}

// Input bundles the data loaded by the caller.
//
// Latest holds the newest claim per point id. Cancellations holds the
// requesting recycler's cancelled claims. InstitutionalAddresses is nil when
// the lookup was unavailable, which disables suppression.
type Input struct {
	Candidates             []Candidate
	Latest                 map[string]ClaimRecord
	Cancellations          []ClaimRecord
	InstitutionalAddresses map[string]struct{}
}

// Ranked is a candidate that survived filtering.
type Ranked struct {
	Candidate
	DistanceKm *float64
}

// Filter applies the exclusion rules in order and returns the survivors
// sorted by ascending distance. Points without a known distance keep their
// input order after every measured point.
func Filter(q Query, in Input) []Ranked {
	window := q.PenaltyWindow
	if window <= 0 {
		window = DefaultPenaltyWindow
	}
	penalized := PenalizedPoints(q.RecyclerID, in.Cancellations, q.Now, window)

	ranked := make([]Ranked, 0, len(in.Candidates))
	for _, candidate := range in.Candidates {
		if latest, ok := in.Latest[candidate.PointID]; ok && !Claimable(latest.Status) {
			continue
		}
		if _, ok := penalized[candidate.PointID]; ok {
			continue
		}
		if Suppressed(candidate, in.InstitutionalAddresses) {
			continue
		}

		entry := Ranked{Candidate: candidate}
		if q.Origin != nil && candidate.Location != nil {
			d := geo.DistanceKm(*q.Origin, *candidate.Location)
			if q.MaxDistanceKm != nil && d > *q.MaxDistanceKm {
				continue
			}
			entry.DistanceKm = &d
		}
		ranked = append(ranked, entry)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].DistanceKm, ranked[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return ranked
}

// Claimable reports whether a point whose latest claim has the given status
// may be claimed again. A point with no claim at all is claimable too.
func Claimable(latestStatus string) bool {
	return latestStatus != StatusClaimed && latestStatus != StatusCompleted
}

// PenalizedPoints returns the points the recycler cancelled inside the window
// ending at now, keyed by point id.
func PenalizedPoints(recyclerID string, cancellations []ClaimRecord, now time.Time, window time.Duration) map[string]struct{} {
	penalized := make(map[string]struct{})
	for _, claim := range cancellations {
		if _, active := PenaltyExpiry(recyclerID, claim, now, window); active {
			penalized[claim.PointID] = struct{}{}
		}
	}
	return penalized
}

// PenaltyExpiry returns when the penalty from a single cancelled claim ends
// and whether it is still in force at now. The window is half-open: at
// exactly cancelledAt+window the point is claimable again.
func PenaltyExpiry(recyclerID string, claim ClaimRecord, now time.Time, window time.Duration) (time.Time, bool) {
	if claim.RecyclerID != recyclerID || claim.Status != StatusCancelled || claim.CancelledAt == nil {
		return time.Time{}, false
	}
	expiry := claim.CancelledAt.Add(window)
	return expiry, now.Before(expiry)
}

// Suppressed reports whether an individual point shares its address with an
// institutional point.
func Suppressed(candidate Candidate, institutionalAddresses map[string]struct{}) bool {
	if candidate.Type != TypeIndividual || institutionalAddresses == nil {
		return false
	}
	_, ok := institutionalAddresses[candidate.Address]
	return ok
}
