// Package testfixtures provides deterministic fixtures, clocks, and storage
// harnesses shared by package tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
)

var (
	pointCounter uint64
	claimCounter uint64
)

var referenceTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Recycler returns a principal acting as a recycler.
func Recycler(id string) application.Principal {
	return application.Principal{UserID: id, Role: application.RoleRecycler}
}

// Resident returns a principal acting as a resident.
func Resident(id string) application.Principal {
	return application.Principal{UserID: id, Role: application.RoleResident}
}

// Institution returns a principal acting as an institutional point owner.
func Institution(id string) application.Principal {
	return application.Principal{UserID: id, Role: application.RoleInstitution}
}

// ----------------------------- Point fixtures ----------------------------

// PointFixture represents a deterministic collection point.
type PointFixture struct {
	ID        string
	OwnerID   string
	Address   string
	District  string
	Schedule  string
	Lat       *float64
	Lng       *float64
	Materials []string
	Type      string
	Notes     string
	CreatedAt time.Time
}

// PointOption configures the generated point fixture.
type PointOption func(*PointFixture)

// NewPointFixture returns a deterministic point in Santiago del Estero with
// optional overrides.
func NewPointFixture(opts ...PointOption) PointFixture {
	idx := atomic.AddUint64(&pointCounter, 1)
	lat, lng := -27.78, -64.27
	fixture := PointFixture{
		ID:        fmt.Sprintf("point-%03d", idx),
		OwnerID:   fmt.Sprintf("resident-%03d", idx),
		Address:   fmt.Sprintf("Av. Belgrano %d", 100+idx),
		District:  "Centro",
		Schedule:  "Lunes a viernes 9-12",
		Lat:       &lat,
		Lng:       &lng,
		Materials: []string{"papel", "carton"},
		Type:      persistence.PointTypeIndividual,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPointID overrides the generated point ID.
func WithPointID(id string) PointOption {
	return func(f *PointFixture) { f.ID = id }
}

// WithPointOwner overrides the owner.
func WithPointOwner(ownerID string) PointOption {
	return func(f *PointFixture) { f.OwnerID = ownerID }
}

// WithPointAddress overrides the address.
func WithPointAddress(address string) PointOption {
	return func(f *PointFixture) { f.Address = address }
}

// WithPointLocation sets the coordinates.
func WithPointLocation(lat, lng float64) PointOption {
	return func(f *PointFixture) {
		f.Lat = &lat
		f.Lng = &lng
	}
}

// WithoutPointLocation clears the coordinates.
func WithoutPointLocation() PointOption {
	return func(f *PointFixture) {
		f.Lat = nil
		f.Lng = nil
	}
}

// WithPointInstitutional marks the point as an institutional collection point.
func WithPointInstitutional() PointOption {
	return func(f *PointFixture) { f.Type = persistence.PointTypeCollective }
}

// WithPointCreatedAt sets the creation timestamp.
func WithPointCreatedAt(t time.Time) PointOption {
	return func(f *PointFixture) { f.CreatedAt = t }
}

// Persistence returns the fixture as a persistence.CollectionPoint value.
func (f PointFixture) Persistence() persistence.CollectionPoint {
	return persistence.CollectionPoint{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Address:   f.Address,
		District:  f.District,
		Schedule:  f.Schedule,
		Lat:       copyFloatPtr(f.Lat),
		Lng:       copyFloatPtr(f.Lng),
		Materials: append([]string(nil), f.Materials...),
		Type:      f.Type,
		Status:    persistence.PointStatusAvailable,
		Notes:     f.Notes,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Input returns the fixture as an application.PointInput.
func (f PointFixture) Input() application.PointInput {
	return application.PointInput{
		Address:   f.Address,
		District:  f.District,
		Schedule:  f.Schedule,
		Lat:       copyFloatPtr(f.Lat),
		Lng:       copyFloatPtr(f.Lng),
		Materials: append([]string(nil), f.Materials...),
		Type:      application.PointType(f.Type),
		Notes:     f.Notes,
	}
}

// ----------------------------- Claim fixtures ----------------------------

// ClaimFixture represents a deterministic claim row.
type ClaimFixture struct {
	ID          string
	PointID     string
	RecyclerID  string
	OwnerID     string
	Status      string
	PickupTime  time.Time
	CreatedAt   time.Time
	CancelledAt *time.Time
	Reason      *string
	CompletedAt *time.Time
}

// ClaimOption configures the generated claim fixture.
type ClaimOption func(*ClaimFixture)

// NewClaimFixture returns a live claim on point by recycler.
func NewClaimFixture(point PointFixture, recyclerID string, opts ...ClaimOption) ClaimFixture {
	idx := atomic.AddUint64(&claimCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ClaimFixture{
		ID:         fmt.Sprintf("claim-%03d", idx),
		PointID:    point.ID,
		RecyclerID: recyclerID,
		OwnerID:    point.OwnerID,
		Status:     persistence.ClaimStatusClaimed,
		PickupTime: created.Add(time.Hour),
		CreatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithClaimID overrides the claim ID.
func WithClaimID(id string) ClaimOption {
	return func(f *ClaimFixture) { f.ID = id }
}

// WithClaimCreatedAt sets the creation timestamp.
func WithClaimCreatedAt(t time.Time) ClaimOption {
	return func(f *ClaimFixture) { f.CreatedAt = t }
}

// WithClaimCancelled marks the claim cancelled at t with reason.
func WithClaimCancelled(t time.Time, reason string) ClaimOption {
	return func(f *ClaimFixture) {
		f.Status = persistence.ClaimStatusCancelled
		f.CancelledAt = &t
		f.Reason = &reason
	}
}

// WithClaimCompleted marks the claim completed at t.
func WithClaimCompleted(t time.Time) ClaimOption {
	return func(f *ClaimFixture) {
		f.Status = persistence.ClaimStatusCompleted
		f.CompletedAt = &t
	}
}

// Persistence returns the fixture as a persistence.Claim value.
func (f ClaimFixture) Persistence() persistence.Claim {
	return persistence.Claim{
		ID:                 f.ID,
		PointID:            f.PointID,
		RecyclerID:         f.RecyclerID,
		OwnerID:            f.OwnerID,
		Status:             f.Status,
		PickupTime:         f.PickupTime,
		CreatedAt:          f.CreatedAt,
		CancelledAt:        copyTimePtr(f.CancelledAt),
		CancellationReason: copyStringPtr(f.Reason),
		CompletedAt:        copyTimePtr(f.CompletedAt),
	}
}

func copyFloatPtr(src *float64) *float64 {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
