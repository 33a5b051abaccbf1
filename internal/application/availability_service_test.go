package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/geo"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
	"github.com/crisferre80/gestion-politica-sub000/internal/testfixtures"
)

type failingTypeLookup struct {
	persistence.PointRepository
}

func (failingTypeLookup) ListPointsByType(context.Context, string) ([]persistence.CollectionPoint, error) {
	return nil, persistence.ErrTransient
}

type failingProfiles struct{}

func (failingProfiles) UpsertProfile(context.Context, persistence.Profile) error {
	return persistence.ErrTransient
}

func (failingProfiles) GetProfiles(context.Context, []string) (map[string]persistence.Profile, error) {
	return nil, persistence.ErrTransient
}

func ids(points []application.AvailablePoint) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, p.ID)
	}
	return out
}

func TestAvailabilityService_RanksByDistance(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	harness := testfixtures.NewSQLiteHarness(t)
	services := factory.NewServices(harness, nil)

	far := testfixtures.NewPointFixture(testfixtures.WithPointLocation(-27.90, -64.27))
	near := testfixtures.NewPointFixture(testfixtures.WithPointLocation(-27.781, -64.27))
	unknown := testfixtures.NewPointFixture(testfixtures.WithoutPointLocation())
	claimed := testfixtures.NewPointFixture()
	harness.SeedPoints(t, far, near, unknown, claimed)
	harness.SeedClaims(t, testfixtures.NewClaimFixture(claimed, "recycler-9"))
	harness.SeedProfiles(t, persistence.Profile{ID: near.OwnerID, Name: "Marta", Role: application.RoleResident})

	origin := &geo.Coordinate{Lat: -27.78, Lng: -64.27}
	points, err := services.Availability.ListAvailable(context.Background(), application.AvailabilityQuery{
		Principal: testfixtures.Recycler("recycler-1"),
		Origin:    origin,
	})
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	got := ids(points)
	want := []string{near.ID, far.ID, unknown.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if points[0].DistanceKm == nil || *points[0].DistanceKm > 0.2 {
		t.Fatalf("expected near distance about 0.1 km, got %v", points[0].DistanceKm)
	}
	if points[2].DistanceKm != nil {
		t.Fatalf("expected no distance for a point without coordinates")
	}
	if points[0].Owner == nil || points[0].Owner.Name != "Marta" {
		t.Fatalf("expected owner profile attached, got %+v", points[0].Owner)
	}
	if points[1].Owner != nil {
		t.Fatalf("expected no profile for an owner without one")
	}

	limited, err := services.Availability.ListAvailable(context.Background(), application.AvailabilityQuery{
		Principal:     testfixtures.Recycler("recycler-1"),
		Origin:        origin,
		MaxDistanceKm: floatPtr(5),
	})
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	if got := ids(limited); len(got) != 2 || got[0] != near.ID || got[1] != unknown.ID {
		t.Fatalf("expected far point dropped by the limit, got %v", got)
	}
}

func TestAvailabilityService_InstitutionalSuppression(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	shared := "Escuela N 12, Belgrano 800"
	resident := testfixtures.NewPointFixture(testfixtures.WithPointAddress(shared))
	institution := testfixtures.NewPointFixture(testfixtures.WithPointAddress(shared), testfixtures.WithPointInstitutional())
	other := testfixtures.NewPointFixture()
	harness.SeedPoints(t, resident, institution, other)

	services := factory.NewServices(harness, nil)
	points, err := services.Availability.ListAvailable(ctx, application.AvailabilityQuery{Principal: testfixtures.Recycler("recycler-1")})
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	if got := ids(points); len(got) != 2 || got[0] != institution.ID || got[1] != other.ID {
		t.Fatalf("expected resident point at institutional address hidden, got %v", got)
	}

	degraded := application.NewAvailabilityService(failingTypeLookup{harness.Points}, harness.Claims, failingProfiles{},
		factory.Clock.NowFunc(), application.AvailabilityOptions{})
	points, err = degraded.ListAvailable(ctx, application.AvailabilityQuery{Principal: testfixtures.Recycler("recycler-1")})
	if err != nil {
		t.Fatalf("expected lookups to degrade, got %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected suppression skipped when lookup fails, got %v", ids(points))
	}
	for _, p := range points {
		if p.Owner != nil {
			t.Fatalf("expected no owners when profile lookup fails")
		}
	}
}

func TestAvailabilityService_DefaultMaxDistance(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	harness := testfixtures.NewSQLiteHarness(t)
	far := testfixtures.NewPointFixture(testfixtures.WithPointLocation(-26.0, -64.27))
	harness.SeedPoints(t, far)

	service := application.NewAvailabilityService(harness.Points, harness.Claims, harness.Profiles,
		factory.Clock.NowFunc(), application.AvailabilityOptions{DefaultMaxDistanceKm: 50})
	points, err := service.ListAvailable(context.Background(), application.AvailabilityQuery{
		Principal: testfixtures.Recycler("recycler-1"),
		Origin:    &geo.Coordinate{Lat: -27.78, Lng: -64.27},
	})
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected default limit to drop the far point, got %v", ids(points))
	}
}

func TestAvailabilityService_SeededPenalty(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	harness := testfixtures.NewSQLiteHarness(t)
	services := factory.NewServices(harness, nil)

	point := testfixtures.NewPointFixture()
	base := testfixtures.ReferenceTime()
	harness.SeedPoints(t, point)
	harness.SeedClaims(t, testfixtures.NewClaimFixture(point, "recycler-1",
		testfixtures.WithClaimCreatedAt(base.Add(-time.Hour)),
		testfixtures.WithClaimCancelled(base.Add(-time.Minute), "otro turno")))

	query := application.AvailabilityQuery{Principal: testfixtures.Recycler("recycler-1")}
	points, err := services.Availability.ListAvailable(context.Background(), query)
	if err != nil || len(points) != 0 {
		t.Fatalf("expected penalized point hidden, got %v (%v)", ids(points), err)
	}

	factory.Clock.Set(base.Add(-time.Minute).Add(3 * time.Hour))
	points, err = services.Availability.ListAvailable(context.Background(), query)
	if err != nil || len(points) != 1 {
		t.Fatalf("expected point visible once the penalty lapses, got %v (%v)", ids(points), err)
	}
}

func TestAvailabilityService_Validation(t *testing.T) {
	services := testfixtures.NewServiceFactory().NewServices(testfixtures.NewSQLiteHarness(t), nil)

	_, err := services.Availability.ListAvailable(context.Background(), application.AvailabilityQuery{
		Principal:     testfixtures.Recycler("recycler-1"),
		Origin:        &geo.Coordinate{Lat: 120},
		MaxDistanceKm: floatPtr(-1),
	})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"location", "max_km"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestAvailabilityService_CachesInstitutionalAddresses(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	shared := "Club Mitre, Rivadavia 50"
	resident := testfixtures.NewPointFixture(testfixtures.WithPointAddress(shared))
	institution := testfixtures.NewPointFixture(testfixtures.WithPointAddress(shared), testfixtures.WithPointInstitutional())
	harness.SeedPoints(t, resident, institution)

	service := application.NewAvailabilityService(harness.Points, harness.Claims, harness.Profiles,
		factory.Clock.NowFunc(), application.AvailabilityOptions{InstitutionalCacheTTL: time.Minute})
	query := application.AvailabilityQuery{Principal: testfixtures.Recycler("recycler-1")}

	points, err := service.ListAvailable(ctx, query)
	if err != nil || len(points) != 1 {
		t.Fatalf("expected only the institutional point, got %v (%v)", ids(points), err)
	}

	if err := harness.Points.DeletePoint(ctx, institution.ID); err != nil {
		t.Fatalf("DeletePoint returned error: %v", err)
	}
	points, err = service.ListAvailable(ctx, query)
	if err != nil || len(points) != 0 {
		t.Fatalf("expected cached address to keep suppressing, got %v (%v)", ids(points), err)
	}

	factory.Clock.Advance(2 * time.Minute)
	points, err = service.ListAvailable(ctx, query)
	if err != nil || len(points) != 1 || points[0].ID != resident.ID {
		t.Fatalf("expected resident point once the cache expires, got %v (%v)", ids(points), err)
	}
}
