package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
)

func TestServiceFactoryWiresHarness(t *testing.T) {
	factory := NewServiceFactory()
	harness := NewSQLiteHarness(t)
	svc := factory.NewServices(harness, nil)

	owner := Resident("resident-1")
	point, err := svc.Points.CreatePoint(context.Background(), applicationPointParams(owner))
	if err != nil {
		t.Fatalf("CreatePoint returned error: %v", err)
	}
	if point.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", point.ID)
	}
	if !point.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), point.CreatedAt)
	}

	factory.Clock.Advance(time.Minute)
	claim, err := svc.Claims.CreateClaim(context.Background(), claimParams(Recycler("recycler-1"), point.ID))
	if err != nil {
		t.Fatalf("CreateClaim returned error: %v", err)
	}
	if claim.ID != "id-2" || claim.OwnerID != owner.UserID {
		t.Fatalf("unexpected claim %+v", claim)
	}
}

func applicationPointParams(owner application.Principal) application.CreatePointParams {
	return application.CreatePointParams{Principal: owner, Input: NewPointFixture().Input()}
}

func claimParams(recycler application.Principal, pointID string) application.CreateClaimParams {
	return application.CreateClaimParams{Principal: recycler, PointID: pointID, PickupTime: ReferenceTime().Add(2 * time.Hour)}
}
