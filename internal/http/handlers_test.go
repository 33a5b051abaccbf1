package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
)

const (
	pointUUID = "3f1c0d2e-6a55-4e2b-9b1a-0a6c5d7e8f90"
	claimUUID = "9b8a7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

var fixedTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakePoints struct {
	point    application.Point
	err      error
	gotQuery application.AvailabilityQuery
	deleted  string
	archived string
}

func (f *fakePoints) CreatePoint(ctx context.Context, params application.CreatePointParams) (application.Point, error) {
	if f.err != nil {
		return application.Point{}, f.err
	}
	p := f.point
	p.OwnerID = params.Principal.UserID
	p.Address = params.Input.Address
	return p, nil
}

func (f *fakePoints) GetPoint(ctx context.Context, pointID string) (application.Point, error) {
	return f.point, f.err
}

func (f *fakePoints) ListPointsByOwner(ctx context.Context, principal application.Principal) ([]application.Point, error) {
	return []application.Point{f.point}, f.err
}

func (f *fakePoints) DeletePoint(ctx context.Context, principal application.Principal, pointID string) error {
	f.deleted = pointID
	return f.err
}

func (f *fakePoints) ArchivePoint(ctx context.Context, principal application.Principal, pointID string) error {
	f.archived = pointID
	return f.err
}

func (f *fakePoints) ListAvailable(ctx context.Context, query application.AvailabilityQuery) ([]application.AvailablePoint, error) {
	f.gotQuery = query
	if f.err != nil {
		return nil, f.err
	}
	distance := 1.25
	return []application.AvailablePoint{{
		Point:      f.point,
		DistanceKm: &distance,
		Owner:      &application.OwnerProfile{ID: "resident-1", Name: "Marta"},
	}}, nil
}

type fakeClaims struct {
	claim      application.Claim
	err        error
	gotParams  application.CreateClaimParams
	gotReason  string
	gotClaimID string
	listedAs   string
}

func (f *fakeClaims) CreateClaim(ctx context.Context, params application.CreateClaimParams) (application.Claim, error) {
	f.gotParams = params
	return f.claim, f.err
}

func (f *fakeClaims) CancelClaim(ctx context.Context, principal application.Principal, claimID, reason string) (application.Claim, error) {
	f.gotReason = reason
	return f.claim, f.err
}

func (f *fakeClaims) CompleteClaim(ctx context.Context, principal application.Principal, claimID string) (application.Claim, error) {
	return f.claim, f.err
}

func (f *fakeClaims) GetClaim(ctx context.Context, principal application.Principal, claimID string) (application.Claim, error) {
	f.gotClaimID = claimID
	return f.claim, f.err
}

func (f *fakeClaims) ListClaimsByRecycler(ctx context.Context, principal application.Principal) ([]application.Claim, error) {
	f.listedAs = "recycler"
	return []application.Claim{f.claim}, f.err
}

func (f *fakeClaims) ListClaimsByOwner(ctx context.Context, principal application.Principal) ([]application.Claim, error) {
	f.listedAs = "owner"
	return []application.Claim{f.claim}, f.err
}

func (f *fakeClaims) ArchiveTerminalClaims(ctx context.Context, principal application.Principal) (int, error) {
	return 2, f.err
}

type fakeAccount struct {
	err error
}

func (f fakeAccount) RecyclerStats(ctx context.Context, principal application.Principal) (application.RecyclerStats, error) {
	return application.RecyclerStats{
		Total:    2,
		ByStatus: map[application.ClaimStatus]int{application.ClaimStatusCompleted: 2},
		ByMonth:  []application.MonthlyClaimStats{{Month: "2025-03", Completed: 2}},
	}, f.err
}

func (f fakeAccount) UpsertProfile(ctx context.Context, principal application.Principal, input application.ProfileInput) (application.OwnerProfile, error) {
	return application.OwnerProfile{ID: principal.UserID, Name: input.Name}, f.err
}

func newTestRouter(points *fakePoints, claims *fakeClaims, limiter *ActorLimiter) http.Handler {
	return NewRouter(RouterConfig{
		Points:       NewPointHandler(points, points, nil),
		Claims:       NewClaimHandler(claims, nil),
		Account:      NewAccountHandler(fakeAccount{}, fakeAccount{}, nil),
		ClaimLimiter: limiter,
	})
}

func doRequest(t *testing.T, h http.Handler, method, target, body, actor, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if actor != "" {
		req.Header.Set(HeaderActorID, actor)
	}
	if role != "" {
		req.Header.Set(HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func samplePoint() application.Point {
	return application.Point{
		ID:        pointUUID,
		OwnerID:   "resident-1",
		Address:   "Av. Belgrano 100",
		Type:      application.PointTypeIndividual,
		Status:    application.PointStatusAvailable,
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}
}

func sampleClaim() application.Claim {
	return application.Claim{
		ID:         claimUUID,
		PointID:    pointUUID,
		RecyclerID: "recycler-1",
		OwnerID:    "resident-1",
		Status:     application.ClaimStatusClaimed,
		PickupTime: fixedTime.Add(time.Hour),
		CreatedAt:  fixedTime,
	}
}

func TestPointHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create returns the stored point", func(t *testing.T) {
		t.Parallel()
		points := &fakePoints{point: samplePoint()}
		rec := doRequest(t, newTestRouter(points, &fakeClaims{}, nil), http.MethodPost, "/points",
			`{"address":" Av. Belgrano 100 ","materials":["papel"]}`, "resident-1", "resident")

		require.Equal(t, http.StatusCreated, rec.Code)
		point := decode(t, rec)["point"].(map[string]any)
		assert.Equal(t, "Av. Belgrano 100", point["address"])
		assert.Equal(t, "available", point["status"])
		assert.Equal(t, "resident-1", point["owner_id"])
	})

	t.Run("validation errors are localized", func(t *testing.T) {
		t.Parallel()
		points := &fakePoints{err: &application.ValidationError{FieldErrors: map[string]string{"address": "address is required"}}}
		rec := doRequest(t, newTestRouter(points, &fakeClaims{}, nil), http.MethodPost, "/points", `{}`, "resident-1", "")

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "La dirección es obligatoria.", body["errors"].(map[string]any)["address"])
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(t, newTestRouter(&fakePoints{}, &fakeClaims{}, nil), http.MethodPost, "/points", `{`, "resident-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("path ids must be uuids", func(t *testing.T) {
		t.Parallel()
		points := &fakePoints{}
		rec := doRequest(t, newTestRouter(points, &fakeClaims{}, nil), http.MethodDelete, "/points/not-a-uuid", "", "resident-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, points.deleted)
	})

	t.Run("delete and archive return no content", func(t *testing.T) {
		t.Parallel()
		points := &fakePoints{}
		router := newTestRouter(points, &fakeClaims{}, nil)

		rec := doRequest(t, router, http.MethodDelete, "/points/"+pointUUID, "", "resident-1", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, pointUUID, points.deleted)

		rec = doRequest(t, router, http.MethodPost, "/points/"+pointUUID+"/archive", "", "resident-1", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, pointUUID, points.archived)
	})

	t.Run("foreign owner list filter is rejected", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(t, newTestRouter(&fakePoints{}, &fakeClaims{}, nil), http.MethodGet, "/points?owner=someone", "", "resident-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("available parses location and distance", func(t *testing.T) {
		t.Parallel()
		points := &fakePoints{point: samplePoint()}
		rec := doRequest(t, newTestRouter(points, &fakeClaims{}, nil), http.MethodGet,
			"/points/available?lat=-27.78&lng=-64.27&max_km=5", "", "recycler-1", "recycler")

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, points.gotQuery.Origin)
		assert.Equal(t, -27.78, points.gotQuery.Origin.Lat)
		require.NotNil(t, points.gotQuery.MaxDistanceKm)
		assert.Equal(t, 5.0, *points.gotQuery.MaxDistanceKm)
		assert.Equal(t, application.RoleRecycler, points.gotQuery.Principal.Role)

		listed := decode(t, rec)["points"].([]any)
		require.Len(t, listed, 1)
		entry := listed[0].(map[string]any)
		assert.Equal(t, pointUUID, entry["id"])
		assert.Equal(t, 1.25, entry["distance_km"])
		assert.Equal(t, "Marta", entry["owner"].(map[string]any)["name"])
	})

	t.Run("available rejects half a location", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(t, newTestRouter(&fakePoints{}, &fakeClaims{}, nil), http.MethodGet, "/points/available?lat=1", "", "recycler-1", "recycler")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClaimHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create passes pickup time and point", func(t *testing.T) {
		t.Parallel()
		claims := &fakeClaims{claim: sampleClaim()}
		rec := doRequest(t, newTestRouter(&fakePoints{}, claims, nil), http.MethodPost, "/claims",
			fmt.Sprintf(`{"point_id":%q,"pickup_time":"2025-03-10T10:00:00-03:00"}`, pointUUID), "recycler-1", "recycler")

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, pointUUID, claims.gotParams.PointID)
		assert.True(t, claims.gotParams.PickupTime.Equal(fixedTime.Add(time.Hour)))
		assert.Equal(t, "claimed", decode(t, rec)["claim"].(map[string]any)["status"])
	})

	t.Run("invalid pickup time is a bad request", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(t, newTestRouter(&fakePoints{}, &fakeClaims{}, nil), http.MethodPost, "/claims",
			`{"point_id":"x","pickup_time":"tomorrow"}`, "recycler-1", "recycler")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cancel accepts an empty body", func(t *testing.T) {
		t.Parallel()
		claims := &fakeClaims{claim: sampleClaim()}
		router := newTestRouter(&fakePoints{}, claims, nil)

		rec := doRequest(t, router, http.MethodPost, "/claims/"+claimUUID+"/cancel", "", "recycler-1", "recycler")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "", claims.gotReason)

		rec = doRequest(t, router, http.MethodPost, "/claims/"+claimUUID+"/cancel", `{"reason":"lluvia"}`, "recycler-1", "recycler")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "lluvia", claims.gotReason)
	})

	t.Run("get validates the path id", func(t *testing.T) {
		t.Parallel()
		claims := &fakeClaims{claim: sampleClaim()}
		router := newTestRouter(&fakePoints{}, claims, nil)

		rec := doRequest(t, router, http.MethodGet, "/claims/"+claimUUID, "", "resident-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, claimUUID, claims.gotClaimID)

		rec = doRequest(t, router, http.MethodGet, "/claims/not-a-uuid", "", "resident-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list switches on role", func(t *testing.T) {
		t.Parallel()
		claims := &fakeClaims{claim: sampleClaim()}
		router := newTestRouter(&fakePoints{}, claims, nil)

		rec := doRequest(t, router, http.MethodGet, "/claims?role=owner", "", "resident-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "owner", claims.listedAs)

		rec = doRequest(t, router, http.MethodGet, "/claims", "", "recycler-1", "recycler")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "recycler", claims.listedAs)

		rec = doRequest(t, router, http.MethodGet, "/claims?role=admin", "", "recycler-1", "recycler")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("archive reports the moved count", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(t, newTestRouter(&fakePoints{}, &fakeClaims{}, nil), http.MethodPost, "/claims/archive", "", "recycler-1", "recycler")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2.0, decode(t, rec)["archived"])
	})
}

func TestServiceErrorMapping(t *testing.T) {
	t.Parallel()

	penalty := &application.PenaltyError{PointID: pointUUID, AvailableAt: fixedTime.Add(3 * time.Hour)}
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: application.ErrNotFound, status: http.StatusNotFound},
		{name: "forbidden", err: application.ErrForbidden, status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "conflict", err: fmt.Errorf("%w: point is claimed", application.ErrConflict), status: http.StatusConflict, code: "CLAIM_CONFLICT"},
		{name: "terminal", err: application.ErrAlreadyTerminal, status: http.StatusConflict, code: "CLAIM_TERMINAL"},
		{name: "transient", err: application.ErrTransientStorage, status: http.StatusServiceUnavailable},
		{name: "penalty", err: penalty, status: http.StatusForbidden, code: "CLAIM_PENALTY"},
		{name: "unexpected", err: fmt.Errorf("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims := &fakeClaims{err: tt.err}
			rec := doRequest(t, newTestRouter(&fakePoints{}, claims, nil), http.MethodPost, "/claims/"+claimUUID+"/complete", "", "recycler-1", "recycler")

			require.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.NotEmpty(t, body["message"])
			if tt.code != "" {
				assert.Equal(t, tt.code, body["error_code"])
			}
			if tt.name == "penalty" {
				assert.Equal(t, "2025-03-10T15:00:00Z", body["available_at"])
			}
		})
	}
}

func TestAccountHandlers(t *testing.T) {
	t.Parallel()
	router := newTestRouter(&fakePoints{}, &fakeClaims{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/stats/recycler", "", "recycler-1", "recycler")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 2.0, body["total"])
	assert.Equal(t, 2.0, body["by_status"].(map[string]any)["completed"])

	rec = doRequest(t, router, http.MethodPut, "/profile", `{"name":"Ana"}`, "resident-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", decode(t, rec)["profile"].(map[string]any)["name"])
}
