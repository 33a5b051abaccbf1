package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/logging"
)

func TestRequireActor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		actor    string
		role     string
		status   int
		wantRole string
	}{
		{name: "missing actor", status: http.StatusUnauthorized},
		{name: "unknown role", actor: "u1", role: "admin", status: http.StatusForbidden},
		{name: "default role", actor: "u1", status: http.StatusOK, wantRole: application.RoleResident},
		{name: "recycler", actor: "u1", role: "Recycler", status: http.StatusOK, wantRole: application.RoleRecycler},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var captured application.Principal
			handler := RequireActor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, ok := PrincipalFromContext(r.Context())
				require.True(t, ok)
				captured = p
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/points", nil)
			if tc.actor != "" {
				req.Header.Set(HeaderActorID, tc.actor)
			}
			if tc.role != "" {
				req.Header.Set(HeaderActorRole, tc.role)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.actor, captured.UserID)
				assert.Equal(t, tc.wantRole, captured.Role)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logging.New(&buf, "info")
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, logging.FromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
	var first map[string]any
	require.NoError(t, json.NewDecoder(&buf).Decode(&first))
	assert.Equal(t, "request started", first["msg"])
	assert.Equal(t, "req-42", first["request_id"])
}

func TestActorLimiter(t *testing.T) {
	t.Parallel()

	t.Run("buckets are per actor", func(t *testing.T) {
		t.Parallel()
		limiter := NewActorLimiter(1, 2)
		now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

		assert.True(t, limiter.AllowAt("a", now))
		assert.True(t, limiter.AllowAt("a", now))
		assert.False(t, limiter.AllowAt("a", now))
		assert.True(t, limiter.AllowAt("b", now))
		assert.True(t, limiter.AllowAt("a", now.Add(time.Second)))
	})

	t.Run("idle actors are evicted", func(t *testing.T) {
		t.Parallel()
		limiter := NewActorLimiter(1, 2)
		now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 1000; i++ {
			limiter.AllowAt(fmt.Sprintf("spoofed-%d", i), now)
		}
		require.Equal(t, 1000, limiter.tracked())

		assert.True(t, limiter.AllowAt("active", now.Add(24*time.Hour)))
		assert.Equal(t, 1, limiter.tracked())
	})

	t.Run("buckets outlive their refill time", func(t *testing.T) {
		t.Parallel()
		limiter := NewActorLimiter(0.001, 1)
		now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

		require.True(t, limiter.AllowAt("a", now))
		assert.True(t, limiter.AllowAt("b", now.Add(10*time.Minute)))
		assert.False(t, limiter.AllowAt("a", now.Add(10*time.Minute)))
		assert.Equal(t, 2, limiter.tracked())
	})

	t.Run("zero rate disables limiting", func(t *testing.T) {
		t.Parallel()
		limiter := NewActorLimiter(0, 1)
		now := time.Now()
		for i := 0; i < 10; i++ {
			assert.True(t, limiter.AllowAt("a", now))
		}
	})

	t.Run("claim mutations answer 429 when exhausted", func(t *testing.T) {
		t.Parallel()
		claims := &fakeClaims{claim: sampleClaim()}
		router := newTestRouter(&fakePoints{}, claims, NewActorLimiter(0.001, 1))

		rec := doRequest(t, router, http.MethodPost, "/claims/"+claimUUID+"/complete", "", "recycler-1", "recycler")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(t, router, http.MethodPost, "/claims/"+claimUUID+"/complete", "", "recycler-1", "recycler")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "RATE_LIMITED", decode(t, rec)["error_code"])

		rec = doRequest(t, router, http.MethodGet, "/claims", "", "recycler-1", "recycler")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
