package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style tests.
type SQLiteHarness struct {
	Pool     *sqlite.ConnectionPool
	Points   *sqlite.PointRepository
	Claims   *sqlite.ClaimRepository
	Profiles *sqlite.ProfileRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database file in a temporary
// directory. Close is registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "reciclaje.db")
	pool, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := pool.Migrate(context.Background(), nil); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:     pool,
		Points:   sqlite.NewPointRepository(pool),
		Claims:   sqlite.NewClaimRepository(pool),
		Profiles: sqlite.NewProfileRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedPoints inserts the fixtures.
func (h *SQLiteHarness) SeedPoints(tb testing.TB, points ...PointFixture) {
	tb.Helper()
	for _, p := range points {
		if err := h.Points.CreatePoint(context.Background(), p.Persistence()); err != nil {
			tb.Fatalf("failed to seed point %s: %v", p.ID, err)
		}
	}
}

// SeedClaims inserts the fixtures.
func (h *SQLiteHarness) SeedClaims(tb testing.TB, claims ...ClaimFixture) {
	tb.Helper()
	for _, c := range claims {
		if err := h.Claims.CreateClaim(context.Background(), c.Persistence()); err != nil {
			tb.Fatalf("failed to seed claim %s: %v", c.ID, err)
		}
	}
}

// SeedProfiles inserts or replaces display profiles.
func (h *SQLiteHarness) SeedProfiles(tb testing.TB, profiles ...persistence.Profile) {
	tb.Helper()
	for _, p := range profiles {
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = referenceTime
		}
		if err := h.Profiles.UpsertProfile(context.Background(), p); err != nil {
			tb.Fatalf("failed to seed profile %s: %v", p.ID, err)
		}
	}
}
