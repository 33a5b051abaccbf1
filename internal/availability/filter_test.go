package availability

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisferre80/gestion-politica-sub000/internal/geo"
)

var (
	now    = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	origin = geo.Coordinate{Lat: -27.78, Lng: -64.27}
)

func at(lat, lng float64) *geo.Coordinate { return &geo.Coordinate{Lat: lat, Lng: lng} }

func ids(ranked []Ranked) []string {
	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.PointID)
	}
	return out
}

func TestFilter_ExcludesLiveAndCompletedClaims(t *testing.T) {
	in := Input{
		Candidates: []Candidate{
			{PointID: "free", Address: "A 1", Type: TypeIndividual},
			{PointID: "claimed", Address: "B 2", Type: TypeIndividual},
			{PointID: "completed", Address: "C 3", Type: TypeIndividual},
			{PointID: "cancelled", Address: "D 4", Type: TypeIndividual},
		},
		Latest: map[string]ClaimRecord{
			"claimed":   {PointID: "claimed", RecyclerID: "r2", Status: StatusClaimed},
			"completed": {PointID: "completed", RecyclerID: "r2", Status: StatusCompleted},
			"cancelled": {PointID: "cancelled", RecyclerID: "r2", Status: StatusCancelled},
		},
	}

	got := Filter(Query{RecyclerID: "r1", Now: now}, in)
	assert.Equal(t, []string{"free", "cancelled"}, ids(got))
}

func TestFilter_PenaltyWindowIsPerRecycler(t *testing.T) {
	cancelledAt := now
	cancellation := ClaimRecord{PointID: "p", RecyclerID: "r1", Status: StatusCancelled, CancelledAt: &cancelledAt}
	in := Input{
		Candidates:    []Candidate{{PointID: "p", Address: "A 1", Type: TypeIndividual}},
		Latest:        map[string]ClaimRecord{"p": cancellation},
		Cancellations: []ClaimRecord{cancellation},
	}

	tests := []struct {
		name      string
		recycler  string
		elapsed   time.Duration
		available bool
	}{
		{"cancelling recycler right after", "r1", time.Minute, false},
		{"cancelling recycler at 179 minutes", "r1", 179 * time.Minute, false},
		{"cancelling recycler at exactly three hours", "r1", 3 * time.Hour, true},
		{"cancelling recycler at 181 minutes", "r1", 181 * time.Minute, true},
		{"other recycler immediately", "r2", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(Query{RecyclerID: tt.recycler, Now: now.Add(tt.elapsed)}, in)
			if tt.available {
				assert.Equal(t, []string{"p"}, ids(got))
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFilter_CustomPenaltyWindow(t *testing.T) {
	cancelledAt := now
	cancellation := ClaimRecord{PointID: "p", RecyclerID: "r1", Status: StatusCancelled, CancelledAt: &cancelledAt}
	in := Input{
		Candidates:    []Candidate{{PointID: "p", Address: "A 1", Type: TypeIndividual}},
		Cancellations: []ClaimRecord{cancellation},
	}

	got := Filter(Query{RecyclerID: "r1", Now: now.Add(31 * time.Minute), PenaltyWindow: 30 * time.Minute}, in)
	assert.Len(t, got, 1)
}

func TestFilter_InstitutionalSuppression(t *testing.T) {
	in := Input{
		Candidates: []Candidate{
			{PointID: "inst", Address: "Calle Falsa 123", Type: TypeInstitutional, Location: at(-27.78, -64.27)},
			{PointID: "behind", Address: "Calle Falsa 123", Type: TypeIndividual, Location: at(-27.78, -64.27)},
			{PointID: "other", Address: "Calle Falsa 124", Type: TypeIndividual, Location: at(-27.9, -64.3)},
		},
		InstitutionalAddresses: map[string]struct{}{"Calle Falsa 123": {}},
	}

	got := Filter(Query{RecyclerID: "r1", Now: now, Origin: &origin}, in)
	assert.Equal(t, []string{"inst", "other"}, ids(got))

	t.Run("lookup unavailable keeps every point", func(t *testing.T) {
		in.InstitutionalAddresses = nil
		got := Filter(Query{RecyclerID: "r1", Now: now}, in)
		assert.Len(t, got, 3)
	})
}

func TestFilter_DistanceBoundaryIsInclusive(t *testing.T) {
	target := at(-27.7334, -64.2420)
	exact := geo.DistanceKm(origin, *target)
	in := Input{Candidates: []Candidate{{PointID: "p", Address: "A 1", Type: TypeIndividual, Location: target}}}

	got := Filter(Query{RecyclerID: "r1", Now: now, Origin: &origin, MaxDistanceKm: &exact}, in)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].DistanceKm)
	assert.Equal(t, exact, *got[0].DistanceKm)

	below := exact - 1e-6
	assert.Empty(t, Filter(Query{RecyclerID: "r1", Now: now, Origin: &origin, MaxDistanceKm: &below}, in))
}

func TestFilter_SortsByDistanceWithUnlocatedPointsLast(t *testing.T) {
	in := Input{Candidates: []Candidate{
		{PointID: "none-1", Address: "A", Type: TypeIndividual},
		{PointID: "far", Address: "B", Type: TypeIndividual, Location: at(-28.5, -65.0)},
		{PointID: "none-2", Address: "C", Type: TypeIndividual},
		{PointID: "near", Address: "D", Type: TypeIndividual, Location: at(-27.781, -64.271)},
	}}

	got := Filter(Query{RecyclerID: "r1", Now: now, Origin: &origin}, in)
	assert.Equal(t, []string{"near", "far", "none-1", "none-2"}, ids(got))
	assert.Nil(t, got[2].DistanceKm)

	t.Run("without an origin input order is kept", func(t *testing.T) {
		got := Filter(Query{RecyclerID: "r1", Now: now}, in)
		assert.Equal(t, []string{"none-1", "far", "none-2", "near"}, ids(got))
	})
}

func TestPenaltyExpiry(t *testing.T) {
	cancelledAt := now
	claim := ClaimRecord{PointID: "p", RecyclerID: "r1", Status: StatusCancelled, CancelledAt: &cancelledAt}

	expiry, active := PenaltyExpiry("r1", claim, now.Add(time.Hour), DefaultPenaltyWindow)
	assert.True(t, active)
	assert.Equal(t, now.Add(3*time.Hour), expiry)

	_, active = PenaltyExpiry("r2", claim, now, DefaultPenaltyWindow)
	assert.False(t, active)

	claim.Status = StatusCompleted
	_, active = PenaltyExpiry("r1", claim, now, DefaultPenaltyWindow)
	assert.False(t, active)
}

func TestFilter_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	coords := gen.SliceOfN(12, gen.Float64Range(-1, 1))

	build := func(offsets []float64) Input {
		in := Input{}
		for i := 0; i+1 < len(offsets); i += 2 {
			in.Candidates = append(in.Candidates, Candidate{
				PointID:  string(rune('a' + i/2)),
				Address:  "x",
				Type:     TypeIndividual,
				Location: at(origin.Lat+offsets[i], origin.Lng+offsets[i+1]),
			})
		}
		return in
	}

	properties.Property("results are sorted and within the radius", prop.ForAll(
		func(offsets []float64, maxKm float64) bool {
			got := Filter(Query{RecyclerID: "r", Now: now, Origin: &origin, MaxDistanceKm: &maxKm}, build(offsets))
			for i, r := range got {
				if r.DistanceKm == nil || *r.DistanceKm > maxKm {
					return false
				}
				if i > 0 && *got[i-1].DistanceKm > *r.DistanceKm {
					return false
				}
			}
			return true
		},
		coords, gen.Float64Range(0, 150),
	))

	properties.Property("a claimed point never appears", prop.ForAll(
		func(offsets []float64) bool {
			in := build(offsets)
			in.Latest = map[string]ClaimRecord{"a": {PointID: "a", RecyclerID: "r2", Status: StatusClaimed}}
			for _, r := range Filter(Query{RecyclerID: "r", Now: now, Origin: &origin}, in) {
				if r.PointID == "a" {
					return false
				}
			}
			return true
		},
		coords,
	))

	properties.TestingRun(t)
}
