package geo

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_KnownValues(t *testing.T) {
	santiagoDelEstero := Coordinate{Lat: -27.7951, Lng: -64.2615}
	laBanda := Coordinate{Lat: -27.7334, Lng: -64.2420}

	assert.InDelta(t, 0, DistanceKm(santiagoDelEstero, santiagoDelEstero), 1e-9)
	assert.InDelta(t, 7.124, DistanceKm(santiagoDelEstero, laBanda), 0.001)

	// A quarter of a meridian.
	quarter := DistanceKm(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 90, Lng: 0})
	assert.InDelta(t, math.Pi*EarthRadiusKm/2, quarter, 1e-6)
}

func TestCoordinate_Validate(t *testing.T) {
	assert.NoError(t, Coordinate{Lat: -27.78, Lng: -64.27}.Validate())
	assert.NoError(t, Coordinate{Lat: 90, Lng: -180}.Validate())
	assert.ErrorIs(t, Coordinate{Lat: 91, Lng: 0}.Validate(), ErrInvalidCoordinate)
	assert.ErrorIs(t, Coordinate{Lat: 0, Lng: 180.5}.Validate(), ErrInvalidCoordinate)
	assert.ErrorIs(t, Coordinate{Lat: math.NaN(), Lng: 0}.Validate(), ErrInvalidCoordinate)
}

func TestDistanceKm_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	lat := gen.Float64Range(-90, 90)
	lng := gen.Float64Range(-180, 180)

	properties.Property("distance is symmetric", prop.ForAll(
		func(lat1, lng1, lat2, lng2 float64) bool {
			a := Coordinate{Lat: lat1, Lng: lng1}
			b := Coordinate{Lat: lat2, Lng: lng2}
			return math.Abs(DistanceKm(a, b)-DistanceKm(b, a)) < 1e-9
		},
		lat, lng, lat, lng,
	))

	properties.Property("distance is bounded by half the circumference", prop.ForAll(
		func(lat1, lng1, lat2, lng2 float64) bool {
			d := DistanceKm(Coordinate{Lat: lat1, Lng: lng1}, Coordinate{Lat: lat2, Lng: lng2})
			return d >= 0 && d <= math.Pi*EarthRadiusKm+1e-6
		},
		lat, lng, lat, lng,
	))

	properties.TestingRun(t)
}
