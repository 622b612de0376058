package geo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTripsApproximately(t *testing.T) {
	lon, lat := 13.361389, 38.115556 // Palermo
	score := Encode(lon, lat)
	gotLon, gotLat := Decode(score)

	assert.InDelta(t, lon, gotLon, 0.001)
	assert.InDelta(t, lat, gotLat, 0.001)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Palermo <-> Catania, ~166.2km per the well-known geo-command fixture.
	d := HaversineMeters(13.361389, 38.115556, 15.087269, 37.502669)
	assert.InDelta(t, 166274.15, d, 200)
}

func TestUnitToMeters(t *testing.T) {
	for _, u := range []string{"m", "km", "ft", "mi"} {
		_, ok := UnitToMeters(strings.ToLower(u))
		assert.True(t, ok, u)
	}
	_, ok := UnitToMeters("parsec")
	assert.False(t, ok)
}

func TestValidRanges(t *testing.T) {
	assert.True(t, ValidLon(0))
	assert.False(t, ValidLon(200))
	assert.True(t, ValidLat(0))
	assert.False(t, ValidLat(90))
}
