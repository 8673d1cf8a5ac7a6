package appconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvFlagToEnvironment(t *testing.T) {
	assert.Equal(t, Development, EnvFlagToEnvironment("development"))
	assert.Equal(t, Test, EnvFlagToEnvironment("test"))
	assert.Equal(t, Production, EnvFlagToEnvironment("production"))
	assert.Equal(t, Development, EnvFlagToEnvironment("staging"))
	assert.Equal(t, "production", Production.String())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeConsumeLive, ParseMode("consume-live"))
	assert.Equal(t, ModeSimulate, ParseMode("simulate"))
	assert.Equal(t, ModeSimulate, ParseMode(""))

	cfg := Config{Mode: ModeConsumeLive}
	assert.False(t, cfg.Simulating())
}

func TestBoundingBoxContains(t *testing.T) {
	box := BoundingBox{MinLat: 12.90, MinLon: 77.60, MaxLat: 12.93, MaxLon: 77.64}

	assert.True(t, box.Contains(12.91, 77.62))
	assert.True(t, box.Contains(12.90, 77.60), "edges are inside")
	assert.False(t, box.Contains(12.95, 77.62))
	assert.False(t, box.IsZero())
	assert.True(t, BoundingBox{}.IsZero())
	assert.False(t, BoundingBox{}.Contains(0, 0), "unset zone")
}

func TestParseBoundingBox(t *testing.T) {
	box, err := ParseBoundingBox("12.905, 77.605, 12.935, 77.650")
	assert.NoError(t, err)
	assert.Equal(t, BoundingBox{MinLat: 12.905, MinLon: 77.605, MaxLat: 12.935, MaxLon: 77.650}, box)

	box, err = ParseBoundingBox("")
	assert.NoError(t, err)
	assert.True(t, box.IsZero())

	_, err = ParseBoundingBox("12.9,77.6")
	assert.Error(t, err)

	_, err = ParseBoundingBox("12.9,77.6,north,77.7")
	assert.Error(t, err)

	_, err = ParseBoundingBox("12.95,77.6,12.90,77.7")
	assert.Error(t, err)
}
