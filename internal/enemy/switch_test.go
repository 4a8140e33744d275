package enemy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldSwitch_Hysteresis(t *testing.T) {
	t.Parallel()
	// 25° apart with no horizon: inside the low-speed band, outside the high-speed one.
	assert.False(t, ShouldSwitch(0, 25, 50, 0))
	assert.True(t, ShouldSwitch(0, 25, 250, 0))
	assert.True(t, ShouldSwitch(0, 25, -250, 0))
	assert.True(t, ShouldSwitch(0, 25, 150, 0))
	assert.False(t, ShouldSwitch(0, 15, 150, 0))
}

func TestShouldSwitch_ProjectsHorizon(t *testing.T) {
	t.Parallel()
	// 25° now, 25 + 50·0.2 = 35° after the horizon.
	assert.True(t, ShouldSwitch(0, 25, 50, 0.2))
	// Spinning back towards the aim point.
	assert.False(t, ShouldSwitch(0, 35, -50, 0.2))
}

func TestShouldSwitch_WrapsAcrossZero(t *testing.T) {
	t.Parallel()
	assert.False(t, ShouldSwitch(355, 5, 0, 0))
	assert.False(t, ShouldSwitch(-10, 710, 0, 0))
	assert.True(t, ShouldSwitch(340, 20, 0, 0))
}

func TestSwitchBands_HalfWidth(t *testing.T) {
	t.Parallel()
	b := DefaultSwitchBands()
	tests := []struct {
		spin, want float64
	}{
		{0, 30}, {99, 30}, {100, 30}, {100.5, 20}, {200, 20}, {201, 10}, {-300, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.HalfWidth(tt.spin), "spin %v", tt.spin)
	}

	custom := SwitchBands{HalfWidthDeg: [3]float64{40, 25, 5}, SpeedTiersDps: [2]float64{50, 60}}
	assert.Equal(t, 25.0, custom.HalfWidth(55))
	assert.False(t, custom.ShouldSwitch(0, 35, 10, 0))
}

func TestHandleSwitch(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 100.0, HandleSwitch(10, LayoutFor(Infantry3)))
	assert.Equal(t, 60.0, HandleSwitch(300, LayoutFor(Outpost8)))
	assert.Equal(t, 0.0, HandleSwitch(270, LayoutFor(Hero1)))
	assert.Equal(t, 80.0, HandleSwitch(-10, LayoutFor(Hero1)))
}

func TestNextPlate(t *testing.T) {
	t.Parallel()
	sym := LayoutFor(Infantry4)

	// Plate left the window on the positive side; the next one appears near -45.
	yaw, step := NextPlate(44, -46, sym)
	assert.InDelta(t, -46, yaw, 1e-9)
	assert.Equal(t, -1, step)

	yaw, step = NextPlate(-44, 46, sym)
	assert.InDelta(t, 46, yaw, 1e-9)
	assert.Equal(t, 1, step)

	// Result lives on the observation's branch.
	yaw, step = NextPlate(10, 370+90, sym)
	assert.InDelta(t, 460, yaw, 1e-9)
	assert.Equal(t, 1, step)

	tri := LayoutFor(Outpost8)
	yaw, step = NextPlate(0, -115, tri)
	assert.InDelta(t, -120, yaw, 1e-9)
	assert.Equal(t, -1, step)
}

func TestNextPlate_KeepsClosestCurrentPlate(t *testing.T) {
	t.Parallel()
	sym := LayoutFor(Infantry4)

	// Outside any switch band, but still nearer the current plate than to
	// either neighbour.
	yaw, step := NextPlate(0, 30, sym)
	assert.Equal(t, 0, step)
	assert.InDelta(t, 0, yaw, 1e-9)

	yaw, step = NextPlate(350, 14, sym)
	assert.Equal(t, 0, step)
	assert.InDelta(t, -10, yaw, 1e-9)

	// Just past the midpoint between plates.
	_, step = NextPlate(0, -46, sym)
	assert.Equal(t, -1, step)

	// Tripod neighbours are 120° away, so 59° still belongs to the current plate.
	_, step = NextPlate(0, 59, LayoutFor(Outpost8))
	assert.Equal(t, 0, step)
	_, step = NextPlate(0, 61, LayoutFor(Outpost8))
	assert.Equal(t, 1, step)
}
