package ukf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestFilter(t *testing.T, cfg Config) *Filter {
	t.Helper()
	f, err := NewFilter(cfg)
	require.NoError(t, err)
	return f
}

func TestInitializeFromPositionPacket(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())
	err := f.ProcessMeasurement(Packet{
		Sensor:      SensorPosition,
		Values:      []float64{5.0, 5.0},
		TimestampUs: 1000,
	})
	require.NoError(t, err)
	require.True(t, f.Initialized())
	assert.Equal(t, int64(1000), f.TimeUs())

	x := f.State()
	want := []float64{5.0, 5.0, 0, 0, 0}
	for i, w := range want {
		assert.InDelta(t, w, x.AtVec(i), 1e-12, "state[%d]", i)
	}

	p := f.Covariance()
	assert.Equal(t, 1.0, p.At(0, 0))
	assert.Equal(t, 1.0, p.At(1, 1))
	assert.Equal(t, 0.5, p.At(2, 2))
	assert.Equal(t, 0.5, p.At(3, 3))
	assert.Equal(t, 0.5, p.At(4, 4))
}

func TestInitializeFromRangeBearingPacket(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())
	err := f.ProcessMeasurement(Packet{
		Sensor:      SensorRangeBearing,
		Values:      []float64{10.0, 0.0, 0.0},
		TimestampUs: 0,
	})
	require.NoError(t, err)

	x := f.State()
	want := []float64{10.0, 0, 0, 0, 0}
	for i, w := range want {
		assert.InDelta(t, w, x.AtVec(i), 1e-12, "state[%d]", i)
	}
}

func TestRejectsMalformedPackets(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())

	err := f.ProcessMeasurement(Packet{Sensor: SensorPosition, Values: []float64{1.0}})
	assert.ErrorIs(t, err, ErrBadPacket)

	err = f.ProcessMeasurement(Packet{Sensor: SensorType(9), Values: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrBadPacket)

	assert.False(t, f.Initialized(), "rejected packets must not initialize")
}

func TestRejectsNonIncreasingTimestamp(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())
	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor: SensorPosition, Values: []float64{1, 2}, TimestampUs: 100000,
	}))

	before := f.State()

	err := f.ProcessMeasurement(Packet{
		Sensor: SensorPosition, Values: []float64{9, 9}, TimestampUs: 100000,
	})
	assert.ErrorIs(t, err, ErrBadTimestamp)
	err = f.ProcessMeasurement(Packet{
		Sensor: SensorPosition, Values: []float64{9, 9}, TimestampUs: 50000,
	})
	assert.ErrorIs(t, err, ErrBadTimestamp)

	after := f.State()
	assert.True(t, mat.EqualApprox(before, after, 0), "failed cycle must not touch state")
	assert.Equal(t, int64(100000), f.TimeUs())
}

func TestZeroInnovationUpdate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StdA = 0
	cfg.StdYawdd = 0
	f := newTestFilter(t, cfg)

	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor: SensorPosition, Values: []float64{2.0, 1.0}, TimestampUs: 0,
	}))
	pOld := f.Covariance()

	// a stationary belief predicts itself; measuring exactly the predicted
	// mean makes the innovation zero
	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor: SensorPosition, Values: []float64{2.0, 1.0}, TimestampUs: 50000,
	}))

	x := f.State()
	assert.InDelta(t, 2.0, x.AtVec(0), 1e-9)
	assert.InDelta(t, 1.0, x.AtVec(1), 1e-9)
	assert.InDelta(t, 0.0, x.AtVec(2), 1e-9)

	pNew := f.Covariance()
	traceOld, traceNew := 0.0, 0.0
	for i := 0; i < StateDim; i++ {
		traceOld += pOld.At(i, i)
		traceNew += pNew.At(i, i)
	}
	assert.Less(t, traceNew, traceOld, "covariance must shrink")
	assert.Less(t, pNew.At(0, 0), pOld.At(0, 0))
	assert.Less(t, pNew.At(1, 1), pOld.At(1, 1))

	// symmetry must survive the update
	for i := 0; i < StateDim; i++ {
		for j := 0; j < StateDim; j++ {
			assert.InDelta(t, pNew.At(j, i), pNew.At(i, j), 1e-9)
		}
	}

	nis, sensor, ok := f.LastNIS()
	require.True(t, ok)
	assert.Equal(t, SensorPosition, sensor)
	assert.InDelta(t, 0.0, nis, 1e-9)
}

func TestRangeBearingUpdateAcrossPiCut(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())

	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor:      SensorRangeBearing,
		Values:      []float64{10.0, math.Pi - 0.01, 0.0},
		TimestampUs: 0,
	}))

	// second bearing on the far side of the cut; the physical target barely
	// moved, so a correction that differenced the raw angles would fling the
	// estimate across the plane
	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor:      SensorRangeBearing,
		Values:      []float64{10.0, -(math.Pi - 0.01), 0.0},
		TimestampUs: 50000,
	}))

	x := f.State()
	assert.InDelta(t, -10.0, x.AtVec(0), 0.5, "px stays near the -x axis")
	assert.Less(t, math.Abs(x.AtVec(1)), 1.0, "py stays near the -x axis")
	for i := 0; i < StateDim; i++ {
		v := x.AtVec(i)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "state[%d]", i)
	}

	nis, sensor, ok := f.LastNIS()
	require.True(t, ok)
	assert.Equal(t, SensorRangeBearing, sensor)
	assert.GreaterOrEqual(t, nis, 0.0)
	assert.Less(t, nis, 50.0, "wrapped bearing innovation keeps NIS small")
}

func TestDisabledSensorStillAdvancesTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseRangeBearing = false
	f := newTestFilter(t, cfg)

	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor: SensorPosition, Values: []float64{1.0, 1.0}, TimestampUs: 0,
	}))

	err := f.ProcessMeasurement(Packet{
		Sensor: SensorRangeBearing, Values: []float64{50.0, 1.0, 3.0}, TimestampUs: 100000,
	})
	require.NoError(t, err, "disabled sensor packets are accepted")
	assert.Equal(t, int64(100000), f.TimeUs(), "prediction advances the clock")

	// no correction happened: the wild measurement left the mean near the
	// stationary prediction and no NIS was produced
	x := f.State()
	assert.InDelta(t, 1.0, x.AtVec(0), 1e-6)
	assert.InDelta(t, 1.0, x.AtVec(1), 1e-6)
	_, _, ok := f.LastNIS()
	assert.False(t, ok)
}

func TestDisabledSensorCommitKeepsYawInRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseRangeBearing = false
	f := newTestFilter(t, cfg)

	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor: SensorPosition, Values: []float64{0, 0}, TimestampUs: 0,
	}))
	// heading just below the wrap point, turning fast enough to cross it
	// over the next prediction
	f.x.SetVec(3, 3.0)
	f.x.SetVec(4, 2.0)

	require.NoError(t, f.ProcessMeasurement(Packet{
		Sensor: SensorRangeBearing, Values: []float64{5.0, 0.0, 0.0}, TimestampUs: 1000000,
	}))

	yaw := f.State().AtVec(3)
	assert.Greater(t, yaw, -math.Pi)
	assert.LessOrEqual(t, yaw, math.Pi)
	assert.InDelta(t, 3.0+2.0*1.0-2*math.Pi, yaw, 1e-9)
}

func TestStationaryObjectConvergence(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())
	rng := rand.New(rand.NewSource(42))

	const (
		steps    = 50
		stepUs   = 50000 // 0.05s
		noiseStd = 0.15
	)
	for i := 0; i < steps; i++ {
		pkt := Packet{
			Sensor: SensorPosition,
			Values: []float64{
				rng.NormFloat64() * noiseStd,
				rng.NormFloat64() * noiseStd,
			},
			TimestampUs: int64(i) * stepUs,
		}
		require.NoError(t, f.ProcessMeasurement(pkt), "step %d", i)
	}

	x := f.State()
	assert.InDelta(t, 0.0, x.AtVec(0), 3*noiseStd, "px converges to truth")
	assert.InDelta(t, 0.0, x.AtVec(1), 3*noiseStd, "py converges to truth")
	assert.Less(t, math.Abs(x.AtVec(2)), 0.5, "speed converges toward zero")

	vx, vy := f.Velocity()
	assert.Less(t, math.Hypot(vx, vy), 0.5)
}
