package ukf

import "math"

// Filter dimensions. The augmented state appends the two process-noise
// variables (longitudinal acceleration, yaw acceleration) to the CTRV state.
const (
	StateDim   = 5
	AugDim     = StateDim + 2
	SigmaCount = 2*AugDim + 1
)

// Lambda is the sigma-point spreading parameter.
const Lambda = 3.0 - StateDim

// YawRateFloor separates the circular-arc motion branch from the
// straight-line branch. Below it the arc form would divide by a
// near-zero yaw rate.
const YawRateFloor = 1e-3

// RangeFloor is the smallest denominator admitted in the range-rate
// measurement model. A target at the sensor origin has no defined
// range rate; clamping keeps the projection finite.
const RangeFloor = 1e-4

// noiseVarFloor keeps the augmented covariance factorizable when a
// process-noise std is configured as exactly zero.
const noiseVarFloor = 1e-12

// Process noise defaults, tunable per deployment.
const (
	DefaultStdA     = 1.5 // m/s^2
	DefaultStdYawdd = 2.0 // rad/s^2
)

// Measurement noise defaults, fixed by the sensor hardware.
const (
	DefaultStdPosX      = 0.15 // m
	DefaultStdPosY      = 0.15 // m
	DefaultStdRange     = 0.3  // m
	DefaultStdBearing   = 0.03 // rad
	DefaultStdRangeRate = 0.3  // m/s
)

// Initial covariance prior: unit variance on position, reduced on the
// unobserved components.
const (
	initVarPos  = 1.0
	initVarVel  = 0.5
	initVarYaw  = 0.5
	initVarYawd = 0.5
)

// NormalizeAngle wraps an angle into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2.0 * math.Pi
	}
	for a <= -math.Pi {
		a += 2.0 * math.Pi
	}
	return a
}

// Pow2 returns squared value.
func Pow2(x float64) float64 { return x * x }
