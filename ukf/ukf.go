// Package ukf implements an unscented Kalman filter over the constant
// turn-rate and velocity (CTRV) motion model, fusing a Cartesian-position
// sensor and a range/bearing/range-rate sensor into a single kinematic
// state estimate.
//
// The state vector is [px, py, v, yaw, yawd] with yaw held in (-pi, pi].
// Process noise (longitudinal and yaw acceleration) enters through state
// augmentation, so one sigma-point set captures both the belief and the
// noise. A Filter is driven by one sequential stream of time-ordered
// measurement packets; concurrent calls on the same instance must be
// serialized by the caller.
package ukf

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrBadPacket reports a malformed measurement packet (wrong value
	// count or an unknown sensor type).
	ErrBadPacket = errors.New("ukf: malformed measurement packet")
	// ErrBadTimestamp reports a packet that does not advance the filter
	// clock. Prior state is untouched.
	ErrBadTimestamp = errors.New("ukf: non-increasing timestamp")
	// ErrNotPositiveDefinite reports an augmented covariance that failed
	// Cholesky factorization, the signature of a diverged filter.
	ErrNotPositiveDefinite = errors.New("ukf: covariance not positive definite")
	// ErrSingularInnovation reports a non-invertible innovation covariance.
	ErrSingularInnovation = errors.New("ukf: singular innovation covariance")
)

// Filter is the stateful estimator. All scratch data of a cycle lives in
// local values; only the belief (x, P), the clock and diagnostics survive
// between calls, and they are replaced only after a cycle fully succeeds.
type Filter struct {
	cfg     Config
	weights []float64

	x      *mat.VecDense
	p      *mat.Dense
	timeUs int64

	initialized bool

	lastNIS    float64
	lastSensor SensorType
	hasNIS     bool
}

// NewFilter builds a filter from cfg. The configuration is copied and
// immutable afterwards.
func NewFilter(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ukf: invalid config: %w", err)
	}
	return &Filter{
		cfg:     cfg,
		weights: sigmaWeights(),
		x:       mat.NewVecDense(StateDim, nil),
		p:       mat.NewDense(StateDim, StateDim, nil),
	}, nil
}

// ProcessMeasurement runs one full predict/update cycle for pkt and commits
// the resulting belief. The first packet only initializes the filter. On any
// returned error the prior state is left untouched, so the caller may skip
// the packet and continue with the next one.
func (f *Filter) ProcessMeasurement(pkt Packet) error {
	model, err := f.modelFor(pkt.Sensor)
	if err != nil {
		return err
	}
	if len(pkt.Values) != model.dim() {
		return fmt.Errorf("%w: %s packet has %d values, want %d",
			ErrBadPacket, pkt.Sensor, len(pkt.Values), model.dim())
	}

	if !f.initialized {
		f.initialize(pkt)
		return nil
	}

	if pkt.TimestampUs <= f.timeUs {
		return fmt.Errorf("%w: %dus after %dus", ErrBadTimestamp, pkt.TimestampUs, f.timeUs)
	}
	dt := float64(pkt.TimestampUs-f.timeUs) / 1e6

	sigPred, xPred, pPred, err := f.predict(dt)
	if err != nil {
		return err
	}

	if !f.sensorEnabled(pkt.Sensor) {
		// prediction still advances time; no correction
		xPred.SetVec(3, NormalizeAngle(xPred.AtVec(3)))
		f.commit(xPred, pPred, pkt.TimestampUs)
		return nil
	}

	mp := predictMeasurement(model, sigPred, f.weights)
	xNew, pNew, err := correct(model, sigPred, xPred, pPred, mp, pkt.Values, f.weights)
	if err != nil {
		return err
	}

	z := mat.NewVecDense(model.dim(), nil)
	z.CopyVec(mat.NewVecDense(model.dim(), pkt.Values))
	if r := model.angleRow(); r >= 0 {
		// wrap the circular component next to the prediction so the
		// innovation inside NIS stays in (-pi, pi]
		z.SetVec(r, mp.zMean.AtVec(r)+NormalizeAngle(z.AtVec(r)-mp.zMean.AtVec(r)))
	}
	nis, err := NIS(z, mp.zMean, mp.s)
	if err != nil {
		return err
	}

	f.commit(xNew, pNew, pkt.TimestampUs)
	f.lastNIS = nis
	f.lastSensor = pkt.Sensor
	f.hasNIS = true
	return nil
}

// predict generates the augmented sigma points, propagates them over dt and
// recombines the predicted belief. The returned values are cycle-local; the
// filter state is not modified.
func (f *Filter) predict(dt float64) (*mat.Dense, *mat.VecDense, *mat.Dense, error) {
	sigAug, err := generateSigmaPoints(f.x, f.p, f.cfg.StdA, f.cfg.StdYawdd)
	if err != nil {
		return nil, nil, nil, err
	}
	sigPred := propagateSigmaPoints(sigAug, dt)
	xPred, pPred := recombine(sigPred, f.weights, 3)
	return sigPred, xPred, pPred, nil
}

// initialize seeds the belief from the first packet: position taken directly
// or converted from range/bearing, remaining components zero, fixed diagonal
// covariance prior.
func (f *Filter) initialize(pkt Packet) {
	var px, py float64
	switch pkt.Sensor {
	case SensorPosition:
		px = pkt.Values[0]
		py = pkt.Values[1]
	case SensorRangeBearing:
		px, py = rangeBearingToCartesian(pkt.Values[0], pkt.Values[1])
	}

	f.x.Zero()
	f.x.SetVec(0, px)
	f.x.SetVec(1, py)

	f.p.Zero()
	f.p.Set(0, 0, initVarPos)
	f.p.Set(1, 1, initVarPos)
	f.p.Set(2, 2, initVarVel)
	f.p.Set(3, 3, initVarYaw)
	f.p.Set(4, 4, initVarYawd)

	f.timeUs = pkt.TimestampUs
	f.initialized = true
}

func (f *Filter) commit(x *mat.VecDense, p *mat.Dense, tsUs int64) {
	f.x = x
	f.p = p
	f.timeUs = tsUs
}

func (f *Filter) modelFor(s SensorType) (sensorModel, error) {
	switch s {
	case SensorPosition:
		return positionModel{stdX: f.cfg.StdPosX, stdY: f.cfg.StdPosY}, nil
	case SensorRangeBearing:
		return rangeBearingModel{
			stdRange:     f.cfg.StdRange,
			stdBearing:   f.cfg.StdBearing,
			stdRangeRate: f.cfg.StdRangeRate,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown sensor type %d", ErrBadPacket, int(s))
	}
}

func (f *Filter) sensorEnabled(s SensorType) bool {
	switch s {
	case SensorPosition:
		return f.cfg.UsePosition
	case SensorRangeBearing:
		return f.cfg.UseRangeBearing
	default:
		return false
	}
}

// Initialized reports whether the first measurement has been consumed.
func (f *Filter) Initialized() bool { return f.initialized }

// TimeUs returns the timestamp of the last committed cycle in microseconds.
func (f *Filter) TimeUs() int64 { return f.timeUs }

// State returns a copy of the current state mean [px, py, v, yaw, yawd].
func (f *Filter) State() *mat.VecDense {
	out := mat.NewVecDense(StateDim, nil)
	out.CopyVec(f.x)
	return out
}

// Covariance returns a copy of the current state covariance.
func (f *Filter) Covariance() *mat.Dense {
	out := mat.NewDense(StateDim, StateDim, nil)
	out.Copy(f.p)
	return out
}

// Velocity resolves the speed/heading components into Cartesian (vx, vy).
func (f *Filter) Velocity() (vx, vy float64) {
	v := f.x.AtVec(2)
	yaw := f.x.AtVec(3)
	return v * math.Cos(yaw), v * math.Sin(yaw)
}

// LastNIS returns the consistency score of the most recent correction and
// the sensor it came from. ok is false until the first correction.
func (f *Filter) LastNIS() (nis float64, sensor SensorType, ok bool) {
	return f.lastNIS, f.lastSensor, f.hasNIS
}

func rangeBearingToCartesian(rho, phi float64) (px, py float64) {
	return rho * math.Cos(phi), rho * math.Sin(phi)
}
