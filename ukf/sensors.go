package ukf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SensorType tags a measurement packet with its source modality.
type SensorType int

const (
	// SensorPosition delivers a Cartesian (px, py) observation.
	SensorPosition SensorType = iota
	// SensorRangeBearing delivers a (range, bearing, range-rate) observation.
	SensorRangeBearing
)

func (s SensorType) String() string {
	switch s {
	case SensorPosition:
		return "position"
	case SensorRangeBearing:
		return "rangebearing"
	default:
		return fmt.Sprintf("sensor(%d)", int(s))
	}
}

// Packet is one timestamped raw observation. Values carries 2 components for
// the position sensor and 3 for the range/bearing sensor. Timestamps are
// microseconds and must be non-decreasing across a packet stream.
type Packet struct {
	Sensor      SensorType
	Values      []float64
	TimestampUs int64
}

// sensorModel is the closed per-sensor variant: each modality supplies its
// observation dimension, the nonlinear projection of a state sigma column
// into measurement space, its fixed noise covariance, and the index of its
// circular component (-1 when it has none).
type sensorModel interface {
	dim() int
	project(col mat.Vector, z *mat.VecDense)
	noise() *mat.Dense
	angleRow() int
}

// positionModel projects identically onto (px, py).
type positionModel struct {
	stdX, stdY float64
}

func (m positionModel) dim() int      { return 2 }
func (m positionModel) angleRow() int { return -1 }

func (m positionModel) project(col mat.Vector, z *mat.VecDense) {
	z.SetVec(0, col.AtVec(0))
	z.SetVec(1, col.AtVec(1))
}

func (m positionModel) noise() *mat.Dense {
	r := mat.NewDense(2, 2, nil)
	r.Set(0, 0, Pow2(m.stdX))
	r.Set(1, 1, Pow2(m.stdY))
	return r
}

// rangeBearingModel projects onto (rho, phi, rho-dot). The range-rate
// denominator is clamped to RangeFloor; a target at the sensor origin has no
// defined range rate and the clamp keeps the projection finite.
type rangeBearingModel struct {
	stdRange, stdBearing, stdRangeRate float64
}

func (m rangeBearingModel) dim() int      { return 3 }
func (m rangeBearingModel) angleRow() int { return 1 }

func (m rangeBearingModel) project(col mat.Vector, z *mat.VecDense) {
	px := col.AtVec(0)
	py := col.AtVec(1)
	v := col.AtVec(2)
	yaw := col.AtVec(3)

	rho := math.Hypot(px, py)
	den := rho
	if den < RangeFloor {
		den = RangeFloor
	}
	z.SetVec(0, rho)
	z.SetVec(1, math.Atan2(py, px))
	z.SetVec(2, (px*math.Cos(yaw)*v+py*math.Sin(yaw)*v)/den)
}

func (m rangeBearingModel) noise() *mat.Dense {
	r := mat.NewDense(3, 3, nil)
	r.Set(0, 0, Pow2(m.stdRange))
	r.Set(1, 1, Pow2(m.stdBearing))
	r.Set(2, 2, Pow2(m.stdRangeRate))
	return r
}

// measPrediction is the per-cycle output of the measurement predictor:
// projected sigma columns, their weighted mean and the innovation covariance
// with the sensor noise floor already added.
type measPrediction struct {
	zSig  *mat.Dense
	zMean *mat.VecDense
	s     *mat.Dense
}

// predictMeasurement maps the predicted state sigma columns through the
// sensor's observation model and recombines them.
func predictMeasurement(model sensorModel, sigPred *mat.Dense, weights []float64) *measPrediction {
	nz := model.dim()
	zSig := mat.NewDense(nz, SigmaCount, nil)
	z := mat.NewVecDense(nz, nil)
	for i := 0; i < SigmaCount; i++ {
		model.project(sigPred.ColView(i), z)
		for r := 0; r < nz; r++ {
			zSig.Set(r, i, z.AtVec(r))
		}
	}

	zMean, s := recombine(zSig, weights, model.angleRow())
	s.Add(s, model.noise())

	return &measPrediction{zSig: zSig, zMean: zMean, s: s}
}

// correct fuses the raw measurement into the predicted belief: weighted
// cross-covariance, Kalman gain, innovation with circular components wrapped,
// then the linear update. A singular innovation covariance is reported as
// ErrSingularInnovation; the inputs are never mutated.
func correct(model sensorModel, sigPred *mat.Dense, xPred *mat.VecDense, pPred *mat.Dense,
	mp *measPrediction, raw []float64, weights []float64) (*mat.VecDense, *mat.Dense, error) {

	nz := model.dim()
	tc := mat.NewDense(StateDim, nz, nil)
	xDiff := mat.NewVecDense(StateDim, nil)
	zDiff := mat.NewVecDense(nz, nil)
	var outer mat.Dense
	for i := 0; i < SigmaCount; i++ {
		zDiff.SubVec(mp.zSig.ColView(i), mp.zMean)
		if r := model.angleRow(); r >= 0 {
			zDiff.SetVec(r, NormalizeAngle(zDiff.AtVec(r)))
		}
		xDiff.SubVec(sigPred.ColView(i), xPred)
		xDiff.SetVec(3, NormalizeAngle(xDiff.AtVec(3)))

		outer.Outer(weights[i], xDiff, zDiff)
		tc.Add(tc, &outer)
	}

	var sInv mat.Dense
	if err := sInv.Inverse(mp.s); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
	}
	var gain mat.Dense
	gain.Mul(tc, &sInv)

	innov := mat.NewVecDense(nz, nil)
	innov.SubVec(mat.NewVecDense(nz, raw), mp.zMean)
	if r := model.angleRow(); r >= 0 {
		innov.SetVec(r, NormalizeAngle(innov.AtVec(r)))
	}

	var dx mat.VecDense
	dx.MulVec(&gain, innov)
	xNew := mat.NewVecDense(StateDim, nil)
	xNew.AddVec(xPred, &dx)
	xNew.SetVec(3, NormalizeAngle(xNew.AtVec(3)))

	var ks, ksk mat.Dense
	ks.Mul(&gain, mp.s)
	ksk.Mul(&ks, gain.T())
	pNew := mat.NewDense(StateDim, StateDim, nil)
	pNew.Sub(pPred, &ksk)

	return xNew, pNew, nil
}

// NIS computes the normalized innovation squared for a measurement against a
// predicted measurement mean and innovation covariance. It is a pure
// diagnostic: chi-squared-distributed when the filter is consistent, zero
// when the measurement equals the prediction.
func NIS(z, zPred mat.Vector, s mat.Matrix) (float64, error) {
	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
	}
	var diff mat.VecDense
	diff.SubVec(z, zPred)
	var tmp mat.VecDense
	tmp.MulVec(&sInv, &diff)
	return mat.Dot(&diff, &tmp), nil
}
