package ukf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// sigmaWeights returns the fixed recombination weights for the augmented
// sigma-point set: weight 0 belongs to the mean column, the rest share the
// remaining mass symmetrically. The weights sum to 1; weight 0 is negative
// for Lambda < 0.
func sigmaWeights() []float64 {
	w := make([]float64, SigmaCount)
	w[0] = Lambda / (Lambda + AugDim)
	for i := 1; i < SigmaCount; i++ {
		w[i] = 0.5 / (Lambda + AugDim)
	}
	return w
}

// generateSigmaPoints builds the augmented mean/covariance from the current
// belief and the process-noise stds, factorizes the covariance and spreads
// SigmaCount columns around the mean. A non-positive-definite augmented
// covariance (a diverged filter) fails the Cholesky factorization and is
// reported as ErrNotPositiveDefinite.
func generateSigmaPoints(x *mat.VecDense, p *mat.Dense, stdA, stdYawdd float64) (*mat.Dense, error) {
	xAug := mat.NewVecDense(AugDim, nil)
	for i := 0; i < StateDim; i++ {
		xAug.SetVec(i, x.AtVec(i))
	}

	pAug := mat.NewSymDense(AugDim, nil)
	for i := 0; i < StateDim; i++ {
		for j := i; j < StateDim; j++ {
			pAug.SetSym(i, j, 0.5*(p.At(i, j)+p.At(j, i)))
		}
	}
	pAug.SetSym(StateDim, StateDim, math.Max(Pow2(stdA), noiseVarFloor))
	pAug.SetSym(StateDim+1, StateDim+1, math.Max(Pow2(stdYawdd), noiseVarFloor))

	var chol mat.Cholesky
	if ok := chol.Factorize(pAug); !ok {
		return nil, fmt.Errorf("%w: augmented covariance factorization failed", ErrNotPositiveDefinite)
	}
	l := mat.NewTriDense(AugDim, mat.Lower, nil)
	chol.LTo(l)

	scale := math.Sqrt(Lambda + AugDim)
	sig := mat.NewDense(AugDim, SigmaCount, nil)
	for r := 0; r < AugDim; r++ {
		sig.Set(r, 0, xAug.AtVec(r))
	}
	for i := 0; i < AugDim; i++ {
		for r := 0; r < AugDim; r++ {
			d := scale * l.At(r, i)
			sig.Set(r, i+1, xAug.AtVec(r)+d)
			sig.Set(r, i+1+AugDim, xAug.AtVec(r)-d)
		}
	}
	return sig, nil
}

// propagateSigmaPoints advances every augmented sigma-point column through
// the CTRV motion model over dt seconds and drops the noise rows. The
// straight-line branch handles the |yawd| -> 0 singularity of the arc form.
func propagateSigmaPoints(sigAug *mat.Dense, dt float64) *mat.Dense {
	pred := mat.NewDense(StateDim, SigmaCount, nil)
	for i := 0; i < SigmaCount; i++ {
		px := sigAug.At(0, i)
		py := sigAug.At(1, i)
		v := sigAug.At(2, i)
		yaw := sigAug.At(3, i)
		yawd := sigAug.At(4, i)
		nuA := sigAug.At(5, i)
		nuYawdd := sigAug.At(6, i)

		var pxp, pyp float64
		if math.Abs(yawd) > YawRateFloor {
			pxp = px + v/yawd*(math.Sin(yaw+yawd*dt)-math.Sin(yaw))
			pyp = py + v/yawd*(math.Cos(yaw)-math.Cos(yaw+yawd*dt))
		} else {
			pxp = px + v*dt*math.Cos(yaw)
			pyp = py + v*dt*math.Sin(yaw)
		}
		vp := v
		yawp := yaw + yawd*dt
		yawdp := yawd

		// process noise, injected after the deterministic step
		pxp += 0.5 * nuA * dt * dt * math.Cos(yaw)
		pyp += 0.5 * nuA * dt * dt * math.Sin(yaw)
		vp += nuA * dt
		yawp += 0.5 * nuYawdd * dt * dt
		yawdp += nuYawdd * dt

		pred.Set(0, i, pxp)
		pred.Set(1, i, pyp)
		pred.Set(2, i, vp)
		pred.Set(3, i, yawp)
		pred.Set(4, i, yawdp)
	}
	return pred
}

// recombine recovers a mean vector and covariance matrix from a column set
// and its weights. angleRow names the circular component whose differences
// must be wrapped before squaring, or -1 when the set has none.
func recombine(cols *mat.Dense, weights []float64, angleRow int) (*mat.VecDense, *mat.Dense) {
	rows, n := cols.Dims()

	mean := mat.NewVecDense(rows, nil)
	for i := 0; i < n; i++ {
		mean.AddScaledVec(mean, weights[i], cols.ColView(i))
	}

	cov := mat.NewDense(rows, rows, nil)
	diff := mat.NewVecDense(rows, nil)
	var outer mat.Dense
	for i := 0; i < n; i++ {
		diff.SubVec(cols.ColView(i), mean)
		if angleRow >= 0 {
			diff.SetVec(angleRow, NormalizeAngle(diff.AtVec(angleRow)))
		}
		outer.Outer(weights[i], diff, diff)
		cov.Add(cov, &outer)
	}
	return mean, cov
}
