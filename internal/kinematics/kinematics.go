// Package kinematics implements the two-chain hanging-sled mappings
// between (x,y) tool-head position and the two chain lengths that
// produce it: a closed-form triangular inverse, an iterative
// Newton-Raphson quadrilateral inverse, and a fixed-point forward solve.
// All three are ported arithmetic-for-arithmetic from the original
// Maslow firmware's Kinematics.cpp.
package kinematics

import (
	"errors"

	"sledctl/internal/settings"
)

const (
	maxInverseIterations = 10
	maxInverseError      = 0.001
	deltaPhi             = 0.001
	deltaY               = 0.01

	maxForwardGuesses  = 200
	forwardConvergence = 0.1
)

// ErrForwardDidNotConverge is returned by Forward when it gives up: more
// than maxForwardGuesses iterations without converging, or a guessed
// chain length exceeding ChainLength. The original firmware responds by
// returning (0,0) and printing a recalibration message; callers here get
// (0, 0, err) and decide how to surface that themselves (e.g. C11's
// "Message: ..." report line).
var ErrForwardDidNotConverge = errors.New("kinematics: forward solve did not converge, recalibrate chain lengths")

// Geometry holds the machine frame dimensions plus kinematics state that
// persists across calls: Phi is reused as the next call's seed, exactly
// as the original firmware keeps it as a class member between
// quadrilateralInverse invocations so that repeated calls near the same
// position converge in fewer iterations.
type Geometry struct {
	s *settings.Settings

	// Derived once by Recompute and held until settings change again.
	h, theta           float64
	halfWidth          float64
	halfHeight         float64
	motorX, motorY     float64

	// Quadrilateral solver state, carried across calls.
	phi float64
}

// New builds a Geometry bound to s and computes its derived values.
func New(s *settings.Settings) *Geometry {
	g := &Geometry{s: s, phi: -0.2}
	g.Recompute()
	return g
}

// Recompute re-derives the geometry constants from the bound settings.
// Call after any setting affecting machine/sled dimensions changes
// (settings indices 0,1,12,13,19,20,21 in the $<n>= surface).
func (g *Geometry) Recompute() {
	s := g.s
	g.h = sqrt((s.SledWidth/2)*(s.SledWidth/2) + s.SledHeight*s.SledHeight)
	g.theta = atan(2 * s.SledHeight / s.SledWidth)
	g.halfWidth = s.MachineWidth / 2.0
	g.halfHeight = s.MachineHeight / 2.0
	g.motorX = s.DistBetweenMotors / 2
	g.motorY = g.halfHeight + s.MotorOffsetY
	g.phi = -0.2
}

// clampTarget pins (x,y) into the machine's usable rectangle, the
// "target clamping" rule shared by both inverse variants.
func (g *Geometry) clampTarget(x, y float64) (float64, float64) {
	switch {
	case x < -g.halfWidth:
		x = -g.halfWidth
	case x > g.halfWidth:
		x = g.halfWidth
	}
	switch {
	case y < -g.halfHeight:
		y = -g.halfHeight
	case y > g.halfHeight:
		y = g.halfHeight
	}
	return x, y
}

// Inverse dispatches to the configured kinematics variant, matching
// Kinematics::inverse's switch on sysSettings.kinematicsType.
func (g *Geometry) Inverse(x, y float64) (chainA, chainB float64) {
	if g.s.KinematicsType == settings.Quadrilateral {
		return g.quadrilateralInverse(x, y)
	}
	return g.triangularInverse(x, y)
}

// triangularInverse is the closed-form both-chains-meet-at-a-point
// model, ported from Kinematics::triangularInverse.
func (g *Geometry) triangularInverse(xTarget, yTarget float64) (chain1, chain2 float64) {
	xTarget, yTarget = g.clampTarget(xTarget, yTarget)
	s := g.s
	r := s.SprocketRadius

	motor1Dist := sqrt((-g.motorX-xTarget)*(-g.motorX-xTarget) + (g.motorY-yTarget)*(g.motorY-yTarget))
	motor2Dist := sqrt((g.motorX-xTarget)*(g.motorX-xTarget) + (g.motorY-yTarget)*(g.motorY-yTarget))

	var chain1Angle, chain2Angle, chain1AroundSprocket, chain2AroundSprocket float64
	if s.ChainOverSprocket {
		chain1Angle = asin((g.motorY-yTarget)/motor1Dist) + asin(r/motor1Dist)
		chain2Angle = asin((g.motorY-yTarget)/motor2Dist) + asin(r/motor2Dist)
		chain1AroundSprocket = r * chain1Angle
		chain2AroundSprocket = r * chain2Angle
	} else {
		chain1Angle = asin((g.motorY-yTarget)/motor1Dist) - asin(r/motor1Dist)
		chain2Angle = asin((g.motorY-yTarget)/motor2Dist) - asin(r/motor2Dist)
		chain1AroundSprocket = r * (3.14159 - chain1Angle)
		chain2AroundSprocket = r * (3.14159 - chain2Angle)
	}

	chain1Straight := sqrt(motor1Dist*motor1Dist - r*r)
	chain2Straight := sqrt(motor2Dist*motor2Dist - r*r)

	// Catenary sag correction: cross-coupled between the two chains'
	// angles, scaled by the sag coefficient (stored in settings as a
	// value intended to be divided by 1e12, matching the source's
	// literal constant).
	c1t := tan(chain2Angle)*cos(chain1Angle) + sin(chain1Angle)
	chain1Straight *= 1 + (s.ChainSagCorrection/1e12)*cos(chain1Angle)*cos(chain1Angle)*chain1Straight*chain1Straight*c1t*c1t

	c2t := tan(chain1Angle)*cos(chain2Angle) + sin(chain2Angle)
	chain2Straight *= 1 + (s.ChainSagCorrection/1e12)*cos(chain2Angle)*cos(chain2Angle)*chain2Straight*chain2Straight*c2t*c2t

	chain1 = chain1AroundSprocket + chain1Straight*(1.0+s.LeftChainTolerance/100.0)
	chain2 = chain2AroundSprocket + chain2Straight*(1.0+s.RightChainTolerance/100.0)

	chain1 -= s.RotationDiskRadius
	chain2 -= s.RotationDiskRadius
	return chain1, chain2
}

// quadrilateralInverse models a rigid sled with attachment points offset
// from the bit, solving for tilt Phi and chain extensions Y1+/Y2+ by
// Newton-Raphson. Ported from Kinematics::quadrilateralInverse,
// Kinematics::_moment, Kinematics::_YOffsetEqn and Kinematics::_MatSolv.
func (g *Geometry) quadrilateralInverse(xTarget, yTarget float64) (chainA, chainB float64) {
	xTarget, yTarget = g.clampTarget(xTarget, yTarget)
	s := g.s
	r := s.SprocketRadius
	d := s.DistBetweenMotors

	// Coordinate shift: (0,0) at the center of the left sprocket.
	y := g.halfHeight + s.MotorOffsetY - yTarget
	x := d/2.0 + xTarget

	mirror := false
	if x > d/2.0 {
		x = d - x
		mirror = true
	}

	tanGamma := y / x
	tanLambda := y / (d - x)
	y1Plus := r * sqrt(1+tanGamma*tanGamma)
	y2Plus := r * sqrt(1+tanLambda*tanLambda)

	phi := g.phi
	psi1 := g.theta - phi
	psi2 := g.theta + phi

	var sinPsi1, cosPsi1, sinPsi2, cosPsi2 float64
	var crit [3]float64

	for tries := 0; tries <= maxInverseIterations; tries++ {
		sinPhi := myTrigPhi(phi)
		sinPhiDelta := myTrigPhi(phi + deltaPhi)
		sinPsi1, cosPsi1 = myTrigPsi1(psi1)
		sinPsi2, cosPsi2 = myTrigPsi2(psi2)
		sinPsi1D, cosPsi1D := myTrigPsi1(psi1 - deltaPhi)
		sinPsi2D, cosPsi2D := myTrigPsi2(psi2 + deltaPhi)

		crit[0] = -moment(s.SledCG, g.h, d, x, y, y1Plus, y2Plus, sinPhi, sinPsi1, cosPsi1, sinPsi2, cosPsi2)
		crit[1] = -yOffsetEqn(r, g.h, y, y1Plus, x-g.h*cosPsi1, sinPsi1)
		crit[2] = -yOffsetEqn(r, g.h, y, y2Plus, d-(x+g.h*cosPsi2), sinPsi2)

		if abs(crit[0]) < maxInverseError && abs(crit[1]) < maxInverseError && abs(crit[2]) < maxInverseError {
			break
		}

		var jac [9]float64
		jac[0] = (moment(s.SledCG, g.h, d, x, y, y1Plus, y2Plus, sinPhiDelta, sinPsi1D, cosPsi1D, sinPsi2D, cosPsi2D) + crit[0]) / deltaPhi
		jac[1] = (moment(s.SledCG, g.h, d, x, y, y1Plus+deltaY, y2Plus, sinPhi, sinPsi1, cosPsi1, sinPsi2, cosPsi2) + crit[0]) / deltaY
		jac[2] = (moment(s.SledCG, g.h, d, x, y, y1Plus, y2Plus+deltaY, sinPhi, sinPsi1, cosPsi1, sinPsi2, cosPsi2) + crit[0]) / deltaY
		jac[3] = (yOffsetEqn(r, g.h, y, y1Plus, x-g.h*cosPsi1D, sinPsi1D) + crit[1]) / deltaPhi
		jac[4] = (yOffsetEqn(r, g.h, y, y1Plus+deltaY, x-g.h*cosPsi1, sinPsi1) + crit[1]) / deltaY
		jac[5] = 0.0
		jac[6] = (yOffsetEqn(r, g.h, y, y2Plus, d-(x+g.h*cosPsi2D), sinPsi2D) + crit[2]) / deltaPhi
		jac[7] = 0.0
		jac[8] = (yOffsetEqn(r, g.h, y, y2Plus+deltaY, d-(x+g.h*cosPsi2D), sinPsi2) + crit[2]) / deltaY

		solution := matSolv3(jac, crit)

		phi += solution[0]
		y1Plus += solution[1]
		if y1Plus < r {
			y1Plus = r
		}
		y2Plus += solution[2]
		if y2Plus < r {
			y2Plus = r
		}

		psi1 = g.theta - phi
		psi2 = g.theta + phi
	}
	g.phi = phi

	offsetx1 := g.h * cosPsi1
	offsetx2 := g.h * cosPsi2
	offsety1 := g.h * sinPsi1
	offsety2 := g.h * sinPsi2
	tanGamma = (y - offsety1 + y1Plus) / (x - offsetx1)
	tanLambda = (y - offsety2 + y2Plus) / (d - (x + offsetx2))
	gamma := atan(tanGamma)
	lambda := atan(tanLambda)

	chain1 := sqrt((x-offsetx1)*(x-offsetx1)+(y+y1Plus-offsety1)*(y+y1Plus-offsety1)) - r*tanGamma + r*gamma
	chain2 := sqrt((d-(x+offsetx2))*(d-(x+offsetx2))+(y+y2Plus-offsety2)*(y+y2Plus-offsety2)) - r*tanLambda + r*lambda

	if mirror {
		return chain2, chain1
	}
	return chain1, chain2
}

// moment computes the net moment about the sled's center of mass,
// ported from Kinematics::_moment.
func moment(sledCG, h, d, x, y, y1Plus, y2Plus, sinPhi, sinPsi1, cosPsi1, sinPsi2, cosPsi2 float64) float64 {
	offsetx1 := h * cosPsi1
	offsetx2 := h * cosPsi2
	offsety1 := h * sinPsi1
	offsety2 := h * sinPsi2
	tanGamma := (y - offsety1 + y1Plus) / (x - offsetx1)
	tanLambda := (y - offsety2 + y2Plus) / (d - (x + offsetx2))
	return sledCG*sinPhi + (h/(tanLambda+tanGamma))*(sinPsi2-sinPsi1+(tanGamma*cosPsi1-tanLambda*cosPsi2))
}

// yOffsetEqn is Kinematics::_YOffsetEqn.
func yOffsetEqn(r, h, y, yPlus, denominator, psiSin float64) float64 {
	return (sqrt(yPlus*yPlus-r*r) / r) - (y+yPlus-h*psiSin)/denominator
}

// matSolv3 solves the 3x3 system Jac*x = -Crit by Gaussian elimination
// without pivoting, ported from Kinematics::_MatSolv (row-major jac).
func matSolv3(jac [9]float64, crit [3]float64) [3]float64 {
	const n = 3
	for i := 1; i <= n-1; i++ {
		j := n + 1 - i
		jj := (j-1)*n - 1
		l := j - 1
		kk := -1
		for k := 0; k < l; k++ {
			fact := jac[kk+j] / jac[jj+j]
			for m := 1; m <= j; m++ {
				jac[kk+m] -= fact * jac[jj+m]
			}
			kk += n
			crit[k] -= fact * crit[j-1]
		}
	}

	var solution [3]float64
	solution[0] = crit[0] / jac[0]
	ii := n - 1
	for i := 2; i <= n; i++ {
		m := i - 1
		sum := crit[i-1]
		for j := 1; j <= m; j++ {
			sum -= jac[ii+j] * solution[j-1]
		}
		solution[i-1] = sum / jac[ii+i]
		ii += n
	}
	return solution
}

// Forward recovers (x,y) from a pair of chain lengths by fixed-point
// iteration seeded at (xGuess,yGuess), ported from Kinematics::forward.
func (g *Geometry) Forward(chainA, chainB, xGuess, yGuess float64) (x, y float64, err error) {
	guesses := 0
	for {
		guessA, guessB := g.Inverse(xGuess, yGuess)
		errA := chainA - guessA
		errB := chainB - guessB

		xGuess += 0.1*errA - 0.1*errB
		yGuess -= 0.1*errA + 0.1*errB
		guesses++

		converged := abs(errA) < forwardConvergence && abs(errB) < forwardConvergence
		gaveUp := guesses > maxForwardGuesses || guessA > g.s.ChainLength || guessB > g.s.ChainLength
		if converged || gaveUp {
			if gaveUp {
				return 0, 0, ErrForwardDidNotConverge
			}
			return xGuess, yGuess, nil
		}
	}
}
