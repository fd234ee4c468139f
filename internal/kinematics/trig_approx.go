package kinematics

// myTrigPhi, myTrigPsi1 and myTrigPsi2 are the fixed cubic-polynomial
// sin/cos approximations used only inside the quadrilateral
// Newton-Raphson solve, ported verbatim (coefficients included) from
// Kinematics::_MyTrig. They trade a documented, bounded error for
// avoiding a true trig call on every solver iteration; this
// requires the bounds below be preserved, not re-derived:
//
//	Phi  range   0 to -27 degrees:  sin error < 6e-6,  cos error < 3e-5
//	Psi1 range  42 to  69 degrees:  sin error < 2.5e-5, cos error < 1.75e-5
//	Psi2 range  15 to  42 degrees:  sin error < 1.5e-5, cos error < 2.5e-5
//
// Do not replace these with calls to sin/cos/atan — that would defeat
// the entire point of the approximation and silently change the
// solver's convergence behavior outside its documented range.

// myTrigPhi returns only sin(Phi): the source documents a cos(Phi)
// approximation in a comment but never actually computes it, since the
// moment/Jacobian equations only ever need MySinPhi.
func myTrigPhi(phi float64) float64 {
	phiSq := phi * phi
	phiCu := phi * phiSq
	return -0.1616*phiCu - 0.0021*phiSq + 1.0002*phi
}

func myTrigPsi1(psi1 float64) (sinPsi1, cosPsi1 float64) {
	sq := psi1 * psi1
	cu := sq * psi1
	sinPsi1 = -0.0942*cu - 0.1368*sq + 1.0965*psi1 - 0.0241
	cosPsi1 = 0.1369*cu - 0.6799*sq + 0.1077*psi1 + 0.9756
	return sinPsi1, cosPsi1
}

func myTrigPsi2(psi2 float64) (sinPsi2, cosPsi2 float64) {
	sq := psi2 * psi2
	cu := sq * psi2
	sinPsi2 = -0.1460*cu - 0.0197*sq + 1.0068*psi2 - 0.0008
	cosPsi2 = 0.0792*cu - 0.5559*sq + 0.0171*psi2 + 0.9981
	return sinPsi2, cosPsi2
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
