//go:build tinygo

package kinematics

import "github.com/orsinium-labs/tinymath"

// On the tinygo target build, the plain trig calls route through
// tinymath's float32 routines rather than the standard math package:
// math.Sin/Cos/Atan/Asin pull in a much larger float64 trig
// implementation than the target's flash budget tolerates, and
// tinymath is already the pack's answer to embedded trig (see
// SPEC_FULL.md's DOMAIN STACK). Precision loss from the float32 round
// trip is well within the kinematics tolerances used elsewhere
// (forward-convergence is checked to 0.1 mm).

func sqrt(x float64) float64 { return float64(tinymath.Sqrt(float32(x))) }
func atan(x float64) float64 { return float64(tinymath.Atan(float32(x))) }
func asin(x float64) float64 { return float64(tinymath.Asin(float32(x))) }
func sin(x float64) float64  { return float64(tinymath.Sin(float32(x))) }
func cos(x float64) float64  { return float64(tinymath.Cos(float32(x))) }
func tan(x float64) float64  { return float64(tinymath.Tan(float32(x))) }
