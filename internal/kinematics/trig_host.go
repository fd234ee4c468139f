//go:build !tinygo

package kinematics

import "math"

// On a regular Go host build, the plain (non-approximated) trig calls
// used by the triangular inverse and geometry setup go straight through
// the standard library: there is no binary-size pressure here, and
// float64 precision is free.

func sqrt(x float64) float64 { return math.Sqrt(x) }
func atan(x float64) float64 { return math.Atan(x) }
func asin(x float64) float64 { return math.Asin(x) }
func sin(x float64) float64  { return math.Sin(x) }
func cos(x float64) float64  { return math.Cos(x) }
func tan(x float64) float64  { return math.Tan(x) }
