package kinematics

import (
	"math"
	"testing"

	"sledctl/internal/settings"
)

func testMachineSettings() settings.Settings {
	s := settings.Default()
	s.MachineWidth = 2438.4
	s.MachineHeight = 1219.2
	s.DistBetweenMotors = 2978.4
	s.MotorOffsetY = 463
	s.SprocketRadius = 10.1
	s.ChainOverSprocket = true
	s.ChainSagCorrection = 0
	s.LeftChainTolerance = 0
	s.RightChainTolerance = 0
	s.RotationDiskRadius = 0
	s.ChainLength = 3200
	s.KinematicsType = settings.Triangular
	return s
}

func TestTriangularInverseOnAxisChainsAreEqual(t *testing.T) {
	s := testMachineSettings()
	g := New(&s)

	a, b := g.Inverse(0, 0)
	if math.Abs(a-b) > 1e-4 {
		t.Fatalf("inverse(0,0) asymmetric: a=%v b=%v", a, b)
	}
}

func TestTriangularInverseMirrorSymmetry(t *testing.T) {
	s := testMachineSettings()
	g := New(&s)

	a1, b1 := g.Inverse(300, 100)
	a2, b2 := g.Inverse(-300, 100)

	if math.Abs(a1-b2) > 1e-6 || math.Abs(b1-a2) > 1e-6 {
		t.Fatalf("mirror symmetry broken: (%v,%v) vs (%v,%v)", a1, b1, a2, b2)
	}
}

func TestTriangularInverseClampsOutOfBoundsTarget(t *testing.T) {
	s := testMachineSettings()
	g := New(&s)

	inBounds := []float64{s.MachineWidth / 2, s.MachineHeight / 2}
	outOfBounds := []float64{s.MachineWidth, s.MachineHeight}

	a1, b1 := g.Inverse(inBounds[0], inBounds[1])
	a2, b2 := g.Inverse(outOfBounds[0], outOfBounds[1])

	if a1 != a2 || b1 != b2 {
		t.Fatalf("out-of-bounds target was not clamped: in=(%v,%v) out=(%v,%v)", a1, b1, a2, b2)
	}
}

func TestForwardInvertsInverseWithinResidual(t *testing.T) {
	s := testMachineSettings()
	g := New(&s)

	for _, target := range [][2]float64{{0, 0}, {300, 100}, {-500, -200}, {800, 400}} {
		chainA, chainB := g.Inverse(target[0], target[1])
		x, y, err := g.Forward(chainA, chainB, 0, 0)
		if err != nil {
			t.Fatalf("Forward(%v) did not converge: %v", target, err)
		}
		if math.Hypot(x-target[0], y-target[1]) > 0.2 {
			t.Fatalf("forward(inverse(%v)) = (%v,%v), residual too large", target, x, y)
		}
	}
}

func TestQuadrilateralInverseGivesPositiveChainsOnInteriorGrid(t *testing.T) {
	s := testMachineSettings()
	s.KinematicsType = settings.Quadrilateral
	s.SledWidth = 310
	s.SledHeight = 139
	s.SledCG = 91
	g := New(&s)

	for x := -1000.0; x <= 1000.0; x += 200 {
		for y := -400.0; y <= 400.0; y += 200 {
			a, b := g.Inverse(x, y)
			if a <= 0 || b <= 0 {
				t.Fatalf("quadrilateralInverse(%v,%v) produced non-positive chain: a=%v b=%v", x, y, a, b)
			}
		}
	}
}

func TestQuadrilateralInverseMirrorSymmetry(t *testing.T) {
	s := testMachineSettings()
	s.KinematicsType = settings.Quadrilateral
	s.SledWidth = 310
	s.SledHeight = 139
	s.SledCG = 91
	g := New(&s)

	a1, b1 := g.Inverse(400, 50)
	a2, b2 := g.Inverse(-400, 50)

	if math.Abs(a1-b2) > 1e-3 || math.Abs(b1-a2) > 1e-3 {
		t.Fatalf("quadrilateral mirror symmetry broken: (%v,%v) vs (%v,%v)", a1, b1, a2, b2)
	}
}
