package utils

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHaversineZeroAndSymmetric(t *testing.T) {
	c := qt.New(t)
	c.Assert(HaversineMeters(-8.55, 119.5, -8.55, 119.5), qt.Equals, 0.0)

	ab := HaversineMeters(-8.55, 119.5, -8.4963, 119.8877)
	ba := HaversineMeters(-8.4963, 119.8877, -8.55, 119.5)
	c.Assert(math.Abs(ab-ba) < 1e-6, qt.IsTrue)
	c.Assert(ab > 0, qt.IsTrue)
}

func TestHaversineKnownDistances(t *testing.T) {
	c := qt.New(t)

	oneDegree := HaversineMeters(0, 0, 1, 0)
	c.Assert(math.Abs(oneDegree-111194.93) < 1, qt.IsTrue, qt.Commentf("got %f", oneDegree))

	antipode := HaversineMeters(0, 0, 0, 180)
	c.Assert(math.IsNaN(antipode), qt.IsFalse)
	c.Assert(math.Abs(antipode-math.Pi*EarthRadiusMeters) < 1, qt.IsTrue, qt.Commentf("got %f", antipode))
}

func TestWithinRadiusBoundary(t *testing.T) {
	c := qt.New(t)
	c.Check(WithinRadius(200, 200), qt.IsTrue)
	c.Check(WithinRadius(200.0001, 200), qt.IsFalse)
	c.Check(WithinRadius(0, 0), qt.IsTrue)
}

func TestValidCoordinate(t *testing.T) {
	c := qt.New(t)
	c.Check(ValidCoordinate(-8.55, 119.5), qt.IsTrue)
	c.Check(ValidCoordinate(91, 0), qt.IsFalse)
	c.Check(ValidCoordinate(0, -181), qt.IsFalse)
	c.Check(ValidCoordinate(math.NaN(), 0), qt.IsFalse)
}
