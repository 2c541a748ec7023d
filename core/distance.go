package core

import (
	"math"
	"sync"

	"github.com/viterin/vek/vek32"
)

// Distances is a map of human–readable names to distance functions.
// You can use it to choose a distance metric by name.
var Distances = map[string]DistanceFunc{
	"euclidean":         Euclidean,
	"squared_euclidean": SquaredEuclidean,
	"manhattan":         Manhattan,
	"cosine":            CosineDistance,
	"angular":           AngularDistance,
}

// DistanceFunc computes the distance between two vectors.
// a: the first vector.
// b: the second vector.
// Returns the computed distance as a float64.
type DistanceFunc func(a, b []float32) float64

// checkPair panics on empty or mismatched vectors, like every distance in this package.
func checkPair(a, b []float32) {
	if len(a) == 0 || len(b) == 0 {
		panic("vectors must not be empty")
	}
	if len(a) != len(b) {
		panic("vectors must have the same length")
	}
}

// diffBuffers holds scratch slices for squaredL2.
var diffBuffers = sync.Pool{New: func() any { return new([]float32) }}

// squaredL2 returns the exact sum of squared differences. vek32.Distance goes
// through an approximate square root, so squaring it does not give back zero
// for equal vectors or integers for integer inputs.
func squaredL2(a, b []float32) float32 {
	buf := diffBuffers.Get().(*[]float32)
	if cap(*buf) < len(a) {
		*buf = make([]float32, len(a))
	}
	d := vek32.Sub_Into((*buf)[:len(a)], a, b)
	s := vek32.Dot(d, d)
	diffBuffers.Put(buf)
	return s
}

// Euclidean computes the Euclidean (L2) distance between two vectors.
func Euclidean(a, b []float32) float64 {
	checkPair(a, b)
	return math.Sqrt(float64(squaredL2(a, b)))
}

// SquaredEuclidean computes the squared Euclidean distance between two vectors.
func SquaredEuclidean(a, b []float32) float64 {
	checkPair(a, b)
	return float64(squaredL2(a, b))
}

// Manhattan computes the Manhattan (L1) distance between two vectors.
func Manhattan(a, b []float32) float64 {
	checkPair(a, b)
	return float64(vek32.ManhattanDistance(a, b))
}

// CosineDistance computes the cosine distance between two vectors.
func CosineDistance(a, b []float32) float64 {
	checkPair(a, b)
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - float64(vek32.Dot(a, b))/(na*nb)
}

func norm(v []float32) float64 {
	return math.Sqrt(float64(vek32.Dot(v, v)))
}

// AngularDistance computes the angle (in radians) between two vectors.
func AngularDistance(a, b []float32) float64 {
	checkPair(a, b)
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return math.Pi / 2
	}
	sim := float64(vek32.Dot(a, b)) / (na * nb)
	sim = math.Max(-1, math.Min(1, sim))
	return math.Acos(sim)
}

// Distance is the metric capability consumed by graph construction and search.
// Implementations must be pure functions of their inputs and safe for concurrent use.
type Distance interface {
	// Compare returns the distance between a and b.
	Compare(a, b []float32) float32
	// Norm returns the precomputed per-vector term stored next to each vector
	// in a packed graph.
	Norm(v []float32) float32
}

// NormDistance is a Distance that can rank candidates for a fixed query from a
// precomputed norm, which lets packed graphs skip part of the work per candidate.
type NormDistance interface {
	Distance
	// CompareWithNorm returns a value that orders candidates x like Compare(query, x)
	// does, given normX = Norm(x).
	CompareWithNorm(query, x []float32, normX float32) float32
}

// SquaredL2 is the squared Euclidean distance. It is the metric the satellite
// system graph is built with: the pruning angle is derived from squared lengths.
type SquaredL2 struct{}

// Compare returns ||a-b||².
func (SquaredL2) Compare(a, b []float32) float32 {
	return squaredL2(a, b)
}

// Norm returns ||v||².
func (SquaredL2) Norm(v []float32) float32 {
	return vek32.Dot(v, v)
}

// CompareWithNorm returns ||x||² - 2<q,x>, which is ||q-x||² - ||q||².
func (SquaredL2) CompareWithNorm(query, x []float32, normX float32) float32 {
	return normX - 2*vek32.Dot(query, x)
}

// Check interface compliance at compile time.
var _ NormDistance = SquaredL2{}
