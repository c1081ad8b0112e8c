// Package sampler provides the random draws used by the environment and the
// strategy. Everything random in a run flows through one Source so a seed
// fully determines the trajectory.
package sampler

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source is the set of draws the engine needs.
type Source interface {
	// Float64 returns a uniform draw in [0,1).
	Float64() float64
	// Beta draws from Beta(alpha, beta).
	Beta(alpha, beta float64) float64
	// Gamma draws from Gamma(shape, scale).
	Gamma(shape, scale float64) float64
	// IntN returns a uniform integer in [0,n).
	IntN(n int) int
}

// Gonum is a seeded Source backed by a PCG generator and gonum distributions.
type Gonum struct {
	src rand.Source
	rnd *rand.Rand
}

// New returns a Source seeded with seed.
func New(seed uint64) *Gonum {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Gonum{src: src, rnd: rand.New(src)}
}

func (g *Gonum) Float64() float64 { return g.rnd.Float64() }

func (g *Gonum) IntN(n int) int { return g.rnd.IntN(n) }

func (g *Gonum) Beta(alpha, beta float64) float64 {
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: g.src}.Rand()
}

// Gamma takes a scale parameter; gonum's Gamma is parameterised by rate.
func (g *Gonum) Gamma(shape, scale float64) float64 {
	return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: g.src}.Rand()
}
