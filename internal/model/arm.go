package model

import "fmt"

// StepKind selects which posterior a cascade step is sampled from.
type StepKind string

const (
	StepPrimary  StepKind = "primary"
	StepRepeated StepKind = "repeated"
)

// ParseStepKind converts a configuration string into a StepKind.
func ParseStepKind(s string) (StepKind, error) {
	switch StepKind(s) {
	case StepPrimary, StepRepeated:
		return StepKind(s), nil
	default:
		return "", fmt.Errorf("unknown step kind %q", s)
	}
}

// Posterior is a Beta(Alpha, Beta) belief about a Bernoulli success rate.
// Prior is Beta(1,1); both parameters only ever increase.
type Posterior struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// NewPosterior returns the uniform prior.
func NewPosterior() Posterior {
	return Posterior{Alpha: 1, Beta: 1}
}

// Observe folds one Bernoulli reward (0 or 1) into the posterior.
func (p *Posterior) Observe(reward int) {
	p.Alpha += float64(reward)
	p.Beta += float64(1 - reward)
}

// Mean is alpha/(alpha+beta).
func (p Posterior) Mean() float64 {
	return p.Alpha / (p.Alpha + p.Beta)
}

// Trials is the number of observations folded in since the prior.
func (p Posterior) Trials() int {
	return int(p.Alpha + p.Beta - 2)
}
