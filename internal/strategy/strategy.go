// Package strategy implements cascade routing with two levels of Thompson
// Sampling: per-arm sampling proposes new cascade structures, per-cascade
// sampling picks which known structure to play.
package strategy

import (
	"CascadeBandit/internal/environment"
	"CascadeBandit/internal/model"
	"CascadeBandit/internal/sampler"
)

// Environment is the part of the environment the strategy reads and updates.
type Environment interface {
	NArms() int
	Constraint(arm int) int
	PrimaryPosterior(arm int) model.Posterior
	RepeatedPosterior(arm int) model.Posterior
	UpdateCascadeConfig(key model.CascadeKey) bool
	CascadeMean() []model.CascadeKey
	CascadeStats(key model.CascadeKey) (model.CascadeStats, bool)
}

// Strategy holds no learned state of its own.
type Strategy struct {
	env       Environment
	rng       sampler.Source
	steps     []model.StepKind
	shortlist int
}

// New returns a strategy that builds cascades following steps. A shortlist
// of zero or less uses environment.DefaultShortlist.
func New(env Environment, rng sampler.Source, steps []model.StepKind, shortlist int) *Strategy {
	if shortlist <= 0 {
		shortlist = environment.DefaultShortlist
	}
	return &Strategy{
		env:       env,
		rng:       rng,
		steps:     append([]model.StepKind(nil), steps...),
		shortlist: shortlist,
	}
}

// ChooseStepArm draws one posterior sample per eligible arm and returns the
// arg-max. Excluded and exhausted arms are scored 0 without drawing, so they
// can never win; if nothing is eligible ok is false.
func (s *Strategy) ChooseStepArm(kind model.StepKind, excluded []int) (arm int, ok bool) {
	skip := make(map[int]bool, len(excluded))
	for _, a := range excluded {
		skip[a] = true
	}

	estimates := make([]float64, s.env.NArms())
	sum := 0.0
	for i := range estimates {
		if skip[i] || s.env.Constraint(i) <= 0 {
			continue
		}
		var p model.Posterior
		if kind == model.StepRepeated {
			p = s.env.RepeatedPosterior(i)
		} else {
			p = s.env.PrimaryPosterior(i)
		}
		estimates[i] = s.rng.Beta(p.Alpha, p.Beta)
		sum += estimates[i]
	}
	if sum == 0 {
		return -1, false
	}
	return argmax(estimates), true
}

// CascadeBuilder picks one arm per configured step, never repeating an arm.
// It stops early when a step has no eligible arm.
func (s *Strategy) CascadeBuilder() []int {
	var cascade []int
	for _, kind := range s.steps {
		arm, ok := s.ChooseStepArm(kind, cascade)
		if !ok {
			break
		}
		cascade = append(cascade, arm)
	}
	return cascade
}

// ChooseCascade proposes and registers a new cascade, then samples each of
// the best known configurations once and returns the winner. ok is false
// when no configuration is available, in which case the caller skips the
// iteration.
func (s *Strategy) ChooseCascade() (model.CascadeKey, bool) {
	if arms := s.CascadeBuilder(); len(arms) > 0 {
		s.env.UpdateCascadeConfig(model.NewCascadeKey(arms))
	}

	shortlist := s.env.CascadeMean()
	if len(shortlist) > s.shortlist {
		shortlist = shortlist[:s.shortlist]
	}
	if len(shortlist) == 0 {
		return "", false
	}

	estimates := make([]float64, len(shortlist))
	for i, key := range shortlist {
		st, _ := s.env.CascadeStats(key)
		estimates[i] = s.rng.Beta(st.Alpha, st.Beta)
	}
	return shortlist[argmax(estimates)], true
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
