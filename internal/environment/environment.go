// Package environment owns the statistical state of a routing experiment and
// the simulator that generates rewards from hidden ground-truth probabilities.
package environment

import (
	"fmt"

	"CascadeBandit/internal/model"
	"CascadeBandit/internal/sampler"
)

// DefaultShortlist is how many configurations, best mean first, compete in
// configuration-level sampling and appear in reports.
const DefaultShortlist = 5

// Params are the externally supplied experiment parameters.
type Params struct {
	PrimaryProba  []float64
	RepeatedProba []float64
	Constraints   []int
	Failure       bool
	FailurePolicy FailurePolicy
}

// Environment holds posteriors, capacities, cascade registries and counters.
// It is not safe for concurrent use.
type Environment struct {
	nArms            int
	primaryProba     []float64
	repeatedProba    []float64
	basicConstraints []int
	failure          bool
	policy           FailurePolicy
	rng              sampler.Source

	counters    model.Counters
	constraints []int
	primary     []model.Posterior
	repeated    []model.Posterior

	active     []model.CascadeKey
	historical []model.CascadeKey
	cascades   map[model.CascadeKey]*model.CascadeStats

	suspension *model.Suspension
}

// New validates params and returns an environment with all posteriors at the
// uniform prior.
func New(p Params, rng sampler.Source) (*Environment, error) {
	n := len(p.PrimaryProba)
	if n == 0 {
		return nil, fmt.Errorf("at least one arm is required")
	}
	if len(p.RepeatedProba) != n {
		return nil, fmt.Errorf("repeated probabilities: got %d, want %d", len(p.RepeatedProba), n)
	}
	if len(p.Constraints) != n {
		return nil, fmt.Errorf("constraints: got %d, want %d", len(p.Constraints), n)
	}
	for i := 0; i < n; i++ {
		if p.PrimaryProba[i] < 0 || p.PrimaryProba[i] > 1 {
			return nil, fmt.Errorf("primary probability of arm %d is %v, want [0,1]", i, p.PrimaryProba[i])
		}
		if p.RepeatedProba[i] < 0 || p.RepeatedProba[i] > 1 {
			return nil, fmt.Errorf("repeated probability of arm %d is %v, want [0,1]", i, p.RepeatedProba[i])
		}
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}

	policy := p.FailurePolicy
	if policy == (FailurePolicy{}) {
		policy = DefaultFailurePolicy()
	}

	e := &Environment{
		nArms:            n,
		primaryProba:     append([]float64(nil), p.PrimaryProba...),
		repeatedProba:    append([]float64(nil), p.RepeatedProba...),
		basicConstraints: append([]int(nil), p.Constraints...),
		failure:          p.Failure,
		policy:           policy,
		rng:              rng,
	}
	e.Flush()
	return e, nil
}

// Flush resets learned state, counters, capacities and registries. Ground
// truth is kept so the same experiment can be restarted.
func (e *Environment) Flush() {
	e.counters = model.Counters{}
	e.constraints = append([]int(nil), e.basicConstraints...)
	e.primary = make([]model.Posterior, e.nArms)
	e.repeated = make([]model.Posterior, e.nArms)
	for i := 0; i < e.nArms; i++ {
		e.primary[i] = model.NewPosterior()
		e.repeated[i] = model.NewPosterior()
	}
	e.active = nil
	e.historical = nil
	e.cascades = make(map[model.CascadeKey]*model.CascadeStats)
	e.suspension = nil
}

// NArms returns the number of arms.
func (e *Environment) NArms() int { return e.nArms }

// Constraint returns the remaining capacity of arm.
func (e *Environment) Constraint(arm int) int { return e.constraints[arm] }

// PrimaryPosterior returns the primary-success posterior of arm.
func (e *Environment) PrimaryPosterior(arm int) model.Posterior { return e.primary[arm] }

// RepeatedPosterior returns the repeated-success posterior of arm.
func (e *Environment) RepeatedPosterior(arm int) model.Posterior { return e.repeated[arm] }

// Counters returns a copy of the aggregate counters.
func (e *Environment) Counters() model.Counters { return e.counters }

// PullArm performs one Bernoulli draw with success probability p.
func (e *Environment) PullArm(p float64) int {
	if e.rng.Float64() < p {
		return 1
	}
	return 0
}

// UpdatePrimaryReward records a first attempt on arm. Only successes consume
// capacity.
func (e *Environment) UpdatePrimaryReward(arm, reward int) {
	e.primary[arm].Observe(reward)

	e.counters.PrimaryPayments++
	e.counters.PrimarySuccess += reward

	e.constraints[arm] -= reward
}

// UpdateRepeatedReward records a token (repeated) attempt on arm. Repeated
// attempts count toward overall conversion.
func (e *Environment) UpdateRepeatedReward(arm, reward int) {
	e.repeated[arm].Observe(reward)

	e.counters.RepeatedPayments++
	e.counters.RepeatedSuccess += reward

	e.counters.Payments++
	e.counters.Success += reward

	e.constraints[arm] -= reward
}

// UpdateCascadeReward records the outcome of a whole cascade. Unknown keys are
// registered first; malformed ones are dropped.
func (e *Environment) UpdateCascadeReward(key model.CascadeKey, reward int) {
	stats, ok := e.cascades[key]
	if !ok {
		e.UpdateCascadeConfig(key)
		if stats, ok = e.cascades[key]; !ok {
			return
		}
	}
	stats.Observe(reward)

	e.counters.CascadePayments++
	e.counters.CascadeSuccess += reward

	e.counters.Payments++
	e.counters.Success += reward
}

// Snapshot returns a deep copy of the reporting state.
func (e *Environment) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		Arms:     make([]model.ArmSnapshot, e.nArms),
		Counters: e.counters,
	}
	for i := 0; i < e.nArms; i++ {
		snap.Arms[i] = model.ArmSnapshot{
			Index:         i,
			PrimaryProba:  e.primaryProba[i],
			RepeatedProba: e.repeatedProba[i],
			Constraint:    e.constraints[i],
			Primary:       e.primary[i],
			Repeated:      e.repeated[i],
		}
	}

	live := e.liveActive()
	isLive := make(map[model.CascadeKey]bool, len(live))
	for _, k := range live {
		isLive[k] = true
	}
	snap.Active = live
	snap.Historical = make([]model.CascadeSnapshot, 0, len(e.historical))
	for _, k := range e.historical {
		snap.Historical = append(snap.Historical, model.CascadeSnapshot{
			Key:    k,
			Stats:  *e.cascades[k],
			Active: isLive[k],
		})
	}

	top := e.sortByMean(append([]model.CascadeKey(nil), live...))
	if len(top) > DefaultShortlist {
		top = top[:DefaultShortlist]
	}
	snap.Top = top

	if e.suspension != nil {
		s := *e.suspension
		snap.Suspension = &s
	}
	return snap
}
