package environment

import (
	"fmt"

	"CascadeBandit/internal/model"
)

// FailurePolicy parameterises the simulated bank outage.
type FailurePolicy struct {
	// TriggerAt is the cascade payment count at which an outage may start.
	TriggerAt int
	// MinConstraint is the capacity an arm needs to be a failure candidate.
	MinConstraint int
	// Downtime is how many cascade payments the arm stays offline.
	Downtime int
	// Sentinel is the capacity written while the arm is offline.
	Sentinel int
}

// DefaultFailurePolicy is the outage used by the reference experiment.
func DefaultFailurePolicy() FailurePolicy {
	return FailurePolicy{TriggerAt: 139, MinConstraint: 41, Downtime: 40, Sentinel: -100}
}

// Suspension returns the pending outage, if any.
func (e *Environment) Suspension() (model.Suspension, bool) {
	if e.suspension == nil {
		return model.Suspension{}, false
	}
	return *e.suspension, true
}

// BankList returns the arms eligible to fail.
func (e *Environment) BankList() []int {
	var banks []int
	for a := 0; a < e.nArms; a++ {
		if e.constraints[a] > e.policy.MinConstraint {
			banks = append(banks, a)
		}
	}
	return banks
}

// MalfunctionGenerator picks an arm to take offline. It fires only at the
// trigger iteration, only when at least two arms are eligible, and never
// while another outage is pending.
func (e *Environment) MalfunctionGenerator() (arm, iteration int, ok bool) {
	if e.suspension != nil || e.counters.CascadePayments != e.policy.TriggerAt {
		return 0, 0, false
	}
	banks := e.BankList()
	if len(banks) < 2 {
		return 0, 0, false
	}
	return banks[e.rng.IntN(len(banks))], e.counters.CascadePayments, true
}

// DeleteBank starts an outage when the generator fires.
func (e *Environment) DeleteBank() (model.FailureEvent, bool) {
	arm, iteration, ok := e.MalfunctionGenerator()
	if !ok {
		return model.FailureEvent{}, false
	}
	e.suspension = &model.Suspension{
		Arm:        arm,
		Constraint: e.constraints[arm],
		StartedAt:  iteration,
		RestoreAt:  iteration + e.policy.Downtime,
	}
	e.constraints[arm] = e.policy.Sentinel
	return model.FailureEvent{
		Type:       model.FailureSuspended,
		Arm:        arm,
		Iteration:  iteration,
		Constraint: e.suspension.Constraint,
		Message:    fmt.Sprintf("Bank %d was deleted at %d iteration!", arm, iteration),
	}, true
}

// AddBank ends the pending outage once its restore iteration is reached.
func (e *Environment) AddBank() (model.FailureEvent, bool) {
	s := e.suspension
	if s == nil || e.counters.CascadePayments != s.RestoreAt {
		return model.FailureEvent{}, false
	}
	e.constraints[s.Arm] = s.Constraint
	e.suspension = nil
	return model.FailureEvent{
		Type:       model.FailureRestored,
		Arm:        s.Arm,
		Iteration:  e.counters.CascadePayments,
		Constraint: s.Constraint,
		Message:    fmt.Sprintf("Bank %d was returned at %d iteration!", s.Arm, e.counters.CascadePayments),
	}, true
}

// SimulateFailure runs one frame of the outage simulator: start an outage if
// one is due, otherwise end the pending one if its time has come. It is a
// no-op unless failure mode is enabled.
func (e *Environment) SimulateFailure() (model.FailureEvent, bool) {
	if !e.failure {
		return model.FailureEvent{}, false
	}
	if evt, ok := e.DeleteBank(); ok {
		return evt, true
	}
	return e.AddBank()
}
