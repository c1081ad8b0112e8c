package environment

import (
	"fmt"
	"log"
	"sort"

	"CascadeBandit/internal/model"
)

// UpdateCascadeConfig adds key to the active pool. A new key is also
// registered in the historical registry with a uniform prior. A key pruned
// earlier is re-admitted with its posterior intact once every arm has
// capacity again, which is how a restored bank comes back into play.
// Malformed keys and keys already active are ignored.
func (e *Environment) UpdateCascadeConfig(key model.CascadeKey) bool {
	if _, err := model.ParseCascadeKey(string(key), e.nArms); err != nil {
		log.Printf("[WARN] ignoring cascade %q: %v", key, err)
		return false
	}
	if e.isActive(key) {
		return false
	}
	if _, seen := e.cascades[key]; seen {
		if !e.hasCapacity(key) {
			return false
		}
		e.active = append(e.active, key)
		return true
	}
	stats := model.NewCascadeStats()
	e.cascades[key] = &stats
	e.active = append(e.active, key)
	e.historical = append(e.historical, key)
	return true
}

// CascadeConfig returns the active configurations whose arms all still have
// capacity. Configurations that fail the check are pruned from the active
// pool until proposed again; the historical registry keeps them.
func (e *Environment) CascadeConfig() []model.CascadeKey {
	e.active = e.liveActive()
	if len(e.active) == 0 {
		log.Println("[WARN] cascade list is empty")
	}
	return append([]model.CascadeKey(nil), e.active...)
}

// CascadeMean returns the live configurations ordered by posterior mean,
// best first. Ties keep registration order.
func (e *Environment) CascadeMean() []model.CascadeKey {
	return e.sortByMean(e.CascadeConfig())
}

// CascadeStats returns the posterior of a registered configuration.
func (e *Environment) CascadeStats(key model.CascadeKey) (model.CascadeStats, bool) {
	s, ok := e.cascades[key]
	if !ok {
		return model.CascadeStats{}, false
	}
	return *s, true
}

// Historical returns every configuration ever registered, in order.
func (e *Environment) Historical() []model.CascadeKey {
	return append([]model.CascadeKey(nil), e.historical...)
}

// PlayCascade simulates routing one payment through key. The first step
// always records a primary attempt; the walk stops at the first success,
// which is followed by a burst of repeated (token) payments on the same arm.
// The last visited step's reward is credited to the configuration.
func (e *Environment) PlayCascade(key model.CascadeKey) (model.Outcome, error) {
	arms, err := model.ParseCascadeKey(string(key), e.nArms)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("play cascade %q: %w", key, err)
	}

	out := model.Outcome{
		Cascade:       model.NewCascadeKey(arms),
		ConvertedStep: -1,
		ConvertedArm:  -1,
	}

	reward := 0
	for i, step := range e.cascadeSteps(arms) {
		reward = e.PullArm(step.Probability)
		out.StepsVisited++

		if i == 0 {
			e.UpdatePrimaryReward(step.Arm, reward)
		}

		if reward == 1 {
			out.ConvertedStep = i
			out.ConvertedArm = step.Arm

			n := int(e.rng.Gamma(1, 2))
			for j := 0; j < n; j++ {
				r := e.PullArm(e.repeatedProba[step.Arm])
				e.UpdateRepeatedReward(step.Arm, r)
				out.RepeatedAttempts++
				out.RepeatedSuccess += r
			}
			break
		}
	}

	out.Reward = reward
	e.UpdateCascadeReward(out.Cascade, reward)
	return out, nil
}

// cascadeSteps turns the cumulative primary-probability curve into per-step
// marginal probabilities. Later steps only see traffic the earlier arms would
// have converted, so the difference can be zero or negative.
func (e *Environment) cascadeSteps(arms []int) []model.Step {
	steps := make([]model.Step, len(arms))
	for i, a := range arms {
		p := e.primaryProba[a]
		if i > 0 {
			p -= e.primaryProba[arms[i-1]]
		}
		steps[i] = model.Step{Arm: a, Probability: p}
	}
	return steps
}

func (e *Environment) liveActive() []model.CascadeKey {
	live := make([]model.CascadeKey, 0, len(e.active))
	for _, key := range e.active {
		if e.hasCapacity(key) {
			live = append(live, key)
		}
	}
	return live
}

func (e *Environment) isActive(key model.CascadeKey) bool {
	for _, k := range e.active {
		if k == key {
			return true
		}
	}
	return false
}

func (e *Environment) hasCapacity(key model.CascadeKey) bool {
	for _, a := range key.Arms() {
		if e.constraints[a] <= 0 {
			return false
		}
	}
	return true
}

func (e *Environment) sortByMean(keys []model.CascadeKey) []model.CascadeKey {
	sort.SliceStable(keys, func(i, j int) bool {
		return e.cascades[keys[i]].Mean > e.cascades[keys[j]].Mean
	})
	return keys
}
