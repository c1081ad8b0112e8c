package environment

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"CascadeBandit/internal/model"
	"CascadeBandit/internal/sampler"
)

func newTestEnv(t *testing.T, rng sampler.Source, constraints []int) *Environment {
	t.Helper()
	env, err := New(Params{
		PrimaryProba:  []float64{0.5, 0.6, 0.7},
		RepeatedProba: []float64{0.8, 0.7, 0.4},
		Constraints:   constraints,
	}, rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return env
}

func TestNew_RejectsInconsistentParams(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"no arms", Params{}},
		{"repeated length", Params{PrimaryProba: []float64{0.5}, RepeatedProba: []float64{}, Constraints: []int{1}}},
		{"constraints length", Params{PrimaryProba: []float64{0.5}, RepeatedProba: []float64{0.5}}},
		{"probability above one", Params{PrimaryProba: []float64{1.5}, RepeatedProba: []float64{0.5}, Constraints: []int{1}}},
		{"negative repeated", Params{PrimaryProba: []float64{0.5}, RepeatedProba: []float64{-0.1}, Constraints: []int{1}}},
	}
	for _, tt := range tests {
		if _, err := New(tt.p, sampler.New(1)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestNew_PriorsStartUniform(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{10, 10, 10})
	for a := 0; a < env.NArms(); a++ {
		if p := env.PrimaryPosterior(a); p != model.NewPosterior() {
			t.Errorf("arm %d primary = %+v, want (1,1)", a, p)
		}
		if p := env.RepeatedPosterior(a); p != model.NewPosterior() {
			t.Errorf("arm %d repeated = %+v, want (1,1)", a, p)
		}
	}
	if c := env.Counters(); c != (model.Counters{}) {
		t.Errorf("counters = %+v, want zero", c)
	}
}

func TestUpdatePrimaryReward_ConsumesCapacityOnSuccessOnly(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{10, 10, 10})

	env.UpdatePrimaryReward(1, 0)
	if got := env.Constraint(1); got != 10 {
		t.Errorf("after failure constraint = %d, want 10", got)
	}
	env.UpdatePrimaryReward(1, 1)
	if got := env.Constraint(1); got != 9 {
		t.Errorf("after success constraint = %d, want 9", got)
	}

	p := env.PrimaryPosterior(1)
	if p.Alpha != 2 || p.Beta != 2 {
		t.Errorf("posterior = %+v, want (2,2)", p)
	}
	c := env.Counters()
	if c.PrimaryPayments != 2 || c.PrimarySuccess != 1 {
		t.Errorf("primary counters = %d/%d, want 2/1", c.PrimaryPayments, c.PrimarySuccess)
	}
	if c.Payments != 0 {
		t.Errorf("primary updates must not touch overall payments, got %d", c.Payments)
	}
}

func TestUpdateRepeatedReward_CountsTowardOverall(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{10, 10, 10})
	env.UpdateRepeatedReward(2, 1)
	env.UpdateRepeatedReward(2, 0)

	c := env.Counters()
	if c.RepeatedPayments != 2 || c.RepeatedSuccess != 1 {
		t.Errorf("repeated counters = %d/%d, want 2/1", c.RepeatedPayments, c.RepeatedSuccess)
	}
	if c.Payments != 2 || c.Success != 1 {
		t.Errorf("overall counters = %d/%d, want 2/1", c.Payments, c.Success)
	}
	if got := env.Constraint(2); got != 9 {
		t.Errorf("constraint = %d, want 9", got)
	}
}

func TestCascadeConfig_RoundTrip(t *testing.T) {
	env, err := New(Params{
		PrimaryProba:  []float64{0.1, 0.2, 0.3, 0.4, 0.5},
		RepeatedProba: []float64{0.1, 0.2, 0.3, 0.4, 0.5},
		Constraints:   []int{5, 5, 5, 5, 5},
	}, sampler.New(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !env.UpdateCascadeConfig("2 0 4") {
		t.Fatal("expected first registration to report true")
	}
	if env.UpdateCascadeConfig("2 0 4") {
		t.Error("second registration must be a no-op")
	}

	active := env.CascadeConfig()
	if !reflect.DeepEqual(active, []model.CascadeKey{"2 0 4"}) {
		t.Fatalf("active = %v, want [2 0 4]", active)
	}
	arms, err := model.ParseCascadeKey(string(active[0]), env.NArms())
	if err != nil {
		t.Fatalf("ParseCascadeKey: %v", err)
	}
	if !reflect.DeepEqual(arms, []int{2, 0, 4}) {
		t.Errorf("arms = %v, want [2 0 4]", arms)
	}
	if len(env.Historical()) != 1 {
		t.Errorf("historical = %v, want one entry", env.Historical())
	}
	stats, ok := env.CascadeStats("2 0 4")
	if !ok || stats != model.NewCascadeStats() {
		t.Errorf("stats = %+v ok=%v, want (1,1,0.5)", stats, ok)
	}
}

func TestUpdateCascadeConfig_IgnoresMalformedKeys(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{5, 5, 5})
	for _, key := range []model.CascadeKey{"7", "0 0", "", "1 x"} {
		if env.UpdateCascadeConfig(key) {
			t.Errorf("UpdateCascadeConfig(%q) = true, want false", key)
		}
	}
	if got := env.CascadeConfig(); len(got) != 0 {
		t.Errorf("active = %v, want empty", got)
	}
	if snap := env.Snapshot(); len(snap.Historical) != 0 {
		t.Errorf("historical = %v, want empty", snap.Historical)
	}

	env.UpdateCascadeReward("9", 1)
	if c := env.Counters(); c.CascadePayments != 0 {
		t.Errorf("cascade payments = %d, want 0 for a malformed key", c.CascadePayments)
	}
}

func TestCascadeConfig_OrderMatters(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{5, 5, 5})
	env.UpdateCascadeConfig("0 1")
	env.UpdateCascadeConfig("1 0")
	if got := len(env.CascadeConfig()); got != 2 {
		t.Errorf("expected two distinct configurations, got %d", got)
	}
}

func TestCascadeConfig_PrunesExhaustedArms(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{1, 5, 5})
	env.UpdateCascadeConfig("0 1")
	env.UpdateCascadeConfig("1 2")
	env.UpdateCascadeConfig("2 0")

	env.UpdatePrimaryReward(0, 1)
	if got := env.Constraint(0); got != 0 {
		t.Fatalf("constraint = %d, want 0", got)
	}

	active := env.CascadeConfig()
	if !reflect.DeepEqual(active, []model.CascadeKey{"1 2"}) {
		t.Errorf("active = %v, want [1 2]", active)
	}
	hist := env.Historical()
	if !reflect.DeepEqual(hist, []model.CascadeKey{"0 1", "1 2", "2 0"}) {
		t.Errorf("historical = %v, want all three", hist)
	}

	// A pruned key stays out while its arm is exhausted.
	if env.UpdateCascadeConfig("0 1") {
		t.Error("configuration on an exhausted arm must not be re-admitted")
	}
	if len(env.Historical()) != 3 {
		t.Errorf("historical grew to %d", len(env.Historical()))
	}
}

func TestCascadeConfig_EmptyIsNotFatal(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{0, 0, 0})
	env.UpdateCascadeConfig("0")
	if got := env.CascadeConfig(); len(got) != 0 {
		t.Errorf("active = %v, want empty", got)
	}
	if got := env.CascadeMean(); len(got) != 0 {
		t.Errorf("mean list = %v, want empty", got)
	}
}

func TestCascadeMean_SortsDescendingStable(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{50, 50, 50})
	env.UpdateCascadeConfig("0")
	env.UpdateCascadeConfig("1")
	env.UpdateCascadeConfig("2")
	env.UpdateCascadeConfig("0 1")

	env.UpdateCascadeReward("1", 1)
	env.UpdateCascadeReward("2", 0)

	got := env.CascadeMean()
	want := []model.CascadeKey{"1", "0", "0 1", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CascadeMean = %v, want %v", got, want)
	}
}

func TestUpdateCascadeReward_UpdatesMeanAndCounters(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{5, 5, 5})
	env.UpdateCascadeConfig("0 2")
	env.UpdateCascadeReward("0 2", 1)
	env.UpdateCascadeReward("0 2", 1)
	env.UpdateCascadeReward("0 2", 0)

	s, _ := env.CascadeStats("0 2")
	if s.Alpha != 3 || s.Beta != 2 {
		t.Errorf("posterior = %+v, want (3,2)", s)
	}
	if math.Abs(s.Mean-0.6) > 1e-12 {
		t.Errorf("mean = %v, want 0.6", s.Mean)
	}
	c := env.Counters()
	if c.CascadePayments != 3 || c.CascadeSuccess != 2 || c.Payments != 3 || c.Success != 2 {
		t.Errorf("counters = %+v", c)
	}
}

func TestPlayCascade_ShortCircuitsOnFirstSuccess(t *testing.T) {
	rng := &sampler.Scripted{
		Uniforms: []float64{0.0}, // step 0 converts
		Gammas:   []float64{2.7}, // two repeated payments, both fall back to failure
	}
	env := newTestEnv(t, rng, []int{10, 10, 10})

	out, err := env.PlayCascade("0 1 2")
	if err != nil {
		t.Fatalf("PlayCascade: %v", err)
	}
	if out.Reward != 1 || out.ConvertedStep != 0 || out.ConvertedArm != 0 {
		t.Errorf("outcome = %+v, want conversion at step 0", out)
	}
	if out.StepsVisited != 1 {
		t.Errorf("visited %d steps, want 1", out.StepsVisited)
	}
	// One primary draw plus two repeated draws; nothing for steps 2 and 3.
	if rng.UniformCalls != 3 {
		t.Errorf("uniform draws = %d, want 3", rng.UniformCalls)
	}
	c := env.Counters()
	if c.PrimaryPayments != 1 || c.PrimarySuccess != 1 {
		t.Errorf("primary counters = %d/%d, want 1/1", c.PrimaryPayments, c.PrimarySuccess)
	}
	if c.RepeatedPayments != 2 {
		t.Errorf("repeated payments = %d, want 2", c.RepeatedPayments)
	}
	if p := env.RepeatedPosterior(0); p.Beta != 3 {
		t.Errorf("arm 0 repeated posterior = %+v, want beta 3", p)
	}
	for a := 1; a < 3; a++ {
		if p := env.RepeatedPosterior(a); p != model.NewPosterior() {
			t.Errorf("arm %d repeated posterior touched: %+v", a, p)
		}
		if p := env.PrimaryPosterior(a); p != model.NewPosterior() {
			t.Errorf("arm %d primary posterior touched: %+v", a, p)
		}
	}
	if s, _ := env.CascadeStats("0 1 2"); s.Alpha != 2 || s.Beta != 1 {
		t.Errorf("cascade posterior = %+v, want (2,1)", s)
	}
}

func TestPlayCascade_LaterStepConversion(t *testing.T) {
	// Step 0 fails (0.9 >= 0.5), step 1 converts (0.05 < 0.7-0.5).
	rng := &sampler.Scripted{Uniforms: []float64{0.9, 0.05}}
	env := newTestEnv(t, rng, []int{10, 10, 10})

	out, err := env.PlayCascade("0 2")
	if err != nil {
		t.Fatalf("PlayCascade: %v", err)
	}
	if out.Reward != 1 || out.ConvertedArm != 2 || out.StepsVisited != 2 {
		t.Errorf("outcome = %+v, want conversion on arm 2", out)
	}
	// Only the first step is a primary attempt.
	if p := env.PrimaryPosterior(0); p.Alpha != 1 || p.Beta != 2 {
		t.Errorf("arm 0 primary = %+v, want (1,2)", p)
	}
	if p := env.PrimaryPosterior(2); p != model.NewPosterior() {
		t.Errorf("arm 2 primary = %+v, want prior", p)
	}
	if c := env.Counters(); c.PrimaryPayments != 1 || c.CascadeSuccess != 1 {
		t.Errorf("counters = %+v", c)
	}
}

func TestPlayCascade_AllStepsFail(t *testing.T) {
	env := newTestEnv(t, &sampler.Scripted{}, []int{10, 10, 10})
	out, err := env.PlayCascade("2 1 0")
	if err != nil {
		t.Fatalf("PlayCascade: %v", err)
	}
	if out.Reward != 0 || out.ConvertedStep != -1 || out.StepsVisited != 3 {
		t.Errorf("outcome = %+v, want full walk without conversion", out)
	}
	if s, _ := env.CascadeStats("2 1 0"); s.Alpha != 1 || s.Beta != 2 {
		t.Errorf("cascade posterior = %+v, want (1,2)", s)
	}
	if got := len(env.Historical()); got != 1 {
		t.Errorf("unregistered key should be registered on play, historical=%d", got)
	}
}

func TestPlayCascade_RejectsMalformedKeys(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{10, 10, 10})
	tests := []struct {
		key  model.CascadeKey
		want error
	}{
		{"", model.ErrEmptyCascade},
		{"3", model.ErrArmOutOfRange},
		{"1 1", model.ErrDuplicateArm},
	}
	for _, tt := range tests {
		_, err := env.PlayCascade(tt.key)
		if !errors.Is(err, tt.want) {
			t.Errorf("PlayCascade(%q) err = %v, want %v", tt.key, err, tt.want)
		}
	}
	if c := env.Counters(); c != (model.Counters{}) {
		t.Errorf("malformed keys must not mutate counters: %+v", c)
	}
}

func TestCascadeSteps_MarginalProbabilities(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{10, 10, 10})
	steps := env.cascadeSteps([]int{2, 0, 1})
	want := []model.Step{{Arm: 2, Probability: 0.7}, {Arm: 0, Probability: 0.5 - 0.7}, {Arm: 1, Probability: 0.6 - 0.5}}
	for i := range want {
		if steps[i].Arm != want[i].Arm || math.Abs(steps[i].Probability-want[i].Probability) > 1e-12 {
			t.Errorf("step %d = %+v, want %+v", i, steps[i], want[i])
		}
	}
}

func TestFlush_ResetsLearnedStateKeepsGroundTruth(t *testing.T) {
	env := newTestEnv(t, sampler.New(3), []int{10, 10, 10})
	for i := 0; i < 20; i++ {
		if _, err := env.PlayCascade("1 2"); err != nil {
			t.Fatalf("PlayCascade: %v", err)
		}
	}
	env.Flush()

	if c := env.Counters(); c != (model.Counters{}) {
		t.Errorf("counters = %+v, want zero", c)
	}
	for a := 0; a < 3; a++ {
		if env.Constraint(a) != 10 {
			t.Errorf("arm %d constraint = %d, want 10", a, env.Constraint(a))
		}
		if env.PrimaryPosterior(a) != model.NewPosterior() {
			t.Errorf("arm %d primary not reset", a)
		}
	}
	if len(env.Historical()) != 0 || len(env.CascadeConfig()) != 0 {
		t.Error("registries not reset")
	}
	snap := env.Snapshot()
	if snap.Arms[2].PrimaryProba != 0.7 {
		t.Errorf("ground truth lost: %v", snap.Arms[2].PrimaryProba)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	env := newTestEnv(t, sampler.New(1), []int{1, 10, 10})
	env.UpdateCascadeConfig("0 1")
	env.UpdateCascadeConfig("2")
	snap := env.Snapshot()

	env.UpdatePrimaryReward(0, 1)
	env.UpdateCascadeReward("2", 1)

	if snap.Arms[0].Constraint != 1 {
		t.Errorf("snapshot constraint changed to %d", snap.Arms[0].Constraint)
	}
	if snap.Historical[1].Stats.Alpha != 1 {
		t.Errorf("snapshot stats changed to %+v", snap.Historical[1].Stats)
	}

	after := env.Snapshot()
	if after.Historical[0].Active {
		t.Error("exhausted configuration reported active")
	}
	if !reflect.DeepEqual(after.Top, []model.CascadeKey{"2"}) {
		t.Errorf("top = %v, want [2]", after.Top)
	}
}
