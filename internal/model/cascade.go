package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyCascade  = errors.New("empty cascade")
	ErrArmOutOfRange = errors.New("arm out of range")
	ErrDuplicateArm  = errors.New("arm repeated in cascade")
)

// CascadeKey identifies an ordered cascade configuration. It is the
// space-joined decimal list of arm indices, e.g. "3 1".
type CascadeKey string

// NewCascadeKey builds the canonical key for an ordered arm sequence.
func NewCascadeKey(arms []int) CascadeKey {
	parts := make([]string, len(arms))
	for i, a := range arms {
		parts[i] = strconv.Itoa(a)
	}
	return CascadeKey(strings.Join(parts, " "))
}

// ParseCascadeKey parses a serialized key and checks every index against nArms.
// A cascade never retries the same provider, so duplicates are rejected.
func ParseCascadeKey(s string, nArms int) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, ErrEmptyCascade
	}
	arms := make([]int, 0, len(fields))
	seen := make(map[int]bool, len(fields))
	for _, f := range fields {
		a, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("parse arm %q: %w", f, err)
		}
		if a < 0 || a >= nArms {
			return nil, fmt.Errorf("arm %d not in [0,%d): %w", a, nArms, ErrArmOutOfRange)
		}
		if seen[a] {
			return nil, fmt.Errorf("arm %d in %q: %w", a, s, ErrDuplicateArm)
		}
		seen[a] = true
		arms = append(arms, a)
	}
	return arms, nil
}

// Arms parses the key without range checks.
func (k CascadeKey) Arms() []int {
	fields := strings.Fields(string(k))
	arms := make([]int, 0, len(fields))
	for _, f := range fields {
		a, err := strconv.Atoi(f)
		if err != nil {
			panic(fmt.Sprintf("malformed cascade key %q", string(k)))
		}
		arms = append(arms, a)
	}
	return arms
}

// Contains reports whether arm is a member of the cascade.
func (k CascadeKey) Contains(arm int) bool {
	for _, a := range k.Arms() {
		if a == arm {
			return true
		}
	}
	return false
}

// CascadeStats is the configuration-level "cascade succeeds" posterior
// together with its cached mean.
type CascadeStats struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Mean  float64 `json:"mean"`
}

// NewCascadeStats seeds a configuration at the uniform prior.
func NewCascadeStats() CascadeStats {
	return CascadeStats{Alpha: 1, Beta: 1, Mean: 0.5}
}

// Observe updates the posterior and recomputes the cached mean.
func (c *CascadeStats) Observe(reward int) {
	c.Alpha += float64(reward)
	c.Beta += float64(1 - reward)
	c.Mean = c.Alpha / (c.Alpha + c.Beta)
}

// Step is one entry of a played cascade: the arm and the marginal
// probability that this step converts.
type Step struct {
	Arm         int
	Probability float64
}
