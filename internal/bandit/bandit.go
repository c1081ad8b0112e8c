// Package bandit runs one decision cycle: choose a cascade, then play it.
package bandit

import (
	"fmt"
	"log"

	"CascadeBandit/internal/model"
)

// Chooser picks the cascade configuration to play.
type Chooser interface {
	ChooseCascade() (model.CascadeKey, bool)
}

// Player simulates a cascade and records its outcome.
type Player interface {
	PlayCascade(key model.CascadeKey) (model.Outcome, error)
}

// Result reports what one Action did.
type Result struct {
	Cascade model.CascadeKey
	Outcome model.Outcome
	// Skipped is set when no cascade was available; nothing was played.
	Skipped bool
}

// Bandit wires a strategy to an environment. It owns neither.
type Bandit struct {
	chooser Chooser
	player  Player
}

// New creates a Bandit.
func New(chooser Chooser, player Player) *Bandit {
	return &Bandit{chooser: chooser, player: player}
}

// Action runs one iteration.
func (b *Bandit) Action() (Result, error) {
	key, ok := b.chooser.ChooseCascade()
	if !ok {
		log.Println("[WARN] no cascade available, skipping iteration")
		return Result{Skipped: true}, nil
	}
	out, err := b.player.PlayCascade(key)
	if err != nil {
		return Result{Cascade: key}, fmt.Errorf("action: %w", err)
	}
	return Result{Cascade: key, Outcome: out}, nil
}
