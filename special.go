// Package main - special.go
//
// Special-card handling. Cards whose play sequence differs from "drag to
// board" (targeted removal, buffs, multi-step prompts) are handled by named
// handlers behind a common interface. The registry is built once at startup
// and handed to the decision engine; handlers never reach for globals.
//
// A handler may decline to act when its preconditions do not hold (for
// example targeted removal with an empty enemy board). A declined play
// consumes no play points; the handler decides whether the card stays
// eligible for the rest of the turn.
package main

import "time"

// SpecialResult reports what a handler actually did. StrikeFromHand tells
// the engine to stop offering the card for the rest of the turn even though
// it was not played, for declines that cannot resolve later this turn.
type SpecialResult struct {
	Played         bool // the card left the hand
	CostConsumed   bool // play points were spent
	StrikeFromHand bool // bench the card for the rest of the turn
}

// SpecialContext carries everything a handler may need for one play.
type SpecialContext struct {
	Cfg   *Config
	In    Input
	Board BoardState
}

// SpecialAction handles the play sequence of specific named cards.
type SpecialAction interface {
	// CanHandle reports whether this handler owns the named card.
	CanHandle(name string) bool
	// Execute performs the play sequence, or declines.
	Execute(ctx *SpecialContext, card HandCard) SpecialResult
}

// SpecialRegistry dispatches cards to their handlers. First registered
// match wins.
type SpecialRegistry struct {
	handlers []SpecialAction
}

func NewSpecialRegistry(handlers ...SpecialAction) *SpecialRegistry {
	return &SpecialRegistry{handlers: handlers}
}

// Register appends a handler.
func (r *SpecialRegistry) Register(h SpecialAction) {
	r.handlers = append(r.handlers, h)
}

// Find returns the handler owning name, or nil when the card plays
// normally.
func (r *SpecialRegistry) Find(name string) SpecialAction {
	if name == "" {
		return nil
	}
	for _, h := range r.handlers {
		if h.CanHandle(name) {
			return h
		}
	}
	return nil
}

// DefaultSpecialRegistry wires the handlers for the cards the stock decks
// run.
func DefaultSpecialRegistry() *SpecialRegistry {
	return NewSpecialRegistry(
		&TargetedRemovalHandler{Names: map[string]bool{
			"execution":     true,
			"blazing_breath": true,
		}},
		&FollowerBuffHandler{Names: map[string]bool{
			"alyaska_war_consul": true,
		}},
	)
}

// TargetedRemovalHandler plays removal spells that require an enemy target.
// It picks the highest-health enemy follower and declines on an empty
// enemy board.
type TargetedRemovalHandler struct {
	Names map[string]bool
}

func (h *TargetedRemovalHandler) CanHandle(name string) bool {
	return h.Names[name]
}

func (h *TargetedRemovalHandler) Execute(ctx *SpecialContext, card HandCard) SpecialResult {
	target, ok := strongestEnemy(ctx.Board.Enemies)
	if !ok {
		// The enemy board cannot grow during our own turn, so retrying
		// later this turn cannot succeed either.
		LogDebug("removal %s declined, no enemy target", card.Name)
		return SpecialResult{StrikeFromHand: true}
	}

	drop := Point{X: ctx.Cfg.Geometry.BoardDropX, Y: ctx.Cfg.Geometry.BoardDropY}
	if !dragWithRetry(ctx.In, card.Anchor, drop, dragDuration, ctx.Cfg.ActionRetryLimit) {
		return SpecialResult{}
	}
	time.Sleep(time.Duration(ctx.Cfg.StabilizeMS/3) * time.Millisecond)
	if !clickWithRetry(ctx.In, target.Anchor, ctx.Cfg.ActionRetryLimit) {
		// The spell is already committed once dragged; nothing left to
		// recover here.
		return SpecialResult{Played: true, CostConsumed: true}
	}
	LogInfo("removal %s targeted enemy at (%d,%d) hp=%d", card.Name, target.Anchor.X, target.Anchor.Y, target.Health)
	return SpecialResult{Played: true, CostConsumed: true}
}

// FollowerBuffHandler plays buff cards that target one of our followers. It
// prefers the leftmost follower and declines when our board is empty.
type FollowerBuffHandler struct {
	Names map[string]bool
}

func (h *FollowerBuffHandler) CanHandle(name string) bool {
	return h.Names[name]
}

func (h *FollowerBuffHandler) Execute(ctx *SpecialContext, card HandCard) SpecialResult {
	if len(ctx.Board.OurFollowers) == 0 {
		// A follower may still be played later this turn, so the card
		// stays eligible.
		LogDebug("buff %s declined, no friendly target", card.Name)
		return SpecialResult{}
	}
	target := ctx.Board.OurFollowers[0]

	drop := Point{X: ctx.Cfg.Geometry.BoardDropX, Y: ctx.Cfg.Geometry.BoardDropY}
	if !dragWithRetry(ctx.In, card.Anchor, drop, dragDuration, ctx.Cfg.ActionRetryLimit) {
		return SpecialResult{}
	}
	time.Sleep(time.Duration(ctx.Cfg.StabilizeMS/3) * time.Millisecond)
	clickWithRetry(ctx.In, target.Anchor, ctx.Cfg.ActionRetryLimit)
	LogInfo("buff %s targeted follower at (%d,%d)", card.Name, target.Anchor.X, target.Anchor.Y)
	return SpecialResult{Played: true, CostConsumed: true}
}

// strongestEnemy returns the enemy follower with the highest readable
// health. Unknown-health enemies are still legal targets, preferred last.
func strongestEnemy(enemies []Follower) (Follower, bool) {
	if len(enemies) == 0 {
		return Follower{}, false
	}
	best, bestHP := -1, -1
	for i, e := range enemies {
		hp := e.Health
		if hp == statUnknown {
			hp = 0
		}
		if hp > bestHP {
			best, bestHP = i, hp
		}
	}
	return enemies[best], true
}
