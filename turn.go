// Package main - turn.go
//
// The turn-decision engine. One call to RunTurn drives a whole friendly
// turn as a state machine: mulligan (first turn only), card plays, one
// evolution, attacks, end turn. Each phase re-reads the board after every
// dispatched action instead of trusting its own prediction; the screen is
// the only source of truth.
//
// The choice rules themselves (what to discard, what to play, who attacks
// what) are pure functions over the snapshot so they can be exercised
// without a screen.
package main

import (
	"sort"
	"strconv"
	"time"
)

// TurnState names the phase the engine is in.
type TurnState int

const (
	StateReplace TurnState = iota
	StatePlay
	StateEvolve
	StateAttack
	StateEnd
	StateDone
)

// String returns the string representation of the state
func (s TurnState) String() string {
	switch s {
	case StateReplace:
		return "replace"
	case StatePlay:
		return "play"
	case StateEvolve:
		return "evolve"
	case StateAttack:
		return "attack"
	case StateEnd:
		return "end"
	default:
		return "done"
	}
}

// TurnContext is everything one turn needs, owned by the caller and passed
// down. The engine holds no references past the call.
type TurnContext struct {
	Cfg       *Config
	In        Input
	Source    FrameSource
	Assembler *BoardStateAssembler
	Tracker   *MatchTracker
	Specials  *SpecialRegistry
	Finder    *ControlFinder
}

// dragDuration is the pointer travel time for one drag. Faster drags get
// dropped by the client's gesture recognition.
const dragDuration = 350 * time.Millisecond

// TurnEngine drives friendly turns.
type TurnEngine struct {
	ctx   TurnContext
	state TurnState
}

func NewTurnEngine(ctx TurnContext) *TurnEngine {
	return &TurnEngine{ctx: ctx, state: StatePlay}
}

// perform dispatches one engine action to the input layer. Drags carry a
// target, clicks act on the source alone.
func (e *TurnEngine) perform(a Action) bool {
	LogDebug("dispatch %s %s from (%d,%d)", a.Kind, a.Card, a.Source.X, a.Source.Y)
	switch a.Kind {
	case ActionPlayCard, ActionAttackWith, ActionSpecial:
		if a.Target == nil {
			return clickWithRetry(e.ctx.In, a.Source, e.ctx.Cfg.ActionRetryLimit)
		}
		return dragWithRetry(e.ctx.In, a.Source, *a.Target, dragDuration, e.ctx.Cfg.ActionRetryLimit)
	case ActionEvolve, ActionSuperEvolve:
		return clickWithRetry(e.ctx.In, a.Source, e.ctx.Cfg.ActionRetryLimit)
	default:
		return false
	}
}

// mulligan tiers from strictest to loosest. The last tier discards nothing
// and always applies, so tier fallback cannot run off the end.
var replaceTiers = []string{"curve2", "curve3", "curve4", "keepall"}

// chooseDiscards picks the opening-hand cards to throw back. A tier applies
// when it keeps at least one card; when the configured tier would empty the
// hand the next looser tier is tried. Cards whose cost could not be read
// are always kept.
func chooseDiscards(hand []HandCard, strategy string) ([]HandCard, string) {
	start := 0
	for i, tier := range replaceTiers {
		if tier == strategy {
			start = i
			break
		}
	}
	for _, tier := range replaceTiers[start:] {
		limit := 0
		switch tier {
		case "curve2":
			limit = 2
		case "curve3":
			limit = 3
		case "curve4":
			limit = 4
		case "keepall":
			return nil, tier
		}
		var discards []HandCard
		for _, c := range hand {
			if c.Cost != statUnknown && c.Cost > limit {
				discards = append(discards, c)
			}
		}
		if len(discards) < len(hand) {
			return discards, tier
		}
	}
	return nil, "keepall"
}

// RunMulligan throws back the opening-hand cards the strategy rejects and
// confirms. Called once, before the first RunTurn.
func (e *TurnEngine) RunMulligan() {
	e.state = StateReplace
	_, board, ok := e.freshState()
	if !ok {
		LogWarn("mulligan: no frame, keeping hand")
		return
	}

	discards, tier := chooseDiscards(board.Hand, e.ctx.Cfg.ReplaceStrategy)
	LogInfo("mulligan tier %s: discarding %d of %d", tier, len(discards), len(board.Hand))
	for _, c := range discards {
		clickWithRetry(e.ctx.In, c.Anchor, e.ctx.Cfg.ActionRetryLimit)
	}

	confirm := Point{X: e.ctx.Cfg.Geometry.ReplaceConfirmX, Y: e.ctx.Cfg.Geometry.ReplaceConfirmY}
	clickWithRetry(e.ctx.In, confirm, e.ctx.Cfg.ActionRetryLimit)
	e.stabilize()
}

// RunTurn plays out one friendly turn.
func (e *TurnEngine) RunTurn() {
	e.state = StatePlay
	e.playPhase()

	e.state = StateEvolve
	e.evolvePhase()

	e.state = StateAttack
	e.attackPhase()

	e.state = StateEnd
	e.endTurn()

	e.state = StateDone
}

// choosePlay picks the next card to play with at most pp points. Priority
// order: configured priority cards (by priority number, costlier first on
// ties), then zero-cost cards, then the most expensive affordable card.
// Unknown costs are unaffordable. The skipped predicate sees the whole card
// so benched unnamed cards stay benched too.
func choosePlay(hand []HandCard, pp int, priorities []CardPriority, skipped func(HandCard) bool) (HandCard, bool) {
	affordable := func(c HandCard) bool {
		return c.Cost != statUnknown && c.Cost <= pp && !skipped(c)
	}

	bestPri, found := 0, false
	var pick HandCard
	for _, p := range priorities {
		for _, c := range hand {
			if c.Name != p.Name || !affordable(c) {
				continue
			}
			if !found || p.Priority < bestPri || (p.Priority == bestPri && c.Cost > pick.Cost) {
				pick, bestPri, found = c, p.Priority, true
			}
		}
	}
	if found {
		return pick, true
	}

	for _, c := range hand {
		if c.Cost == 0 && !skipped(c) {
			return c, true
		}
	}

	bestCost := -1
	for _, c := range hand {
		if affordable(c) && c.Cost > bestCost {
			pick, bestCost = c, c.Cost
		}
	}
	return pick, bestCost >= 0
}

// playPhase spends the round's play points. Success of every play is
// verified against a rescan; a card still in hand after the drag is a
// failed attempt and three failures bench the card for the rest of the
// turn.
func (e *TurnEngine) playPhase() {
	cfg := e.ctx.Cfg
	pp := e.ctx.Tracker.PlayPoints()

	for guard := 0; guard < 2*cfg.PlayAttemptLimit*10; guard++ {
		_, board, ok := e.freshState()
		if !ok {
			return
		}
		if len(board.Hand) == 0 || pp <= 0 {
			return
		}

		skipped := func(c HandCard) bool {
			return e.ctx.Tracker.PlaySkipped(cardKey(c), cfg.PlayAttemptLimit)
		}
		card, ok := choosePlay(board.Hand, pp, cfg.PriorityPlays, skipped)
		if !ok {
			// Nothing affordable; the one-shot bonus may unlock exactly one
			// more play.
			card, ok = choosePlay(board.Hand, pp+cfg.ExtraCostBonus, cfg.PriorityPlays, skipped)
			if !ok || card.Cost <= pp || !e.ctx.Tracker.TryExtraCost(cfg.LateRoundStart) {
				return
			}
			pp += cfg.ExtraCostBonus
		}

		cost, played := e.playCard(board, card)
		if !played {
			key := cardKey(card)
			strikes := e.ctx.Tracker.NoteFailedPlay(key)
			LogWarn("play %s failed, strike %d", key, strikes)
			continue
		}
		pp -= cost
		e.ctx.Tracker.Touch()
	}
}

// playCard dispatches one play, special handler first, and verifies it by
// rescan. Returns the points consumed and whether the card left the hand.
func (e *TurnEngine) playCard(board BoardState, card HandCard) (int, bool) {
	cfg := e.ctx.Cfg

	if h := e.ctx.Specials.Find(card.Name); h != nil {
		res := h.Execute(&SpecialContext{Cfg: cfg, In: e.ctx.In, Board: board}, card)
		if !res.Played {
			if res.StrikeFromHand {
				e.ctx.Tracker.BenchPlay(cardKey(card), cfg.PlayAttemptLimit)
				LogDebug("%s benched for the turn by its handler", cardKey(card))
			}
			return 0, false
		}
		e.stabilize()
		cost := 0
		if res.CostConsumed {
			cost = card.Cost
		}
		return cost, true
	}

	drop := Point{X: cfg.Geometry.BoardDropX, Y: cfg.Geometry.BoardDropY}
	if !e.perform(Action{Kind: ActionPlayCard, Card: cardKey(card), Source: card.Anchor, Target: &drop}) {
		return 0, false
	}
	e.stabilize()

	_, after, ok := e.freshState()
	if !ok {
		return card.Cost, true
	}
	if stillInHand(after.Hand, card) {
		return 0, false
	}
	LogInfo("played %s for %d", cardKey(card), card.Cost)
	return card.Cost, true
}

// stillInHand reports whether the card remains in the rescanned hand:
// same name, or for unnamed cards an anchor within the dedup radius.
func stillInHand(hand []HandCard, card HandCard) bool {
	for _, c := range hand {
		if card.Name != "" && c.Name == card.Name {
			return true
		}
		if card.Name == "" && c.Anchor.Distance(card.Anchor) <= 40 {
			return true
		}
	}
	return false
}

// evolvePhase evolves at most one follower per turn. Selecting a follower
// and probing for the button is the only way to learn whether evolution is
// offered, so candidates are tried in order until one takes.
func (e *TurnEngine) evolvePhase() {
	cfg := e.ctx.Cfg
	if e.ctx.Tracker.EvolvePoints() <= 0 && e.ctx.Tracker.SuperEvolvePoints() <= 0 {
		return
	}

	_, board, ok := e.freshState()
	if !ok {
		return
	}

	for _, f := range evolveOrder(board.OurFollowers, cfg.EvolvePriority) {
		if e.tryEvolve(f) {
			return
		}
	}
}

// evolveOrder ranks our followers for the turn's evolution: followers on
// the priority list first, by priority number then combat class then
// screen position, then everyone else by combat class and screen position.
// Storm outranks rush outranks normal.
func evolveOrder(followers []Follower, priorities []CardPriority) []Follower {
	listedPri := func(f Follower) (int, bool) {
		for _, p := range priorities {
			if p.Name != "" && f.Name == p.Name {
				return p.Priority, true
			}
		}
		return 0, false
	}
	out := append([]Follower(nil), followers...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, li := listedPri(out[i])
		pj, lj := listedPri(out[j])
		if li != lj {
			return li
		}
		if li && pi != pj {
			return pi < pj
		}
		if out[i].Class != out[j].Class {
			return classRank(out[i].Class) < classRank(out[j].Class)
		}
		return out[i].Anchor.X < out[j].Anchor.X
	})
	return out
}

func classRank(c CombatClass) int {
	switch c {
	case ClassStorm:
		return 0
	case ClassRush:
		return 1
	default:
		return 2
	}
}

// tryEvolve selects the follower, probes the panel and spends the point
// when a button shows.
func (e *TurnEngine) tryEvolve(f Follower) bool {
	if !clickWithRetry(e.ctx.In, f.Anchor, e.ctx.Cfg.ActionRetryLimit) {
		return false
	}
	time.Sleep(time.Duration(e.ctx.Cfg.StabilizeMS/3) * time.Millisecond)

	e.ctx.Source.Invalidate()
	frame, ok := e.ctx.Source.Capture()
	if !ok {
		return false
	}
	control := e.ctx.Assembler.ProbeEvolve(frame)
	if control.Kind == EvolveNone {
		// Deselect so the attack phase starts clean.
		e.ctx.In.Click(e.ctx.Cfg.Geometry.BoardDropX, e.ctx.Cfg.Geometry.BoardDropY)
		return false
	}
	if !e.ctx.Tracker.SpendEvolve(control.Kind) {
		e.ctx.In.Click(e.ctx.Cfg.Geometry.BoardDropX, e.ctx.Cfg.Geometry.BoardDropY)
		return false
	}
	kind := ActionEvolve
	if control.Kind == EvolveSuper {
		kind = ActionSuperEvolve
	}
	e.perform(Action{Kind: kind, Card: f.Name, Source: control.Anchor})
	e.stabilize()
	LogInfo("%s used on %s", control.Kind.kindName(), f.Name)
	return true
}

func (k EvolveKind) kindName() string {
	if k == EvolveSuper {
		return "super-evolve"
	}
	return "evolve"
}

// chooseShieldAttack pairs an attacker with a shield for the next strike.
// Across every attacker/shield pair, exact lethal beats overkill (least
// wasted damage) beats underkill (biggest chip). An unknown attack or
// shield health ranks the pair as a zero-attack underkill.
func chooseShieldAttack(attackers []Follower, shields []Shield) (Follower, Shield, bool) {
	if len(attackers) == 0 || len(shields) == 0 {
		return Follower{}, Shield{}, false
	}

	type rank struct{ category, waste int }
	score := func(a Follower, s Shield) rank {
		atk := a.Attack
		if atk == statUnknown {
			atk = 0
		}
		if s.Health == statUnknown || atk < s.Health {
			return rank{category: 2, waste: -atk}
		}
		if atk == s.Health {
			return rank{category: 0}
		}
		return rank{category: 1, waste: atk - s.Health}
	}

	bestA, bestS := 0, 0
	best := score(attackers[0], shields[0])
	for i, a := range attackers {
		for j, s := range shields {
			r := score(a, s)
			if r.category < best.category || (r.category == best.category && r.waste < best.waste) {
				bestA, bestS, best = i, j, r
			}
		}
	}
	return attackers[bestA], shields[bestS], true
}

// readyAttackers filters followers able to attack at all this turn.
func readyAttackers(fs []Follower) []Follower {
	var out []Follower
	for _, f := range fs {
		if f.Class != ClassNormal {
			out = append(out, f)
		}
	}
	return out
}

// allowedStrikes returns how many direct leader strikes the named follower
// gets this round. One by default; exceptions widen it from their round on.
func allowedStrikes(name string, round int, exceptions []StormException) int {
	for _, ex := range exceptions {
		if ex.Name == name && round >= ex.MinRound {
			return ex.Strikes
		}
	}
	return 1
}

// attackPhase clears shields first, then sends storm at the leader and
// rush at enemy followers. Every pass rescans; the iteration ceiling stops
// a recognition loop from pinning the turn.
func (e *TurnEngine) attackPhase() {
	cfg := e.ctx.Cfg

	for pass := 0; pass < cfg.AttackPassLimit; pass++ {
		_, board, ok := e.freshState()
		if !ok {
			return
		}
		attackers := readyAttackers(board.OurFollowers)
		if len(attackers) == 0 {
			return
		}
		if len(board.Shields) == 0 {
			break
		}

		attacker, shield, ok := chooseShieldAttack(attackers, board.Shields)
		if !ok {
			return
		}
		target := shield.Anchor
		if !e.perform(Action{Kind: ActionAttackWith, Card: attacker.Name, Source: attacker.Anchor, Target: &target}) {
			return
		}
		e.stabilize()
		e.ctx.Tracker.Touch()
	}

	for pass := 0; pass < cfg.AttackPassLimit; pass++ {
		_, board, ok := e.freshState()
		if !ok {
			return
		}
		if len(board.Shields) > 0 {
			return
		}

		acted := false
		for _, f := range readyAttackers(board.OurFollowers) {
			switch f.Class {
			case ClassStorm:
				if e.ctx.Tracker.StrikesThisRound(cardKeyF(f)) >= allowedStrikes(f.Name, e.ctx.Tracker.Round(), cfg.StormExceptions) {
					continue
				}
				leader := Point{X: cfg.Geometry.EnemyLeaderX, Y: cfg.Geometry.EnemyLeaderY}
				if e.perform(Action{Kind: ActionAttackWith, Card: f.Name, Source: f.Anchor, Target: &leader}) {
					e.ctx.Tracker.RecordStrike(cardKeyF(f))
					acted = true
				}
			case ClassRush:
				if len(board.Enemies) == 0 {
					continue
				}
				target, ok := chooseTrade(f, board.Enemies)
				if !ok {
					continue
				}
				tp := target.Anchor
				if e.perform(Action{Kind: ActionAttackWith, Card: f.Name, Source: f.Anchor, Target: &tp}) {
					acted = true
				}
			}
			if acted {
				break
			}
		}
		if !acted {
			return
		}
		e.stabilize()
	}
}

// chooseTrade picks the enemy the rush follower should hit: the highest
// readable health it can remove, else the weakest enemy.
func chooseTrade(attacker Follower, enemies []Follower) (Follower, bool) {
	if len(enemies) == 0 {
		return Follower{}, false
	}
	atk := attacker.Attack
	best, bestHP := -1, -1
	for i, en := range enemies {
		if en.Health == statUnknown {
			continue
		}
		if atk != statUnknown && en.Health <= atk && en.Health > bestHP {
			best, bestHP = i, en.Health
		}
	}
	if best >= 0 {
		return enemies[best], true
	}
	weak, weakHP := 0, statUnknown+1
	for i, en := range enemies {
		if en.Health < weakHP {
			weak, weakHP = i, en.Health
		}
	}
	return enemies[weak], true
}

// endTurn clicks the end-turn control when visible and advances the round.
func (e *TurnEngine) endTurn() {
	frame, ok := e.captureFresh()
	if ok {
		if m := e.ctx.Finder.Find(frame, "end_turn"); m.Hit {
			clickWithRetry(e.ctx.In, m.Anchor, e.ctx.Cfg.ActionRetryLimit)
		} else {
			LogWarn("end turn control not visible")
		}
	}
	e.ctx.Tracker.AdvanceRound()
	e.stabilize()
}

func (e *TurnEngine) freshState() (*Frame, BoardState, bool) {
	frame, ok := e.captureFresh()
	if !ok {
		return nil, BoardState{}, false
	}
	return frame, e.ctx.Assembler.Assemble(frame), true
}

func (e *TurnEngine) captureFresh() (*Frame, bool) {
	e.ctx.Source.Invalidate()
	frame, ok := e.ctx.Source.Capture()
	if !ok {
		LogWarn("capture failed in state %s", e.state)
	}
	return frame, ok
}

func (e *TurnEngine) stabilize() {
	time.Sleep(time.Duration(e.ctx.Cfg.StabilizeMS) * time.Millisecond)
	e.ctx.Source.Invalidate()
}

// cardKey names a card for strike bookkeeping; unnamed cards key on their
// anchor column so distinct unknowns do not share a ledger.
func cardKey(c HandCard) string {
	if c.Name != "" {
		return c.Name
	}
	return "unknown@" + strconv.Itoa(c.Anchor.X/80)
}

func cardKeyF(f Follower) string {
	if f.Name != "" {
		return f.Name
	}
	return "unknown@" + strconv.Itoa(f.Anchor.X/80)
}
