// Package main - match.go
//
// Match-lifetime state. Everything that outlives one decision tick lives
// here: the round counter, evolve and super-evolve points, the
// extra-cost-bonus flags, per-card play strikes and the progress clock the
// stall watchdog reads.
//
// Points only ever go down and the bonus flags only ever go from unused to
// used; recognition noise can never refund a resource.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MatchTracker tracks one match from mulligan to the result screen.
type MatchTracker struct {
	mu sync.Mutex

	runID     string
	startedAt time.Time

	round             int
	evolvePoints      int
	superEvolvePoints int
	usedExtraEarly    bool
	usedExtraLate     bool

	playStrikes  map[string]int // failed play attempts this turn
	strikesRound map[string]int // direct strikes landed this round

	lastProgress time.Time
}

func NewMatchTracker(cfg *Config) *MatchTracker {
	return &MatchTracker{
		runID:             uuid.NewString(),
		startedAt:         time.Now(),
		round:             1,
		evolvePoints:      cfg.EvolvePoints,
		superEvolvePoints: cfg.SuperEvolvePoints,
		playStrikes:       make(map[string]int),
		strikesRound:      make(map[string]int),
		lastProgress:      time.Now(),
	}
}

// Round returns the current round, starting at 1.
func (t *MatchTracker) Round() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.round
}

// AdvanceRound ends our turn: bumps the counter, clears per-round state and
// marks progress.
func (t *MatchTracker) AdvanceRound() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.round++
	t.strikesRound = make(map[string]int)
	t.playStrikes = make(map[string]int)
	t.lastProgress = time.Now()
	LogInfo("round advanced to %d", t.round)
}

// PlayPoints returns the points available at the start of this turn. The
// pool grows with the round and caps at ten.
func (t *MatchTracker) PlayPoints() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.round > 10 {
		return 10
	}
	return t.round
}

// TryExtraCost claims the one-shot cost bonus for the current phase of the
// match: one use before LateRoundStart, one from it onward. Returns whether
// the claim succeeded. Claims are never returned.
func (t *MatchTracker) TryExtraCost(lateRoundStart int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.round < lateRoundStart {
		if t.usedExtraEarly {
			return false
		}
		t.usedExtraEarly = true
		return true
	}
	if t.usedExtraLate {
		return false
	}
	t.usedExtraLate = true
	return true
}

// EvolvePoints returns the remaining normal evolve points.
func (t *MatchTracker) EvolvePoints() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evolvePoints
}

// SuperEvolvePoints returns the remaining super-evolve points.
func (t *MatchTracker) SuperEvolvePoints() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.superEvolvePoints
}

// SpendEvolve consumes one point of the given kind. Returns false without
// spending when the pool is empty or the kind is EvolveNone.
func (t *MatchTracker) SpendEvolve(kind EvolveKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case EvolveNormal:
		if t.evolvePoints <= 0 {
			return false
		}
		t.evolvePoints--
	case EvolveSuper:
		if t.superEvolvePoints <= 0 {
			return false
		}
		t.superEvolvePoints--
	default:
		return false
	}
	t.lastProgress = time.Now()
	return true
}

// NoteFailedPlay records one failed play attempt for the card and returns
// the running count.
func (t *MatchTracker) NoteFailedPlay(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playStrikes[name]++
	return t.playStrikes[name]
}

// PlaySkipped reports whether the card has exhausted its attempt ceiling
// for the rest of the turn. AdvanceRound wipes the ledger.
func (t *MatchTracker) PlaySkipped(name string, limit int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playStrikes[name] >= limit
}

// BenchPlay retires the card from further play attempts this turn
// regardless of how many strikes it has.
func (t *MatchTracker) BenchPlay(name string, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playStrikes[name] < limit {
		t.playStrikes[name] = limit
	}
}

// RecordStrike counts one direct leader strike by the named follower this
// round.
func (t *MatchTracker) RecordStrike(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strikesRound[name]++
	t.lastProgress = time.Now()
}

// StrikesThisRound returns the direct strikes landed by the follower this
// round.
func (t *MatchTracker) StrikesThisRound(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.strikesRound[name]
}

// Touch marks forward progress for the stall watchdog.
func (t *MatchTracker) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastProgress = time.Now()
}

// Stalled reports whether no progress happened within the window.
func (t *MatchTracker) Stalled(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.lastProgress) > window
}

// Summary folds the tracker into the flushable match record.
func (t *MatchTracker) Summary() MatchSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return MatchSummary{
		RunID:    t.runID,
		Rounds:   t.round,
		Duration: time.Since(t.startedAt),
		EndedAt:  time.Now(),
	}
}

// AppendSummary writes one summary as a JSON line at the end of path.
func AppendSummary(path string, s MatchSummary) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open summary file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
