// Package main - data.go
//
// This file defines the core data structures shared across the recognition
// pipeline and the turn-decision engine.
//
// Major Data Categories:
//
// 1. Geometric Types:
//    - Point: 2D client-area coordinates with distance calculations
//    - Bounds: Rectangles with center/size/containment operations
//
// 2. Recognized Entities:
//    - HandCard: a named card in hand with its play cost
//    - Follower: a unit on the board with combat class, attack and health
//    - Shield: a defensive target that must be removed before the enemy
//      leader can be attacked
//    - EvolveControl: the evolve / super-evolve button when visible
//
// 3. Board Snapshot:
//    - BoardState: the deduplicated snapshot of one decision tick
//
// 4. Actions:
//    - Action: the tagged union of everything the engine can dispatch
//
// All anchors are expressed in client-area pixel space. The capture layer
// translates raw frame coordinates before anything downstream sees them, so
// no consumer ever branches on capture geometry.
package main

import (
	"math"
	"time"
)

// Point represents a 2D coordinate in client-area space.
type Point struct {
	X int
	Y int
}

// NewPoint creates a new Point
func NewPoint(x, y int) Point {
	return Point{X: x, Y: y}
}

// Distance calculates Euclidean distance to another point
func (p Point) Distance(other Point) float64 {
	dx := float64(p.X - other.X)
	dy := float64(p.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Bounds represents a rectangular area
type Bounds struct {
	X int // Top-left X coordinate
	Y int // Top-left Y coordinate
	W int // Width
	H int // Height
}

// NewBounds creates a new Bounds
func NewBounds(x, y, w, h int) Bounds {
	return Bounds{X: x, Y: y, W: w, H: h}
}

// Center returns the center point of the bounds
func (b Bounds) Center() Point {
	return Point{
		X: b.X + b.W/2,
		Y: b.Y + b.H/2,
	}
}

// Size returns the area of the bounds
func (b Bounds) Size() int {
	return b.W * b.H
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.W &&
		p.Y >= b.Y && p.Y <= b.Y+b.H
}

// Overlaps checks if two bounds intersect
func (b Bounds) Overlaps(other Bounds) bool {
	return b.X < other.X+other.W &&
		b.X+b.W > other.X &&
		b.Y < other.Y+other.H &&
		b.Y+b.H > other.Y
}

// CombatClass is a follower's attack eligibility, read from on-screen
// coloring rather than card identity.
type CombatClass int

const (
	ClassNormal CombatClass = iota // cannot attack this turn
	ClassRush                      // may attack enemy followers
	ClassStorm                     // may attack the enemy leader directly
)

// String returns the string representation of the class
func (c CombatClass) String() string {
	switch c {
	case ClassRush:
		return "rush"
	case ClassStorm:
		return "storm"
	default:
		return "normal"
	}
}

// statUnknown is the sentinel for an unrecognized attack/health/cost value.
// Zero is a legal real value and must never stand in for "not recognized".
const statUnknown = 99

// HandCard is a card recognized in the hand row.
type HandCard struct {
	Name       string // empty when the identifier had no confident match
	Cost       int    // statUnknown when the cost crystal could not be read
	Anchor     Point
	Confidence float64
}

// Known reports whether the identifier attached a name to this card.
func (h HandCard) Known() bool {
	return h.Name != ""
}

// Follower is a unit on the board. Enemy followers carry health only; the
// remaining fields stay at their zero/sentinel values.
type Follower struct {
	Name       string // empty when unidentified; still targetable by position
	Class      CombatClass
	Attack     int
	Health     int
	Anchor     Point
	Confidence float64
}

// Shield is a defensive target in front of the enemy leader.
type Shield struct {
	Health     int
	Anchor     Point
	Confidence float64
}

// EvolveKind discriminates which evolution control is on screen.
type EvolveKind int

const (
	EvolveNone EvolveKind = iota
	EvolveNormal
	EvolveSuper
)

// EvolveControl is the evolve / super-evolve button probed after selecting
// a follower.
type EvolveControl struct {
	Kind   EvolveKind
	Anchor Point
}

// BoardState is the deduplicated snapshot of one decision tick. Hand and
// follower slices are sorted by screen x. It is created fresh every tick and
// never persisted; values that outlive a tick are copied into the tracker.
type BoardState struct {
	Hand          []HandCard
	OurFollowers  []Follower
	Enemies       []Follower
	Shields       []Shield
	EvolveVisible bool
	CapturedAt    time.Time
}

// ActionKind discriminates the Action union.
type ActionKind int

const (
	ActionPlayCard ActionKind = iota
	ActionAttackWith
	ActionEvolve
	ActionSuperEvolve
	ActionSpecial
)

// String returns the string representation of the kind
func (k ActionKind) String() string {
	switch k {
	case ActionPlayCard:
		return "play"
	case ActionAttackWith:
		return "attack"
	case ActionEvolve:
		return "evolve"
	case ActionSuperEvolve:
		return "super-evolve"
	case ActionSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// Action carries the minimum geometry needed to execute one dispatched
// action. Source is the entity being acted with; Target is nil for
// untargeted actions.
type Action struct {
	Kind   ActionKind
	Card   string
	Source Point
	Target *Point
}

// MatchSummary is the plain record flushed when a match ends. Storage
// location and format beyond this struct are a collaborator concern.
type MatchSummary struct {
	RunID    string        `json:"run_id"`
	Rounds   int           `json:"rounds"`
	Duration time.Duration `json:"duration"`
	EndedAt  time.Time     `json:"ended_at"`
}
