// Package main - board.go
//
// Board assembly. One frame goes in, one deduplicated BoardState comes out.
// The region scans (hand, own field, enemy field, evolve panel) are
// independent and run concurrently; the merge rules that turn raw
// detections into the snapshot are pure functions over plain structs.
//
// Dedup rule: two same-kind detections whose anchors sit within the
// tolerance radius are the same entity, and the higher-confidence one wins.
// Output slices are sorted by screen x so downstream iteration order is
// stable across ticks.
package main

import (
	"sort"
	"sync"

	"gocv.io/x/gocv"
)

// costMark is a raw cost-crystal detection before pairing.
type costMark struct {
	Anchor     Point
	Value      int
	Confidence float64
}

// BoardStateAssembler turns frames into BoardState snapshots.
type BoardStateAssembler struct {
	cfg    *Config
	seg    *ColorSegmenter
	digits *DigitRecognizer
	lib    *CardLibrary
	finder *ControlFinder
}

func NewBoardStateAssembler(cfg *Config, seg *ColorSegmenter, digits *DigitRecognizer, lib *CardLibrary, finder *ControlFinder) *BoardStateAssembler {
	return &BoardStateAssembler{cfg: cfg, seg: seg, digits: digits, lib: lib, finder: finder}
}

// Assemble recognizes everything visible in the frame. The four region
// scans share no mutable state beyond the guarded OCR and matcher handles,
// so they run as one goroutine each.
func (a *BoardStateAssembler) Assemble(frame *Frame) BoardState {
	state := BoardState{CapturedAt: frame.CapturedAt}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		state.Hand = a.scanHand(frame.Mat)
	}()
	go func() {
		defer wg.Done()
		state.OurFollowers = a.scanOwnField(frame.Mat)
	}()
	go func() {
		defer wg.Done()
		state.Enemies, state.Shields = a.scanEnemyField(frame.Mat)
	}()
	go func() {
		defer wg.Done()
		state.EvolveVisible = a.ProbeEvolve(frame).Kind != EvolveNone
	}()
	wg.Wait()

	LogDebug("assembled board: hand=%d ours=%d enemies=%d shields=%d evolve=%v",
		len(state.Hand), len(state.OurFollowers), len(state.Enemies), len(state.Shields), state.EvolveVisible)
	return state
}

// scanHand finds card bodies and cost crystals in the hand row, pairs them
// and identifies each card.
func (a *BoardStateAssembler) scanHand(mat gocv.Mat) []HandCard {
	region := a.cfg.HandRegion()

	bodies := a.seg.Segment(mat, region, handCardRange, handCardFilter)
	crystals := a.seg.Segment(mat, region, costCrystalRange, crystalFilter)

	var cards []HandCard
	for _, b := range bodies {
		name, conf := a.identify(mat, b.Bounds)
		cards = append(cards, HandCard{
			Name:       name,
			Cost:       statUnknown,
			Anchor:     b.Centroid,
			Confidence: conf,
		})
	}
	cards = dedupHand(cards, a.cfg.DedupTolerance)

	var costs []costMark
	for _, c := range crystals {
		v, conf := a.digits.ReadRegion(mat, c.Bounds, a.cfg.CostBankFloor)
		if v == statUnknown {
			continue
		}
		costs = append(costs, costMark{Anchor: c.Centroid, Value: v, Confidence: conf})
	}

	cards = pairCosts(cards, costs, a.cfg.CostPairWindow)
	sortHand(cards)
	return cards
}

// scanOwnField finds our followers by aura color and attaches name, attack
// and health. Colored auras outrank the neutral frame in dedup so a storm
// follower never degrades to normal when both masks fire.
func (a *BoardStateAssembler) scanOwnField(mat gocv.Mat) []Follower {
	region := a.cfg.Geometry.OurFieldRegion.Bounds()

	var raw []Follower
	for _, scan := range []struct {
		class CombatClass
		rng   HSVRange
		conf  float64
	}{
		{ClassStorm, stormAuraRange, 0.9},
		{ClassRush, rushAuraRange, 0.9},
		{ClassNormal, normalAuraRange, 0.5},
	} {
		for _, blob := range a.seg.Segment(mat, region, scan.rng, auraFilter) {
			raw = append(raw, Follower{
				Class:      scan.class,
				Anchor:     blob.Centroid,
				Confidence: scan.conf,
			})
			a.attachStats(mat, blob.Bounds, &raw[len(raw)-1], true)
		}
	}

	followers := dedupFollowers(raw, a.cfg.DedupTolerance)
	for i := range followers {
		b := boundsAround(followers[i].Anchor, auraFilter.MaxWidth, auraFilter.MaxHeight)
		name, conf := a.identify(mat, b)
		followers[i].Name = name
		if conf > followers[i].Confidence {
			followers[i].Confidence = conf
		}
	}
	sortFollowers(followers)
	return followers
}

// scanEnemyField finds enemy followers (health only) and shields.
func (a *BoardStateAssembler) scanEnemyField(mat gocv.Mat) ([]Follower, []Shield) {
	region := a.cfg.Geometry.EnemyRegion.Bounds()

	var enemies []Follower
	for _, rng := range []HSVRange{normalAuraRange, rushAuraRange, stormAuraRange} {
		for _, blob := range a.seg.Segment(mat, region, rng, auraFilter) {
			f := Follower{
				Attack:     statUnknown,
				Anchor:     blob.Centroid,
				Confidence: 0.7,
			}
			a.attachStats(mat, blob.Bounds, &f, false)
			enemies = append(enemies, f)
		}
	}
	enemies = dedupFollowers(enemies, a.cfg.DedupTolerance)
	sortFollowers(enemies)

	var shields []Shield
	for _, blob := range a.seg.Segment(mat, region, shieldRange, shieldFilter) {
		h, conf := a.digits.ReadRegion(mat, statRegion(blob.Bounds, false), a.cfg.HealthBankFloor)
		shields = append(shields, Shield{
			Health:     h,
			Anchor:     blob.Centroid,
			Confidence: conf,
		})
	}
	shields = dedupShields(shields, a.cfg.DedupTolerance)
	sort.Slice(shields, func(i, j int) bool { return shields[i].Anchor.X < shields[j].Anchor.X })
	return enemies, shields
}

// ProbeEvolve checks the evolve panel for either evolution button. Super
// takes precedence when both templates clear their floors.
func (a *BoardStateAssembler) ProbeEvolve(frame *Frame) EvolveControl {
	panel := a.cfg.Geometry.EvolvePanel.Bounds()
	if m := a.finder.FindIn(frame, panel, "super_evolve_button"); m.Hit {
		return EvolveControl{Kind: EvolveSuper, Anchor: m.Anchor}
	}
	if m := a.finder.FindIn(frame, panel, "evolve_button"); m.Hit {
		return EvolveControl{Kind: EvolveNormal, Anchor: m.Anchor}
	}
	return EvolveControl{Kind: EvolveNone}
}

// attachStats reads the stat glyphs at the follower's base. Enemy followers
// expose health only.
func (a *BoardStateAssembler) attachStats(mat gocv.Mat, b Bounds, f *Follower, withAttack bool) {
	if withAttack {
		region := a.refineGlyph(mat, statRegion(b, true), attackGlyphRange)
		f.Attack, _ = a.digits.ReadRegion(mat, region, a.cfg.HealthBankFloor)
	}
	region := a.refineGlyph(mat, statRegion(b, false), healthGlyphRange)
	f.Health, _ = a.digits.ReadRegion(mat, region, a.cfg.HealthBankFloor)
}

// refineGlyph tightens the approximate corner rectangle to the glyph
// backdrop when the backdrop color is found; otherwise the approximation
// stands.
func (a *BoardStateAssembler) refineGlyph(mat gocv.Mat, approx Bounds, rng HSVRange) Bounds {
	blobs := a.seg.Segment(mat, approx, rng, glyphFilter)
	if len(blobs) == 0 {
		return approx
	}
	return blobs[0].Bounds
}

func (a *BoardStateAssembler) identify(mat gocv.Mat, b Bounds) (string, float64) {
	rect := clampRect(imageRect(b), mat)
	if rect.Empty() {
		return "", 0
	}
	crop := mat.Region(rect)
	defer crop.Close()
	return a.lib.Identify(crop)
}

// statRegion is the glyph rectangle at a follower's base: attack lower
// left, health lower right.
func statRegion(b Bounds, attack bool) Bounds {
	y := b.Y + b.H - 26
	if attack {
		return Bounds{X: b.X - 4, Y: y, W: 32, H: 30}
	}
	return Bounds{X: b.X + b.W - 28, Y: y, W: 32, H: 30}
}

func boundsAround(center Point, w, h int) Bounds {
	return Bounds{X: center.X - w/2, Y: center.Y - h/2, W: w, H: h}
}

// dedupFollowers collapses same-entity detections, keeping the higher
// confidence one. Quadratic over a board that holds at most a handful of
// followers.
func dedupFollowers(in []Follower, tol int) []Follower {
	var out []Follower
	for _, f := range in {
		merged := false
		for i := range out {
			if f.Anchor.Distance(out[i].Anchor) <= float64(tol) {
				if f.Confidence > out[i].Confidence {
					out[i] = f
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, f)
		}
	}
	return out
}

func dedupShields(in []Shield, tol int) []Shield {
	var out []Shield
	for _, s := range in {
		merged := false
		for i := range out {
			if s.Anchor.Distance(out[i].Anchor) <= float64(tol) {
				if s.Confidence > out[i].Confidence {
					out[i] = s
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, s)
		}
	}
	return out
}

func dedupHand(in []HandCard, tol int) []HandCard {
	var out []HandCard
	for _, c := range in {
		merged := false
		for i := range out {
			if c.Anchor.Distance(out[i].Anchor) <= float64(tol) {
				if c.Confidence > out[i].Confidence {
					out[i] = c
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, c)
		}
	}
	return out
}

// pairCosts attaches each cost mark to the nearest card within the x
// window. A card no mark reaches keeps the unknown sentinel; it is never
// treated as free.
func pairCosts(cards []HandCard, costs []costMark, window int) []HandCard {
	for _, cm := range costs {
		best, bestDist := -1, window+1
		for i, c := range cards {
			dx := c.Anchor.X - cm.Anchor.X
			if dx < 0 {
				dx = -dx
			}
			if dx < bestDist {
				best, bestDist = i, dx
			}
		}
		if best >= 0 {
			cards[best].Cost = cm.Value
		}
	}
	return cards
}

func sortFollowers(fs []Follower) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Anchor.X < fs[j].Anchor.X })
}

func sortHand(cs []HandCard) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Anchor.X < cs[j].Anchor.X })
}
