// Package main - matcher.go
//
// Template matching. One normalized cross-correlation pass over the frame
// (or a caller-restricted sub-region), returning the best anchor and score
// regardless of threshold so callers can log near-misses. A hit additionally
// has to pass the template's color gate when it carries one.
//
// Pure function of its inputs plus the immutable template store; no state is
// kept between calls.
package main

import (
	"image"

	"gocv.io/x/gocv"
)

// MatchResult is the outcome of one template search. Score is reported even
// when Hit is false.
type MatchResult struct {
	Anchor Point
	Score  float64
	Hit    bool
}

// TemplateMatcher runs normalized cross-correlation searches.
type TemplateMatcher struct{}

// NewTemplateMatcher creates a matcher.
func NewTemplateMatcher() *TemplateMatcher {
	return &TemplateMatcher{}
}

// Match searches the whole frame for the template.
func (m *TemplateMatcher) Match(frame gocv.Mat, tpl *Template) MatchResult {
	return m.MatchIn(frame, Bounds{X: 0, Y: 0, W: frame.Cols(), H: frame.Rows()}, tpl)
}

// MatchIn searches a sub-region of the frame. The region is clamped to the
// frame; a region that ends up smaller than the template fails softly with
// no match instead of erroring.
func (m *TemplateMatcher) MatchIn(frame gocv.Mat, region Bounds, tpl *Template) MatchResult {
	rect := clampRect(image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H), frame)
	if rect.Empty() || rect.Dx() < tpl.Width || rect.Dy() < tpl.Height {
		return MatchResult{}
	}

	roi := frame.Region(rect)
	defer roi.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(roi, tpl.Mat, &result, gocv.TmCcoeffNormed, mask)

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	score := float64(maxVal)

	anchor := Point{
		X: rect.Min.X + maxLoc.X + tpl.Width/2,
		Y: rect.Min.Y + maxLoc.Y + tpl.Height/2,
	}

	res := MatchResult{Anchor: anchor, Score: score}
	if score < tpl.Threshold {
		return res
	}

	if tpl.Gate != nil {
		matched := image.Rect(
			rect.Min.X+maxLoc.X,
			rect.Min.Y+maxLoc.Y,
			rect.Min.X+maxLoc.X+tpl.Width,
			rect.Min.Y+maxLoc.Y+tpl.Height,
		)
		if !m.gateAccepts(frame, matched, tpl.Gate) {
			LogDebug("template %s scored %.3f but failed color gate", tpl.Name, score)
			return res
		}
	}

	res.Hit = true
	return res
}

// gateAccepts re-samples the matched region into HSV and applies the gate's
// acceptance test. This separates visually similar monochrome shapes by
// their glow color.
func (m *TemplateMatcher) gateAccepts(frame gocv.Mat, rect image.Rectangle, gate *ColorGate) bool {
	rect = clampRect(rect, frame)
	if rect.Empty() {
		return false
	}

	roi := frame.Region(rect)
	defer roi.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorRGBToHSV)

	mean := hsv.Mean()
	h, s, v := mean.Val1, mean.Val2, mean.Val3

	if gate.Range != nil {
		r := gate.Range
		return h >= float64(r.MinH) && h <= float64(r.MaxH) &&
			s >= float64(r.MinS) && s <= float64(r.MaxS) &&
			v >= float64(r.MinV) && v <= float64(r.MaxV)
	}
	return v >= gate.MinValue
}

// ControlFinder is the name-based front of the matcher: it resolves a
// template name through the store and searches a frame for it. Callers
// never touch Template structs directly.
type ControlFinder struct {
	store   *TemplateStore
	matcher *TemplateMatcher
}

func NewControlFinder(store *TemplateStore, matcher *TemplateMatcher) *ControlFinder {
	return &ControlFinder{store: store, matcher: matcher}
}

// Find searches the whole frame for the named template. An unknown name is
// a no-match, not an error; the asset set decides what the bot can see.
func (f *ControlFinder) Find(frame *Frame, name string) MatchResult {
	tpl, ok := f.store.Get(name)
	if !ok {
		LogDebug("template %s not loaded", name)
		return MatchResult{}
	}
	return f.matcher.Match(frame.Mat, tpl)
}

// FindIn searches a sub-region of the frame for the named template.
func (f *ControlFinder) FindIn(frame *Frame, region Bounds, name string) MatchResult {
	tpl, ok := f.store.Get(name)
	if !ok {
		LogDebug("template %s not loaded", name)
		return MatchResult{}
	}
	return f.matcher.MatchIn(frame.Mat, region, tpl)
}

// clampRect restricts r to the frame bounds.
func clampRect(r image.Rectangle, frame gocv.Mat) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
}
