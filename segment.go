// Package main - segment.go
//
// Color segmentation. Locates followers, shields, cost crystals and stat
// glyphs by HSV-range masking, morphological cleanup and external-contour
// extraction, with a size/aspect window per entity class.
//
// Adjacent game objects frequently merge into one contour at client
// resolution, so contours larger than any single instance are split into
// multiple centroids with a distance-transform peak separation before being
// accepted.
//
// Everything here is deterministic: the same bitmap and configuration always
// produce the same blobs.
package main

import (
	"image"

	"gocv.io/x/gocv"
)

// HSVRange is an inclusive hue/saturation/value window.
type HSVRange struct {
	MinH int `koanf:"min_h"`
	MaxH int `koanf:"max_h"`
	MinS int `koanf:"min_s"`
	MaxS int `koanf:"max_s"`
	MinV int `koanf:"min_v"`
	MaxV int `koanf:"max_v"`
}

// SegmentFilter constrains accepted contours for one entity class.
type SegmentFilter struct {
	MinWidth  int
	MaxWidth  int
	MinHeight int
	MaxHeight int
	// MaxArea is the largest plausible single-instance bounding area; larger
	// contours go through peak splitting. Zero disables splitting.
	MaxArea int

	MorphShape  gocv.MorphShape
	MorphKernel image.Point
	MorphIter   int
}

// Blob is one accepted detection: the bounding shape and its centroid in
// client-area coordinates.
type Blob struct {
	Bounds   Bounds
	Centroid Point
}

// Entity-class color windows. Combat class is board-visible coloring, not
// card identity: storm auras glow gold, rush auras glow green.
var (
	stormAuraRange   = HSVRange{MinH: 20, MaxH: 34, MinS: 120, MaxS: 255, MinV: 150, MaxV: 255}
	rushAuraRange    = HSVRange{MinH: 45, MaxH: 75, MinS: 110, MaxS: 255, MinV: 140, MaxV: 255}
	normalAuraRange  = HSVRange{MinH: 0, MaxH: 180, MinS: 0, MaxS: 60, MinV: 170, MaxV: 255}
	shieldRange      = HSVRange{MinH: 95, MaxH: 125, MinS: 100, MaxS: 255, MinV: 120, MaxV: 255}
	healthGlyphRange = HSVRange{MinH: 160, MaxH: 180, MinS: 120, MaxS: 255, MinV: 120, MaxV: 255}
	attackGlyphRange = HSVRange{MinH: 20, MaxH: 40, MinS: 120, MaxS: 255, MinV: 120, MaxV: 255}
	costCrystalRange = HSVRange{MinH: 130, MaxH: 155, MinS: 90, MaxS: 255, MinV: 110, MaxV: 255}
	handCardRange    = HSVRange{MinH: 0, MaxH: 180, MinS: 0, MaxS: 255, MinV: 60, MaxV: 255}
)

// Entity-class contour windows. Health/attack glyphs are narrow; shield
// icons are wider; follower auras are the largest single shapes on the
// board.
var (
	auraFilter = SegmentFilter{
		MinWidth: 40, MaxWidth: 140, MinHeight: 40, MaxHeight: 150,
		MaxArea:     150 * 160,
		MorphShape:  gocv.MorphRect,
		MorphKernel: image.Pt(5, 5),
		MorphIter:   2,
	}
	shieldFilter = SegmentFilter{
		MinWidth: 28, MaxWidth: 90, MinHeight: 24, MaxHeight: 80,
		MaxArea:     95 * 85,
		MorphShape:  gocv.MorphEllipse,
		MorphKernel: image.Pt(5, 5),
		MorphIter:   2,
	}
	glyphFilter = SegmentFilter{
		MinWidth: 8, MaxWidth: 40, MinHeight: 10, MaxHeight: 34,
		MaxArea:     45 * 40,
		MorphShape:  gocv.MorphRect,
		MorphKernel: image.Pt(3, 3),
		MorphIter:   1,
	}
	handCardFilter = SegmentFilter{
		MinWidth: 70, MaxWidth: 130, MinHeight: 90, MaxHeight: 160,
		MaxArea:     135 * 170,
		MorphShape:  gocv.MorphRect,
		MorphKernel: image.Pt(7, 7),
		MorphIter:   2,
	}
	crystalFilter = SegmentFilter{
		MinWidth: 10, MaxWidth: 44, MinHeight: 12, MaxHeight: 44,
		MaxArea:     50 * 50,
		MorphShape:  gocv.MorphEllipse,
		MorphKernel: image.Pt(3, 3),
		MorphIter:   1,
	}
)

// ColorSegmenter extracts entity-class blobs from frame regions.
type ColorSegmenter struct{}

// NewColorSegmenter creates a segmenter.
func NewColorSegmenter() *ColorSegmenter {
	return &ColorSegmenter{}
}

// Segment masks the region with the HSV range, cleans the mask up and
// returns every contour blob passing the filter windows, in client-area
// coordinates. Oversized contours are split before acceptance.
func (cs *ColorSegmenter) Segment(frame gocv.Mat, roi Bounds, rng HSVRange, filter SegmentFilter) []Blob {
	rect := clampRect(imageRect(roi), frame)
	if rect.Empty() {
		return nil
	}

	region := frame.Region(rect)
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorRGBToHSV)

	lower := gocv.NewScalar(float64(rng.MinH), float64(rng.MinS), float64(rng.MinV), 0)
	upper := gocv.NewScalar(float64(rng.MaxH), float64(rng.MaxS), float64(rng.MaxV), 0)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	kernel := gocv.GetStructuringElement(filter.MorphShape, filter.MorphKernel)
	defer kernel.Close()

	cleaned := mask.Clone()
	defer cleaned.Close()
	for i := 0; i < filter.MorphIter; i++ {
		opened := gocv.NewMat()
		gocv.MorphologyEx(cleaned, &opened, gocv.MorphOpen, kernel)
		closed := gocv.NewMat()
		gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
		opened.Close()
		cleaned.Close()
		cleaned = closed
	}

	contours := gocv.FindContours(cleaned, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var blobs []Blob
	for i := 0; i < contours.Size(); i++ {
		bb := gocv.BoundingRect(contours.At(i))

		if filter.MaxArea > 0 && bb.Dx()*bb.Dy() > filter.MaxArea {
			blobs = append(blobs, cs.splitOversized(cleaned, bb, rect.Min, filter)...)
			continue
		}
		if !fitsWindow(bb, filter) {
			continue
		}
		blobs = append(blobs, blobFromRect(bb, rect.Min))
	}
	return blobs
}

// splitOversized separates a merged contour into per-instance centroids.
// The sub-mask's distance transform peaks mark instance cores; thresholding
// at half the peak distance and re-contouring yields one blob per core.
func (cs *ColorSegmenter) splitOversized(mask gocv.Mat, bb image.Rectangle, origin image.Point, filter SegmentFilter) []Blob {
	sub := mask.Region(bb)
	defer sub.Close()

	dist := gocv.NewMat()
	defer dist.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	gocv.DistanceTransform(sub, &dist, &labels, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp)

	_, maxDist, _, _ := gocv.MinMaxLoc(dist)
	if maxDist <= 0 {
		return nil
	}

	cores := gocv.NewMat()
	defer cores.Close()
	gocv.Threshold(dist, &cores, float32(maxDist)*0.5, 255, gocv.ThresholdBinary)

	cores8 := gocv.NewMat()
	defer cores8.Close()
	cores.ConvertTo(&cores8, gocv.MatTypeCV8U)

	coreContours := gocv.FindContours(cores8, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer coreContours.Close()

	var blobs []Blob
	for i := 0; i < coreContours.Size(); i++ {
		core := gocv.BoundingRect(coreContours.At(i))
		// Core rects shrink toward instance centers; report the centroid but
		// keep a minimum-window bounding shape around it.
		cx := origin.X + bb.Min.X + core.Min.X + core.Dx()/2
		cy := origin.Y + bb.Min.Y + core.Min.Y + core.Dy()/2
		w := maxInt(core.Dx(), filter.MinWidth)
		h := maxInt(core.Dy(), filter.MinHeight)
		blobs = append(blobs, Blob{
			Bounds:   Bounds{X: cx - w/2, Y: cy - h/2, W: w, H: h},
			Centroid: Point{X: cx, Y: cy},
		})
	}
	if len(blobs) > 1 {
		LogDebug("split oversized contour %dx%d into %d instances", bb.Dx(), bb.Dy(), len(blobs))
	}
	return blobs
}

func fitsWindow(bb image.Rectangle, f SegmentFilter) bool {
	return bb.Dx() >= f.MinWidth && bb.Dx() <= f.MaxWidth &&
		bb.Dy() >= f.MinHeight && bb.Dy() <= f.MaxHeight
}

func blobFromRect(bb image.Rectangle, origin image.Point) Blob {
	b := Bounds{
		X: origin.X + bb.Min.X,
		Y: origin.Y + bb.Min.Y,
		W: bb.Dx(),
		H: bb.Dy(),
	}
	return Blob{Bounds: b, Centroid: b.Center()}
}

// imageRect converts Bounds to the stdlib rectangle gocv wants.
func imageRect(b Bounds) image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
