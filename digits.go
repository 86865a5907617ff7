// Package main - digits.go
//
// Numeric stat reading. The primary path is tesseract constrained to a
// digit whitelist; when the engine's confidence falls below the floor the
// reader falls back to a per-digit glyph bank compared with SSIM. A value
// that neither path can read comes back as statUnknown, never as zero.
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	"github.com/otiai10/gosseract"
	"gocv.io/x/gocv"
)

// ocrEngine abstracts the text recognizer so the fallback chain can be
// exercised with a canned engine.
type ocrEngine interface {
	ReadDigits(img image.Image) (text string, confidence float64, err error)
	Close() error
}

// tesseractEngine runs gosseract with a digits-only whitelist and
// single-line segmentation. Stat glyphs are small, so the crop is upscaled
// before recognition.
type tesseractEngine struct {
	client *gosseract.Client
}

func newTesseractEngine() (*tesseractEngine, error) {
	client := gosseract.NewClient()
	if err := client.SetWhitelist("0123456789"); err != nil {
		client.Close()
		return nil, fmt.Errorf("ocr whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("ocr segmentation mode: %w", err)
	}
	return &tesseractEngine{client: client}, nil
}

func (t *tesseractEngine) ReadDigits(img image.Image) (string, float64, error) {
	scale := uint(img.Bounds().Dx() * 4)
	up := resize.Resize(scale, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, up); err != nil {
		return "", 0, fmt.Errorf("encode ocr input: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("set ocr input: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", 0, fmt.Errorf("ocr recognize: %w", err)
	}
	if len(boxes) == 0 {
		return "", 0, nil
	}

	var text strings.Builder
	worst := 100.0
	for _, b := range boxes {
		text.WriteString(strings.TrimSpace(b.Word))
		if b.Confidence < worst {
			worst = b.Confidence
		}
	}
	return text.String(), worst / 100.0, nil
}

func (t *tesseractEngine) Close() error {
	return t.client.Close()
}

// DigitBank holds one reference glyph per digit, as normalized grayscale.
type DigitBank struct {
	glyphs map[int]*image.Gray
	width  int
	height int
}

// LoadDigitBank reads 0.png..9.png from dir. Missing digits are tolerated,
// an empty bank is not.
func LoadDigitBank(dir string) (*DigitBank, error) {
	bank := &DigitBank{glyphs: make(map[int]*image.Gray), width: 24, height: 32}
	for d := 0; d <= 9; d++ {
		f, err := os.Open(filepath.Join(dir, strconv.Itoa(d)+".png"))
		if err != nil {
			continue
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			LogWarn("digit bank %d: %v", d, err)
			continue
		}
		bank.glyphs[d] = toGrayNormalized(img, bank.width, bank.height)
	}
	if len(bank.glyphs) == 0 {
		return nil, fmt.Errorf("digit bank %s: no glyphs", dir)
	}
	return bank, nil
}

// newBankFromGlyphs builds a bank directly from grayscale glyphs.
func newBankFromGlyphs(glyphs map[int]*image.Gray, w, h int) *DigitBank {
	return &DigitBank{glyphs: glyphs, width: w, height: h}
}

// matchDigit returns the best digit and its SSIM score for one glyph slice.
func (b *DigitBank) matchDigit(slice *image.Gray) (int, float64) {
	norm := toGrayNormalized(slice, b.width, b.height)
	best, bestScore := statUnknown, -1.0
	for d, ref := range b.glyphs {
		if s := ssim(norm, ref); s > bestScore {
			best, bestScore = d, s
		}
	}
	return best, bestScore
}

// DigitRecognizer reads whole stat values from frame regions. The mutex
// serializes access to the tesseract handle, which is not safe for
// concurrent use; region scans call in from separate goroutines.
type DigitRecognizer struct {
	mu       sync.Mutex
	ocr      ocrEngine
	bank     *DigitBank
	ocrFloor float64
}

func NewDigitRecognizer(ocr ocrEngine, bank *DigitBank, ocrFloor float64) *DigitRecognizer {
	return &DigitRecognizer{ocr: ocr, bank: bank, ocrFloor: ocrFloor}
}

// ReadRegion crops, binarizes and reads one stat region from the frame.
// bankFloor is the acceptance floor for the glyph-bank fallback; callers use
// a looser floor for health than for cost.
func (r *DigitRecognizer) ReadRegion(frame gocv.Mat, region Bounds, bankFloor float64) (int, float64) {
	rect := clampRect(image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H), frame)
	if rect.Empty() {
		return statUnknown, 0
	}
	crop := frame.Region(rect)
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorRGBToGray)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	img, err := bin.ToImage()
	if err != nil {
		LogWarn("stat crop to image: %v", err)
		return statUnknown, 0
	}
	return r.ReadValue(toGray(img), bankFloor)
}

// ReadValue runs the recognition chain on a binarized grayscale glyph
// image. It never reports an unreadable value as zero.
func (r *DigitRecognizer) ReadValue(img *image.Gray, bankFloor float64) (int, float64) {
	if r.ocr != nil {
		r.mu.Lock()
		text, conf, err := r.ocr.ReadDigits(img)
		r.mu.Unlock()
		if err != nil {
			LogDebug("ocr pass failed: %v", err)
		} else if conf >= r.ocrFloor {
			if v, err := strconv.Atoi(text); err == nil {
				return v, conf
			}
		}
	}
	if r.bank == nil {
		return statUnknown, 0
	}
	return r.readFromBank(img, bankFloor)
}

// readFromBank slices the image at blank columns and matches each slice
// against the glyph bank. The value confidence is the worst per-digit
// score; a single digit below the floor rejects the whole value.
func (r *DigitRecognizer) readFromBank(img *image.Gray, floor float64) (int, float64) {
	slices := sliceGlyphs(img)
	if len(slices) == 0 {
		return statUnknown, 0
	}
	value, worst := 0, 1.0
	for _, s := range slices {
		d, score := r.bank.matchDigit(s)
		if d == statUnknown || score < floor {
			return statUnknown, 0
		}
		value = value*10 + d
		if score < worst {
			worst = score
		}
	}
	return value, worst
}

// sliceGlyphs splits a binarized line into per-digit slices at columns with
// no lit pixels.
func sliceGlyphs(img *image.Gray) []*image.Gray {
	b := img.Bounds()
	lit := make([]bool, b.Dx())
	for x := 0; x < b.Dx(); x++ {
		for y := 0; y < b.Dy(); y++ {
			if img.GrayAt(b.Min.X+x, b.Min.Y+y).Y > 127 {
				lit[x] = true
				break
			}
		}
	}

	var slices []*image.Gray
	start := -1
	for x := 0; x <= len(lit); x++ {
		on := x < len(lit) && lit[x]
		switch {
		case on && start < 0:
			start = x
		case !on && start >= 0:
			if x-start >= 3 {
				sub := img.SubImage(image.Rect(b.Min.X+start, b.Min.Y, b.Min.X+x, b.Max.Y)).(*image.Gray)
				slices = append(slices, sub)
			}
			start = -1
		}
	}
	return slices
}

// ssim computes single-window structural similarity between two equal-size
// grayscale images, in [-1, 1].
func ssim(a, b *image.Gray) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return -1
	}
	n := float64(ab.Dx() * ab.Dy())
	if n == 0 {
		return -1
	}

	var sumA, sumB float64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			sumA += float64(a.GrayAt(ab.Min.X+x, ab.Min.Y+y).Y)
			sumB += float64(b.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y)
		}
	}
	muA, muB := sumA/n, sumB/n

	var varA, varB, cov float64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			da := float64(a.GrayAt(ab.Min.X+x, ab.Min.Y+y).Y) - muA
			db := float64(b.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y) - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	const c1, c2 = 6.5025, 58.5225
	return ((2*muA*muB + c1) * (2*cov + c2)) /
		((muA*muA + muB*muB + c1) * (varA + varB + c2))
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, img.At(x, y))
		}
	}
	return g
}

func toGrayNormalized(img image.Image, w, h int) *image.Gray {
	scaled := resize.Resize(uint(w), uint(h), img, resize.NearestNeighbor)
	return toGray(scaled)
}
