package main

import (
	"image"
	"image/color"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeOCR returns a fixed reading for every call.
type fakeOCR struct {
	text string
	conf float64
	err  error
}

func (f *fakeOCR) ReadDigits(image.Image) (string, float64, error) {
	return f.text, f.conf, f.err
}

func (f *fakeOCR) Close() error { return nil }

// makeGlyph draws a deterministic dense pattern unique to each digit. Every
// column carries lit pixels so the slicer treats it as one glyph.
func makeGlyph(d, w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x*7+y*13+d*31)%97 < 60 || y == h/2 {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return g
}

func testBank() *DigitBank {
	glyphs := make(map[int]*image.Gray)
	for d := 0; d <= 9; d++ {
		glyphs[d] = makeGlyph(d, 24, 32)
	}
	return newBankFromGlyphs(glyphs, 24, 32)
}

func TestReadValue(t *testing.T) {
	bank := testBank()

	Convey("A confident OCR reading is taken as-is", t, func() {
		r := NewDigitRecognizer(&fakeOCR{text: "7", conf: 0.9}, bank, 0.6)
		v, conf := r.ReadValue(makeGlyph(3, 24, 32), 0.2)
		So(v, ShouldEqual, 7)
		So(conf, ShouldEqual, 0.9)
	})

	Convey("OCR below the floor falls back to the glyph bank", t, func() {
		r := NewDigitRecognizer(&fakeOCR{text: "7", conf: 0.3}, bank, 0.6)
		v, conf := r.ReadValue(makeGlyph(4, 24, 32), 0.2)
		So(v, ShouldEqual, 4)
		So(conf, ShouldBeGreaterThan, 0.9)
	})

	Convey("Non-numeric OCR output falls back too", t, func() {
		r := NewDigitRecognizer(&fakeOCR{text: "7b", conf: 0.9}, bank, 0.6)
		v, _ := r.ReadValue(makeGlyph(2, 24, 32), 0.2)
		So(v, ShouldEqual, 2)
	})

	Convey("With neither path available the sentinel comes back", t, func() {
		r := NewDigitRecognizer(&fakeOCR{text: "", conf: 0.1}, nil, 0.6)
		v, conf := r.ReadValue(makeGlyph(5, 24, 32), 0.2)
		So(v, ShouldEqual, statUnknown)
		So(conf, ShouldEqual, 0)

		Convey("And the sentinel is not zero", func() {
			So(v, ShouldNotEqual, 0)
		})
	})

	Convey("Reading the same image twice gives the same answer", t, func() {
		r := NewDigitRecognizer(&fakeOCR{text: "", conf: 0}, bank, 0.6)
		img := makeGlyph(8, 24, 32)
		v1, c1 := r.ReadValue(img, 0.2)
		v2, c2 := r.ReadValue(img, 0.2)
		So(v1, ShouldEqual, v2)
		So(c1, ShouldEqual, c2)
	})

	Convey("A strict bank floor rejects weak matches", t, func() {
		r := NewDigitRecognizer(nil, bank, 0.6)
		// A flat image resembles no glyph well.
		flat := image.NewGray(image.Rect(0, 0, 24, 32))
		for x := 0; x < 24; x++ {
			flat.SetGray(x, 16, color.Gray{Y: 255})
		}
		v, _ := r.ReadValue(flat, 0.99)
		So(v, ShouldEqual, statUnknown)
	})
}

func TestSliceGlyphs(t *testing.T) {
	Convey("Blank columns split a line into digit slices", t, func() {
		img := image.NewGray(image.Rect(0, 0, 40, 10))
		for y := 0; y < 10; y++ {
			for x := 2; x < 12; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
			for x := 20; x < 32; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
		So(sliceGlyphs(img), ShouldHaveLength, 2)
	})

	Convey("An empty image yields no slices", t, func() {
		So(sliceGlyphs(image.NewGray(image.Rect(0, 0, 20, 10))), ShouldBeEmpty)
	})

	Convey("Slimmer-than-noise runs are dropped", t, func() {
		img := image.NewGray(image.Rect(0, 0, 20, 10))
		img.SetGray(5, 5, color.Gray{Y: 255})
		So(sliceGlyphs(img), ShouldBeEmpty)
	})
}

func TestSSIM(t *testing.T) {
	Convey("Identical images score one", t, func() {
		g := makeGlyph(6, 24, 32)
		So(ssim(g, g), ShouldAlmostEqual, 1.0, 0.001)
	})

	Convey("Different digit patterns score lower than identity", t, func() {
		a, b := makeGlyph(1, 24, 32), makeGlyph(9, 24, 32)
		So(ssim(a, b), ShouldBeLessThan, ssim(a, a))
	})

	Convey("Mismatched dimensions are invalid", t, func() {
		a := makeGlyph(1, 24, 32)
		b := makeGlyph(1, 12, 32)
		So(ssim(a, b), ShouldEqual, -1)
	})
}
