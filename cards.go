// Package main - cards.go
//
// Card identity. Hand cards and followers are identified against a
// per-mode reference library of card art with SIFT keypoints and a
// brute-force matcher under Lowe's ratio test. Battle and task screens
// use different art scales, so each mode carries its own library, built
// once and cached.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// cardRef is one reference card: its name and precomputed descriptors.
type cardRef struct {
	name        string
	descriptors gocv.Mat
	keypoints   int
}

// CardLibrary identifies card crops against one mode's reference set.
// Identify holds the mutex for its whole run: the SIFT and matcher handles
// are native state shared by the concurrent region scans.
type CardLibrary struct {
	mu      sync.Mutex
	mode    string
	refs    []cardRef
	sift    gocv.SIFT
	matcher gocv.BFMatcher

	ratioTest  float64
	minMatches int
	confFloor  float64
}

// CardLibraryFactory builds and caches one library per mode. The session
// owns exactly one factory and closes it on teardown; nothing hangs off
// package state.
type CardLibraryFactory struct {
	mu    sync.Mutex
	cfg   *Config
	cache map[string]*CardLibrary
}

func NewCardLibraryFactory(cfg *Config) *CardLibraryFactory {
	return &CardLibraryFactory{cfg: cfg, cache: make(map[string]*CardLibrary)}
}

// Ensure returns the library for mode, building it on first use from the
// mode's reference directory.
func (f *CardLibraryFactory) Ensure(mode string) (*CardLibrary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lib, ok := f.cache[mode]; ok {
		return lib, nil
	}
	lib, err := newCardLibrary(mode, f.cfg)
	if err != nil {
		return nil, err
	}
	f.cache[mode] = lib
	return lib, nil
}

// Close drops every cached library.
func (f *CardLibraryFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for mode, lib := range f.cache {
		lib.Close()
		delete(f.cache, mode)
	}
}

func newCardLibrary(mode string, cfg *Config) (*CardLibrary, error) {
	lib := &CardLibrary{
		mode:       mode,
		sift:       gocv.NewSIFT(),
		matcher:    gocv.NewBFMatcher(),
		ratioTest:  cfg.FeatureRatioTest,
		minMatches: cfg.MinFeatureMatches,
		confFloor:  cfg.FeatureConfFloor,
	}

	dir := cfg.CardDir
	if mode == "task" {
		dir = cfg.CardDirTask
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		lib.Close()
		return nil, fmt.Errorf("card library %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		img := gocv.IMRead(filepath.Join(dir, e.Name()), gocv.IMReadGrayScale)
		if img.Empty() {
			LogWarn("card reference %s unreadable, skipped", e.Name())
			continue
		}
		mask := gocv.NewMat()
		kps, des := lib.sift.DetectAndCompute(img, mask)
		mask.Close()
		img.Close()
		if len(kps) == 0 {
			des.Close()
			LogWarn("card reference %s has no features, skipped", e.Name())
			continue
		}
		lib.refs = append(lib.refs, cardRef{
			name:        strings.TrimSuffix(e.Name(), ".png"),
			descriptors: des,
			keypoints:   len(kps),
		})
	}
	if len(lib.refs) == 0 {
		lib.Close()
		return nil, fmt.Errorf("card library %s: no references", dir)
	}
	LogInfo("card library %s loaded, %d references", mode, len(lib.refs))
	return lib, nil
}

// Identify names the card in crop. An empty name with zero confidence means
// no reference cleared the floor; callers keep such entities with their
// board-visible stats.
func (lib *CardLibrary) Identify(crop gocv.Mat) (string, float64) {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	if crop.Channels() > 1 {
		gocv.CvtColor(crop, &gray, gocv.ColorRGBToGray)
	} else {
		crop.CopyTo(&gray)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	kps, des := lib.sift.DetectAndCompute(gray, mask)
	defer des.Close()
	if len(kps) < lib.minMatches {
		return "", 0
	}

	bestName, bestConf := "", 0.0
	for _, ref := range lib.refs {
		conf := lib.score(des, len(kps), ref)
		if conf > bestConf {
			bestName, bestConf = ref.name, conf
		}
	}
	if bestConf < lib.confFloor {
		return "", 0
	}
	return bestName, bestConf
}

// score runs 2-NN matching against one reference and folds survivor count
// and mean distance into a single confidence.
func (lib *CardLibrary) score(des gocv.Mat, queryKps int, ref cardRef) float64 {
	matches := lib.matcher.KnnMatch(des, ref.descriptors, 2)

	var good int
	var distSum float64
	for _, pair := range matches {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < lib.ratioTest*pair[1].Distance {
			good++
			distSum += pair[0].Distance
		}
	}
	if good < lib.minMatches {
		return 0
	}

	denom := queryKps
	if ref.keypoints < denom {
		denom = ref.keypoints
	}
	countRatio := float64(good) / float64(denom)

	meanDist := distSum / float64(good)
	// SIFT descriptor distances rarely exceed 512 for decent matches.
	distScore := 1 - meanDist/512
	if distScore < 0 {
		distScore = 0
	}
	return countRatio * distScore
}

// Close releases the native resources behind the library.
func (lib *CardLibrary) Close() {
	for _, ref := range lib.refs {
		ref.descriptors.Close()
	}
	lib.refs = nil
	lib.sift.Close()
	lib.matcher.Close()
}
