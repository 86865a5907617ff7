// Package main - templates.go
//
// Reference-bitmap storage. Templates are loaded once from a fixed on-disk
// layout at session start and are immutable afterwards, so lookups need no
// locking. The store is constructed explicitly and injected; nothing here is
// process-global.
//
// On-disk layout: <template_dir>/<name>.png. The match threshold comes from
// the config's per-name override table, and a static gate table attaches the
// color-space acceptance test to the few templates that need one to tell
// visually similar monochrome shapes apart.
package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// ColorGate is the extra acceptance test applied to a template hit. Exactly
// one of the two checks is used: MinValue accepts when the matched region's
// mean HSV value channel reaches the floor; Range accepts when the region's
// mean falls inside the full HSV range.
type ColorGate struct {
	MinValue float64
	Range    *HSVRange
}

// Template is a named reference bitmap with its tuned threshold.
type Template struct {
	Name      string
	Mat       gocv.Mat
	Threshold float64
	Gate      *ColorGate
	Width     int
	Height    int
}

// colorGates maps template names to their gates. The evolve controls are
// near-identical glyphs distinguished mostly by their glow color, so both
// carry gates; everything else matches on shape alone.
var colorGates = map[string]ColorGate{
	"evolve_button":       {Range: &HSVRange{MinH: 100, MaxH: 130, MinS: 80, MaxS: 255, MinV: 120, MaxV: 255}},
	"super_evolve_button": {Range: &HSVRange{MinH: 140, MaxH: 170, MinS: 80, MaxS: 255, MinV: 120, MaxV: 255}},
	"end_turn":            {MinValue: 120},
}

// TemplateStore holds every loaded template by name.
type TemplateStore struct {
	byName map[string]*Template
}

// LoadTemplates reads every PNG under dir into a store. A missing directory
// is an error; a single unreadable file is skipped with a warning so one bad
// asset does not take the session down.
func LoadTemplates(dir string, cfg *Config) (*TemplateStore, error) {
	store := &TemplateStore{byName: make(map[string]*Template)}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".png") {
			return nil
		}

		mat := gocv.IMRead(path, gocv.IMReadColor)
		if mat.Empty() {
			LogWarn("skipping unreadable template %s", path)
			return nil
		}

		name := strings.TrimSuffix(d.Name(), ".png")
		tpl := &Template{
			Name:      name,
			Mat:       mat,
			Threshold: cfg.ThresholdFor(name),
			Width:     mat.Cols(),
			Height:    mat.Rows(),
		}
		if gate, ok := colorGates[name]; ok {
			g := gate
			tpl.Gate = &g
		}
		store.byName[name] = tpl
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load templates from %s: %w", dir, err)
	}
	if len(store.byName) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}

	LogInfo("loaded %d templates from %s", len(store.byName), dir)
	return store, nil
}

// Get looks a template up by name.
func (s *TemplateStore) Get(name string) (*Template, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Names returns every loaded template name; used by debug dumps and tests.
func (s *TemplateStore) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	return names
}

// Close releases every template Mat. The store is unusable afterwards.
func (s *TemplateStore) Close() {
	for _, t := range s.byName {
		t.Mat.Close()
	}
	s.byName = nil
}
