package main

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCardLibraryFactory(t *testing.T) {
	Convey("Given a factory owned by the session", t, func() {
		cfg := NewConfig()
		cfg.CardDir = filepath.Join(t.TempDir(), "missing")
		cfg.CardDirTask = t.TempDir()

		f := NewCardLibraryFactory(cfg)
		defer f.Close()

		Convey("A missing reference directory is an error", func() {
			_, err := f.Ensure("ranked")
			So(err, ShouldNotBeNil)
		})

		Convey("A directory without references is an error", func() {
			_, err := f.Ensure("task")
			So(err, ShouldNotBeNil)
		})

		Convey("Close on an empty factory is safe to repeat", func() {
			f.Close()
			f.Close()
		})
	})
}
