package main

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigDefaults(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := NewConfig()

		Convey("It passes validation", func() {
			So(cfg.validate(), ShouldBeNil)
		})

		Convey("Named templates get their tuned thresholds", func() {
			So(cfg.ThresholdFor("evolve_button"), ShouldEqual, 0.70)
			So(cfg.ThresholdFor("end_turn"), ShouldEqual, 0.85)
		})

		Convey("Unnamed templates fall back to the global floor", func() {
			So(cfg.ThresholdFor("match_result"), ShouldEqual, cfg.MatchThreshold)
		})

		Convey("Task mode shifts the hand row", func() {
			ranked := cfg.HandRegion()
			cfg.TaskMode = true
			task := cfg.HandRegion()
			So(task, ShouldNotResemble, ranked)
		})
	})
}

func TestConfigValidation(t *testing.T) {
	Convey("Broken values are rejected", t, func() {
		cases := []func(*Config){
			func(c *Config) { c.TemplateDir = "" },
			func(c *Config) { c.MatchThreshold = 0 },
			func(c *Config) { c.MatchThreshold = 1.2 },
			func(c *Config) { c.DedupTolerance = -1 },
			func(c *Config) { c.PlayAttemptLimit = 0 },
			func(c *Config) { c.AttackPassLimit = 0 },
		}
		for _, broken := range cases {
			cfg := NewConfig()
			broken(cfg)
			So(cfg.validate(), ShouldNotBeNil)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("Environment variables override defaults", t, func() {
		os.Setenv("SVBOT_REPLACE_STRATEGY", "curve2")
		os.Setenv("SVBOT_TASK_MODE", "true")
		defer os.Unsetenv("SVBOT_REPLACE_STRATEGY")
		defer os.Unsetenv("SVBOT_TASK_MODE")

		cfg, err := LoadConfig()
		So(err, ShouldBeNil)
		So(cfg.ReplaceStrategy, ShouldEqual, "curve2")
		So(cfg.TaskMode, ShouldBeTrue)

		Convey("Untouched values keep their defaults", func() {
			So(cfg.MatchThreshold, ShouldEqual, 0.80)
		})
	})

	Convey("A YAML file layers under the environment", t, func() {
		path := filepath.Join(t.TempDir(), "bot.yaml")
		yaml := []byte("log_level: debug\nstall_timeout_sec: 60\n")
		So(os.WriteFile(path, yaml, 0644), ShouldBeNil)

		os.Setenv("SVBOT_CONFIG", path)
		defer os.Unsetenv("SVBOT_CONFIG")

		cfg, err := LoadConfig()
		So(err, ShouldBeNil)
		So(cfg.LogLevel, ShouldEqual, "debug")
		So(cfg.StallTimeoutSec, ShouldEqual, 60)
	})

	Convey("A missing config file is an error", t, func() {
		os.Setenv("SVBOT_CONFIG", "/nonexistent/bot.yaml")
		defer os.Unsetenv("SVBOT_CONFIG")

		_, err := LoadConfig()
		So(err, ShouldNotBeNil)
	})
}
