// Package main - config.go
//
// Bot configuration. Defaults are layered under an optional YAML file and
// SVBOT_-prefixed environment variables via koanf.
//
// Every empirically tuned constant of the recognition pipeline and the
// decision engine lives here: match-score floors, pixel tolerances, attempt
// ceilings, HSV ranges and screen geometry. They were calibrated against one
// client resolution and should be treated as calibration data, not contracts.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// CardPriority pins a card name to an explicit priority number. Lower
// numbers are handled first.
type CardPriority struct {
	Name     string `koanf:"name"`
	Priority int    `koanf:"priority"`
}

// StormException grants a named storm follower extra direct strikes once the
// round counter reaches MinRound.
type StormException struct {
	Name     string `koanf:"name"`
	MinRound int    `koanf:"min_round"`
	Strikes  int    `koanf:"strikes"`
}

// RegionConfig is a rectangle in client-area pixels.
type RegionConfig struct {
	X int `koanf:"x"`
	Y int `koanf:"y"`
	W int `koanf:"w"`
	H int `koanf:"h"`
}

// Bounds converts the config rectangle to the geometry type.
func (r RegionConfig) Bounds() Bounds {
	return Bounds{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

// GeometryConfig holds the fixed screen anchors the engine clicks when no
// recognized entity supplies one.
type GeometryConfig struct {
	HandRegion      RegionConfig `koanf:"hand_region"`
	HandRegionTask  RegionConfig `koanf:"hand_region_task"` // task/daily mode shifts the hand row
	OurFieldRegion  RegionConfig `koanf:"our_field_region"`
	EnemyRegion     RegionConfig `koanf:"enemy_region"`
	EvolvePanel     RegionConfig `koanf:"evolve_panel"`
	BoardDropX      int          `koanf:"board_drop_x"`
	BoardDropY      int          `koanf:"board_drop_y"`
	EnemyLeaderX    int          `koanf:"enemy_leader_x"`
	EnemyLeaderY    int          `koanf:"enemy_leader_y"`
	ReplaceConfirmX int          `koanf:"replace_confirm_x"`
	ReplaceConfirmY int          `koanf:"replace_confirm_y"`
}

// Config holds bot configuration.
type Config struct {
	LogLevel     string `koanf:"log_level"`
	WindowTitle  string `koanf:"window_title"`
	TemplateDir  string `koanf:"template_dir"`
	CardDir      string `koanf:"card_dir"`      // ranked/normal card library
	CardDirTask  string `koanf:"card_dir_task"` // daily/task card library
	SummaryFile  string `koanf:"summary_file"`
	DebugDumps   bool   `koanf:"debug_dumps"`
	DebugDumpDir string `koanf:"debug_dump_dir"`
	TaskMode     bool   `koanf:"task_mode"` // selects card library and hand geometry

	// Template matching
	MatchThreshold     float64            `koanf:"match_threshold"`
	TemplateThresholds map[string]float64 `koanf:"template_thresholds"` // per-name overrides

	// Board assembly
	DedupTolerance int `koanf:"dedup_tolerance"` // px; same-kind anchors closer than this collapse
	CostPairWindow int `koanf:"cost_pair_window"` // px; max x distance for cost-to-card pairing

	// Digit recognition
	OCRFloor        float64 `koanf:"ocr_floor"`
	HealthBankFloor float64 `koanf:"health_bank_floor"`
	CostBankFloor   float64 `koanf:"cost_bank_floor"`

	// Card identification
	FeatureRatioTest  float64 `koanf:"feature_ratio_test"`
	MinFeatureMatches int     `koanf:"min_feature_matches"`
	FeatureConfFloor  float64 `koanf:"feature_conf_floor"`

	// Decision engine
	ReplaceStrategy   string           `koanf:"replace_strategy"`
	PlayAttemptLimit  int              `koanf:"play_attempt_limit"`
	AttackPassLimit   int              `koanf:"attack_pass_limit"`
	EvolvePoints      int              `koanf:"evolve_points"`
	SuperEvolvePoints int              `koanf:"super_evolve_points"`
	ExtraCostBonus    int              `koanf:"extra_cost_bonus"`
	LateRoundStart    int              `koanf:"late_round_start"`
	PriorityPlays     []CardPriority   `koanf:"priority_plays"`
	EvolvePriority    []CardPriority   `koanf:"evolve_priority"`
	StormExceptions   []StormException `koanf:"storm_exceptions"`

	// Timing
	TickIntervalMS   int `koanf:"tick_interval_ms"`
	FrameCacheMS     int `koanf:"frame_cache_ms"`
	StabilizeMS      int `koanf:"stabilize_ms"`
	StallTimeoutSec  int `koanf:"stall_timeout_sec"`
	ActionRetryLimit int `koanf:"action_retry_limit"`

	Geometry GeometryConfig `koanf:"geometry"`
}

// NewConfig creates the default configuration, tuned against a 1280x720
// client area.
func NewConfig() *Config {
	return &Config{
		LogLevel:     "info",
		WindowTitle:  "Shadowverse",
		TemplateDir:  "assets/templates",
		CardDir:      "assets/cards/ranked",
		CardDirTask:  "assets/cards/task",
		SummaryFile:  "matches.json",
		DebugDumps:   false,
		DebugDumpDir: "debug",

		MatchThreshold: 0.80,
		TemplateThresholds: map[string]float64{
			"evolve_button":       0.70,
			"super_evolve_button": 0.70,
			"end_turn":            0.85,
			"replace_confirm":     0.75,
		},

		DedupTolerance: 40,
		CostPairWindow: 60,

		OCRFloor:        0.60,
		HealthBankFloor: 0.20,
		CostBankFloor:   0.35,

		FeatureRatioTest:  0.75,
		MinFeatureMatches: 4,
		FeatureConfFloor:  0.01,

		ReplaceStrategy:   "curve3",
		PlayAttemptLimit:  3,
		AttackPassLimit:   7,
		EvolvePoints:      2,
		SuperEvolvePoints: 2,
		ExtraCostBonus:    1,
		LateRoundStart:    5,

		TickIntervalMS:   400,
		FrameCacheMS:     120,
		StabilizeMS:      1500,
		StallTimeoutSec:  180,
		ActionRetryLimit: 2,

		Geometry: GeometryConfig{
			HandRegion:      RegionConfig{X: 300, Y: 580, W: 680, H: 140},
			HandRegionTask:  RegionConfig{X: 300, Y: 560, W: 680, H: 160},
			OurFieldRegion:  RegionConfig{X: 180, Y: 360, W: 920, H: 170},
			EnemyRegion:     RegionConfig{X: 180, Y: 150, W: 920, H: 180},
			EvolvePanel:     RegionConfig{X: 420, Y: 250, W: 440, H: 220},
			BoardDropX:      640,
			BoardDropY:      420,
			EnemyLeaderX:    640,
			EnemyLeaderY:    80,
			ReplaceConfirmX: 640,
			ReplaceConfirmY: 520,
		},
	}
}

// HandRegion returns the hand row for the active mode.
func (c *Config) HandRegion() Bounds {
	if c.TaskMode {
		return c.Geometry.HandRegionTask.Bounds()
	}
	return c.Geometry.HandRegion.Bounds()
}

// ThresholdFor returns the match threshold for a named template, falling
// back to the global default.
func (c *Config) ThresholdFor(name string) float64 {
	if t, ok := c.TemplateThresholds[name]; ok {
		return t
	}
	return c.MatchThreshold
}

// LoadConfig builds a Config by layering defaults, an optional YAML file and
// environment variables.
//
// Order of precedence (low -> high):
//  1. defaults (NewConfig)
//  2. file (YAML) if SVBOT_CONFIG is set
//  3. env (prefix SVBOT_)
func LoadConfig() (*Config, error) {
	cfg := NewConfig()

	k := koanf.New(".")

	if path := os.Getenv("SVBOT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// SVBOT_MATCH_THRESHOLD -> match_threshold etc.; underscores preserved
	// to match the koanf tags on the struct.
	envProvider := env.Provider("SVBOT_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "svbot_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TemplateDir == "" {
		return errors.New("template_dir must not be empty")
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold %v out of range (0,1]", c.MatchThreshold)
	}
	if c.DedupTolerance < 0 {
		return errors.New("dedup_tolerance must not be negative")
	}
	if c.PlayAttemptLimit < 1 {
		return errors.New("play_attempt_limit must be at least 1")
	}
	if c.AttackPassLimit < 1 {
		return errors.New("attack_pass_limit must be at least 1")
	}
	return nil
}
