// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World        WorldConfig        `yaml:"world"`
	Spatial      SpatialConfig      `yaml:"spatial"`
	Population   PopulationConfig   `yaml:"population"`
	Energy       EnergyConfig       `yaml:"energy"`
	Behavior     BehaviorConfig     `yaml:"behavior"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Mating       MatingConfig       `yaml:"mating"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Food         FoodConfig         `yaml:"food"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the world bounds. Positions live in [0,Width) x [0,Height).
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// SpatialConfig holds spatial index parameters.
type SpatialConfig struct {
	CellSize float64 `yaml:"cell_size"`
}

// PopulationConfig holds population management parameters.
type PopulationConfig struct {
	Initial int `yaml:"initial"`
	Max     int `yaml:"max"` // offspring beyond this are dropped
}

// EnergyConfig holds metabolism parameters.
type EnergyConfig struct {
	MaxEnergy      float64 `yaml:"max_energy"`
	InitialPercent float64 `yaml:"initial_percent"`
	DrainPerSecond float64 `yaml:"drain_per_second"`
	MoveCost       float64 `yaml:"move_cost"`
}

// BehaviorConfig holds the state machine thresholds and movement speeds.
type BehaviorConfig struct {
	HungerThreshold       float64 `yaml:"hunger_threshold"`
	MatingEnergyThreshold float64 `yaml:"mating_energy_threshold"`
	DetectionRange        float64 `yaml:"detection_range"`
	WanderSpeed           float64 `yaml:"wander_speed"`
	ForageSpeed           float64 `yaml:"forage_speed"`
	SeekSpeed             float64 `yaml:"seek_speed"`
	EatRadius             float64 `yaml:"eat_radius"`
	HeadingJitter         float64 `yaml:"heading_jitter"`
}

// ReproductionConfig holds maturity and cooldown parameters.
type ReproductionConfig struct {
	MaturityAge            float64 `yaml:"maturity_age"`
	MaxAge                 float64 `yaml:"max_age"`
	Cooldown               float64 `yaml:"cooldown"`
	OffspringEnergyPercent float64 `yaml:"offspring_energy_percent"`
}

// MatingConfig holds mating transaction parameters.
type MatingConfig struct {
	Duration          float64        `yaml:"duration"`
	Proximity         float64        `yaml:"proximity"`
	ValidationSlack   float64        `yaml:"validation_slack"`
	EnergyCost        float64        `yaml:"energy_cost"`
	MinEnergyDuring   float64        `yaml:"min_energy_during"`
	OffspringVariance float64        `yaml:"offspring_variance"`
	CheckInterval     float64        `yaml:"check_interval"`
	MinCheckInterval  float64        `yaml:"min_check_interval"`
	ExtremeMultiplier float64        `yaml:"extreme_multiplier"`
	MaxOffspring      int            `yaml:"max_offspring"`
	FastPath          FastPathConfig `yaml:"fast_path"`
}

// FastPathConfig controls the abbreviated single-tick mating transaction
// used at extreme time multipliers.
type FastPathConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Multiplier float64 `yaml:"multiplier"`
	Proximity  float64 `yaml:"proximity"`
}

// SchedulerConfig holds adaptive scheduler parameters.
type SchedulerConfig struct {
	TimeMultiplier       float64         `yaml:"time_multiplier"`
	BaseCadence          float64         `yaml:"base_cadence"`
	MinInterval          float64         `yaml:"min_interval"`
	MaxInterval          float64         `yaml:"max_interval"`
	BaseAgentsPerFrame   float64         `yaml:"base_agents_per_frame"`
	MaxAgentsPerFrame    int             `yaml:"max_agents_per_frame"`
	FullCycleSeconds     float64         `yaml:"full_cycle_seconds"`
	TargetFPS            float64         `yaml:"target_fps"`
	FPSPolicy            FPSPolicyConfig `yaml:"fps_policy"`
	ParallelDecisions    bool            `yaml:"parallel_decisions"`
	ParallelThreshold    int             `yaml:"parallel_threshold"`
	MaxDecisionsPerFrame int             `yaml:"max_decisions_per_frame"`
}

// FPSPolicyConfig shapes how measured frame rate scales the frame budget.
type FPSPolicyConfig struct {
	MinScale       float64 `yaml:"min_scale"`
	MaxScale       float64 `yaml:"max_scale"`
	ShrinkExponent float64 `yaml:"shrink_exponent"`
	GrowRate       float64 `yaml:"grow_rate"`
}

// FoodConfig holds edible placement parameters.
type FoodConfig struct {
	Count            int     `yaml:"count"`
	Energy           float64 `yaml:"energy"`
	RegrowDelay      float64 `yaml:"regrow_delay"`
	NoiseScale       float64 `yaml:"noise_scale"`
	Octaves          int     `yaml:"octaves"`
	DensityThreshold float64 `yaml:"density_threshold"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"`
	PerfWindow  int     `yaml:"perf_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	WorldW32     float32 // World.Width as float32
	WorldH32     float32 // World.Height as float32
	CellSize32   float32 // Spatial.CellSize as float32
	FrameSeconds float64 // 1 / Scheduler.TargetFPS (real seconds per frame)
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns a fresh copy of the embedded default configuration.
func Defaults() *Config {
	cfg, err := parseDefaults()
	if err != nil {
		// The embedded file is part of the binary; failing to parse it is a build defect.
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	cfg.computeDerived()
	return cfg
}

func parseDefaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := parseDefaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	def, _ := parseDefaults()
	cfg.sanitize(def)
	cfg.computeDerived()

	return cfg, nil
}

// sanitize replaces non-positive values of required tunables with their defaults.
func (c *Config) sanitize(def *Config) {
	positive(&c.World.Width, def.World.Width)
	positive(&c.World.Height, def.World.Height)
	positive(&c.Spatial.CellSize, def.Spatial.CellSize)
	positive(&c.Energy.MaxEnergy, def.Energy.MaxEnergy)
	positive(&c.Behavior.DetectionRange, def.Behavior.DetectionRange)
	positive(&c.Mating.Duration, def.Mating.Duration)
	positive(&c.Mating.Proximity, def.Mating.Proximity)
	positive(&c.Mating.ValidationSlack, def.Mating.ValidationSlack)
	positive(&c.Mating.CheckInterval, def.Mating.CheckInterval)
	positive(&c.Mating.MinCheckInterval, def.Mating.MinCheckInterval)
	positive(&c.Mating.ExtremeMultiplier, def.Mating.ExtremeMultiplier)
	positive(&c.Scheduler.TimeMultiplier, def.Scheduler.TimeMultiplier)
	positive(&c.Scheduler.BaseCadence, def.Scheduler.BaseCadence)
	positive(&c.Scheduler.MinInterval, def.Scheduler.MinInterval)
	positive(&c.Scheduler.MaxInterval, def.Scheduler.MaxInterval)
	positive(&c.Scheduler.BaseAgentsPerFrame, def.Scheduler.BaseAgentsPerFrame)
	positive(&c.Scheduler.FullCycleSeconds, def.Scheduler.FullCycleSeconds)
	positive(&c.Scheduler.TargetFPS, def.Scheduler.TargetFPS)
	positive(&c.Telemetry.StatsWindow, def.Telemetry.StatsWindow)

	if c.Mating.MaxOffspring < 1 {
		c.Mating.MaxOffspring = def.Mating.MaxOffspring
	}
	if c.Scheduler.MaxAgentsPerFrame < 1 {
		c.Scheduler.MaxAgentsPerFrame = def.Scheduler.MaxAgentsPerFrame
	}
	if c.Scheduler.MaxDecisionsPerFrame < 1 {
		c.Scheduler.MaxDecisionsPerFrame = def.Scheduler.MaxDecisionsPerFrame
	}
	if c.Telemetry.PerfWindow < 1 {
		c.Telemetry.PerfWindow = def.Telemetry.PerfWindow
	}
	if c.Scheduler.MinInterval > c.Scheduler.MaxInterval {
		c.Scheduler.MinInterval, c.Scheduler.MaxInterval = c.Scheduler.MaxInterval, c.Scheduler.MinInterval
	}
}

func positive(v *float64, fallback float64) {
	if *v <= 0 {
		*v = fallback
	}
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.WorldW32 = float32(c.World.Width)
	c.Derived.WorldH32 = float32(c.World.Height)
	c.Derived.CellSize32 = float32(c.Spatial.CellSize)
	c.Derived.FrameSeconds = 1.0 / c.Scheduler.TargetFPS
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// YAML returns the configuration encoded as YAML.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}
