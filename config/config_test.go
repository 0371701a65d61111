package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}

	if cfg.Spatial.CellSize <= 0 {
		t.Errorf("cell size should default to a positive value, got %v", cfg.Spatial.CellSize)
	}
	if cfg.Scheduler.MinInterval > cfg.Scheduler.MaxInterval {
		t.Errorf("min interval %v > max interval %v", cfg.Scheduler.MinInterval, cfg.Scheduler.MaxInterval)
	}
	if cfg.Derived.FrameSeconds <= 0 {
		t.Errorf("derived frame seconds should be positive, got %v", cfg.Derived.FrameSeconds)
	}
	if cfg.Derived.WorldW32 != float32(cfg.World.Width) {
		t.Errorf("derived world width mismatch: %v vs %v", cfg.Derived.WorldW32, cfg.World.Width)
	}
}

func TestLoadOverridesOnlyPresentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := []byte("mating:\n  duration: 7\nscheduler:\n  time_multiplier: 25\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	def := Defaults()

	if cfg.Mating.Duration != 7 {
		t.Errorf("mating duration = %v, want 7", cfg.Mating.Duration)
	}
	if cfg.Scheduler.TimeMultiplier != 25 {
		t.Errorf("time multiplier = %v, want 25", cfg.Scheduler.TimeMultiplier)
	}
	if cfg.Mating.Proximity != def.Mating.Proximity {
		t.Errorf("proximity should keep default %v, got %v", def.Mating.Proximity, cfg.Mating.Proximity)
	}
}

func TestLoadSanitizesNonPositiveValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := []byte("spatial:\n  cell_size: 0\nscheduler:\n  target_fps: -5\n  min_interval: 2\n  max_interval: 0.5\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	def := Defaults()

	if cfg.Spatial.CellSize != def.Spatial.CellSize {
		t.Errorf("cell size = %v, want default %v", cfg.Spatial.CellSize, def.Spatial.CellSize)
	}
	if cfg.Scheduler.TargetFPS != def.Scheduler.TargetFPS {
		t.Errorf("target fps = %v, want default %v", cfg.Scheduler.TargetFPS, def.Scheduler.TargetFPS)
	}
	if cfg.Scheduler.MinInterval != 0.5 || cfg.Scheduler.MaxInterval != 2 {
		t.Errorf("inverted interval bounds should be swapped, got [%v, %v]",
			cfg.Scheduler.MinInterval, cfg.Scheduler.MaxInterval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Mating.MaxOffspring = 5

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Mating.MaxOffspring != 5 {
		t.Errorf("max offspring = %d, want 5", loaded.Mating.MaxOffspring)
	}
}
