package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
)

func newTestRoot(level string) *cobra.Command {
	root := &cobra.Command{Use: "swarm"}
	root.PersistentFlags().String("log-level", level, "")
	run := newRunCmd()
	root.AddCommand(run)
	// Inherited persistent flags are merged during parsing.
	if err := run.ParseFlags(nil); err != nil {
		panic(err)
	}
	return run
}

func TestSetupLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := setupLogger(newTestRoot(tt.level))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unknown level")
				}
				return
			}
			if err != nil {
				t.Fatalf("setupLogger: %v", err)
			}
			if !logger.Enabled(context.Background(), tt.want) {
				t.Errorf("level %v not enabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
				t.Errorf("level below %v should be disabled", tt.want)
			}
		})
	}
}

func TestRunFlags(t *testing.T) {
	cmd := newRunCmd()
	for _, name := range []string{
		"seed", "max-ticks", "time-multiplier", "stats-window", "output-dir",
		"ledger", "log-stats", "realtime", "parallel", "dump-agents",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("run is missing --%s", name)
		}
	}
}
