package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkMatingSurge         BookmarkType = "mating_surge"
	BookmarkPopulationCrash     BookmarkType = "population_crash"
	BookmarkSchedulerSaturation BookmarkType = "scheduler_saturation"
	BookmarkStablePopulation    BookmarkType = "stable_population"
)

// Bookmark marks a notable moment in a run.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	SimTime     float64      `csv:"sim_time"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("bookmark",
		"type", string(b.Type),
		"sim_time", b.SimTime,
		"description", b.Description,
	)
}

// BookmarkDetector watches window stats for notable changes.
type BookmarkDetector struct {
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	peakPopulation     int
	saturated          bool
	stableWindowsCount int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // stable detection needs four prior windows
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		for _, check := range []func(WindowStats) *Bookmark{
			bd.checkMatingSurge,
			bd.checkPopulationCrash,
			bd.checkStablePopulation,
		} {
			if b := check(stats); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}
	if b := bd.checkSaturation(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	if stats.Population > bd.peakPopulation {
		bd.peakPopulation = stats.Population
	}
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns up to n windows in insertion order, oldest first.
func (bd *BookmarkDetector) recent(n int) []WindowStats {
	var ordered []WindowStats
	if bd.historyFull {
		ordered = append(ordered, bd.history[bd.historyIdx:]...)
		ordered = append(ordered, bd.history[:bd.historyIdx]...)
	} else {
		ordered = bd.history[:bd.historyIdx]
	}
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

func (bd *BookmarkDetector) checkMatingSurge(stats WindowStats) *Bookmark {
	history := bd.recent(bd.historySize)
	if len(history) < 3 {
		return nil
	}
	var total int
	for _, h := range history {
		total += h.MatingsCompleted
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 || stats.MatingsCompleted < 3 {
		return nil
	}
	if float64(stats.MatingsCompleted) > avg*2 {
		return &Bookmark{
			Type:        BookmarkMatingSurge,
			SimTime:     stats.WindowEnd,
			Description: fmt.Sprintf("%d matings completed, %.1fx the average %.1f", stats.MatingsCompleted, float64(stats.MatingsCompleted)/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkPopulationCrash(stats WindowStats) *Bookmark {
	if bd.peakPopulation == 0 {
		return nil
	}
	drop := 1 - float64(stats.Population)/float64(bd.peakPopulation)
	if drop > 0.30 && stats.Population < bd.peakPopulation-10 {
		oldPeak := bd.peakPopulation
		bd.peakPopulation = stats.Population
		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			SimTime:     stats.WindowEnd,
			Description: fmt.Sprintf("Population crashed %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Population),
		}
	}
	return nil
}

// checkSaturation fires once each time the scheduler starts deferring more
// agents than it updates.
func (bd *BookmarkDetector) checkSaturation(stats WindowStats) *Bookmark {
	saturated := stats.AgentsDeferred > stats.AgentsUpdated && stats.AgentsUpdated > 0
	defer func() { bd.saturated = saturated }()
	if !saturated || bd.saturated {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkSchedulerSaturation,
		SimTime:     stats.WindowEnd,
		Description: fmt.Sprintf("Scheduler deferred %d agents while updating %d at %.1fx", stats.AgentsDeferred, stats.AgentsUpdated, stats.TimeMultiplier),
	}
}

func (bd *BookmarkDetector) checkStablePopulation(stats WindowStats) *Bookmark {
	if stats.Population < 10 {
		bd.stableWindowsCount = 0
		return nil
	}
	history := bd.recent(4)
	if len(history) < 4 {
		return nil
	}

	pops := make([]float64, len(history))
	for i, h := range history {
		pops[i] = float64(h.Population)
	}
	mean, variance := stat.PopMeanVariance(pops, nil)
	if mean > 0 && variance/(mean*mean) < 0.04 { // CV below 20%
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 {
		return &Bookmark{
			Type:        BookmarkStablePopulation,
			SimTime:     stats.WindowEnd,
			Description: fmt.Sprintf("Population stable near %.0f over 5+ windows", mean),
		}
	}
	return nil
}
