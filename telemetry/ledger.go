package telemetry

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/swarm/config"
)

// Ledger records runs, their window stats and mating outcomes in SQLite.
type Ledger struct {
	conn  *sqlx.DB
	runID uuid.UUID
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID             string         `db:"id"`
	Seed           int64          `db:"seed"`
	StartedAt      string         `db:"started_at"`
	EndedAt        sql.NullString `db:"ended_at"`
	TimeMultiplier float64        `db:"time_multiplier"`
	InitialAgents  int            `db:"initial_agents"`
	FinalAgents    int            `db:"final_agents"`
	Frames         int64          `db:"frames"`
	SimTime        float64        `db:"sim_time"`
	ConfigYAML     string         `db:"config_yaml"`
}

type ledgerWindow struct {
	ID    int64  `db:"id"`
	RunID string `db:"run_id"`
	WindowStats
}

type ledgerMating struct {
	ID    int64  `db:"id"`
	RunID string `db:"run_id"`
	MatingRecord
}

// OpenLedger opens or creates a ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	conn.SetMaxOpenConns(1)

	l := &Ledger{conn: conn}
	if err := l.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.conn.Close()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		time_multiplier REAL NOT NULL,
		initial_agents INTEGER NOT NULL,
		final_agents INTEGER NOT NULL DEFAULT 0,
		frames INTEGER NOT NULL DEFAULT 0,
		sim_time REAL NOT NULL DEFAULT 0,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS window_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		window_start REAL NOT NULL,
		window_end REAL NOT NULL,
		frame INTEGER NOT NULL,
		time_multiplier REAL NOT NULL,
		population INTEGER NOT NULL,
		food INTEGER NOT NULL,
		active_matings INTEGER NOT NULL,
		wander INTEGER NOT NULL,
		forage INTEGER NOT NULL,
		seek_mate INTEGER NOT NULL,
		mate INTEGER NOT NULL,
		births INTEGER NOT NULL,
		dropped_offspring INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		starvations INTEGER NOT NULL,
		old_age_deaths INTEGER NOT NULL,
		food_eaten INTEGER NOT NULL,
		matings_started INTEGER NOT NULL,
		matings_completed INTEGER NOT NULL,
		matings_cancelled INTEGER NOT NULL,
		fast_path_matings INTEGER NOT NULL,
		mating_rejections INTEGER NOT NULL,
		behavior_changes INTEGER NOT NULL,
		agents_updated INTEGER NOT NULL,
		agents_deferred INTEGER NOT NULL,
		update_failures INTEGER NOT NULL,
		energy_mean REAL NOT NULL,
		energy_std REAL NOT NULL,
		energy_p10 REAL NOT NULL,
		energy_p50 REAL NOT NULL,
		energy_p90 REAL NOT NULL,
		lifespan_mean REAL NOT NULL,
		max_generation INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mating_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		process INTEGER NOT NULL,
		event TEXT NOT NULL,
		initiator INTEGER NOT NULL,
		partner INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		elapsed REAL NOT NULL,
		offspring INTEGER NOT NULL,
		fast_path INTEGER NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_window_stats_run ON window_stats(run_id);
	CREATE INDEX IF NOT EXISTS idx_mating_outcomes_run ON mating_outcomes(run_id);
	`
	_, err := l.conn.Exec(schema)
	return err
}

// BeginRun inserts a run row and makes it the target of later writes.
func (l *Ledger) BeginRun(seed int64, cfg *config.Config, started time.Time) (uuid.UUID, error) {
	data, err := cfg.YAML()
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err = l.conn.Exec(`INSERT INTO runs
		(id, seed, started_at, time_multiplier, initial_agents, config_yaml)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), seed, started.UTC().Format(time.RFC3339Nano),
		cfg.Scheduler.TimeMultiplier, cfg.Population.Initial, string(data),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	l.runID = id
	slog.Debug("ledger_run_started", "run_id", id)
	return id, nil
}

// RunID returns the current run id, or uuid.Nil before BeginRun.
func (l *Ledger) RunID() uuid.UUID {
	return l.runID
}

// RecordWindow stores one window of stats for the current run.
func (l *Ledger) RecordWindow(stats WindowStats) error {
	if l.runID == uuid.Nil {
		return fmt.Errorf("record window: no run started")
	}
	_, err := l.conn.NamedExec(`INSERT INTO window_stats
		(run_id, window_start, window_end, frame, time_multiplier, population, food,
		 active_matings, wander, forage, seek_mate, mate, births, dropped_offspring,
		 deaths, starvations, old_age_deaths, food_eaten, matings_started,
		 matings_completed, matings_cancelled, fast_path_matings, mating_rejections,
		 behavior_changes, agents_updated, agents_deferred, update_failures,
		 energy_mean, energy_std, energy_p10, energy_p50, energy_p90,
		 lifespan_mean, max_generation)
		VALUES
		(:run_id, :window_start, :window_end, :frame, :time_multiplier, :population, :food,
		 :active_matings, :wander, :forage, :seek_mate, :mate, :births, :dropped_offspring,
		 :deaths, :starvations, :old_age_deaths, :food_eaten, :matings_started,
		 :matings_completed, :matings_cancelled, :fast_path_matings, :mating_rejections,
		 :behavior_changes, :agents_updated, :agents_deferred, :update_failures,
		 :energy_mean, :energy_std, :energy_p10, :energy_p50, :energy_p90,
		 :lifespan_mean, :max_generation)`,
		ledgerWindow{RunID: l.runID.String(), WindowStats: stats},
	)
	if err != nil {
		return fmt.Errorf("insert window: %w", err)
	}
	return nil
}

// RecordMatings stores finished mating processes for the current run.
// Started events are skipped; their outcome row carries the same process id.
func (l *Ledger) RecordMatings(records []MatingRecord) error {
	if l.runID == uuid.Nil {
		return fmt.Errorf("record matings: no run started")
	}
	tx, err := l.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO mating_outcomes
		(run_id, process, event, initiator, partner, sim_time, elapsed, offspring, fast_path, reason)
		VALUES (:run_id, :process, :event, :initiator, :partner, :sim_time, :elapsed, :offspring, :fast_path, :reason)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if !r.Finished() {
			continue
		}
		if _, err := stmt.Exec(ledgerMating{RunID: l.runID.String(), MatingRecord: r}); err != nil {
			return fmt.Errorf("insert mating outcome: %w", err)
		}
	}
	return tx.Commit()
}

// EndRun stamps the current run with its final counters.
func (l *Ledger) EndRun(ended time.Time, frames int64, simTime float64, finalAgents int) error {
	if l.runID == uuid.Nil {
		return nil
	}
	_, err := l.conn.Exec(`UPDATE runs SET ended_at = ?, frames = ?, sim_time = ?, final_agents = ?
		WHERE id = ?`,
		ended.UTC().Format(time.RFC3339Nano), frames, simTime, finalAgents, l.runID.String(),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Runs returns all recorded runs, newest first.
func (l *Ledger) Runs() ([]RunRecord, error) {
	var runs []RunRecord
	err := l.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC")
	return runs, err
}

// Windows returns the window stats of a run in time order.
func (l *Ledger) Windows(runID uuid.UUID) ([]WindowStats, error) {
	var rows []ledgerWindow
	err := l.conn.Select(&rows, "SELECT * FROM window_stats WHERE run_id = ? ORDER BY id", runID.String())
	if err != nil {
		return nil, err
	}
	out := make([]WindowStats, len(rows))
	for i, r := range rows {
		out[i] = r.WindowStats
	}
	return out, nil
}

// MatingOutcomes counts a run's finished processes by event name.
func (l *Ledger) MatingOutcomes(runID uuid.UUID) (map[string]int, error) {
	var rows []struct {
		Event string `db:"event"`
		N     int    `db:"n"`
	}
	err := l.conn.Select(&rows,
		"SELECT event, COUNT(*) AS n FROM mating_outcomes WHERE run_id = ? GROUP BY event",
		runID.String(),
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Event] = r.N
	}
	return out, nil
}
