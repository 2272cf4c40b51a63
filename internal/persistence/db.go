// Package persistence provides SQLite-based run history storage.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/surnamesim/internal/agents"
	"github.com/talgya/surnamesim/internal/engine"
)

// DB wraps a SQLite connection for run history.
type DB struct {
	conn *sqlx.DB
}

// Run is one recorded simulation run.
type Run struct {
	ID         string     `db:"id"`
	Seed       int64      `db:"seed"`
	Config     string     `db:"config"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	YearsRun   int        `db:"years_run"`
	Extinct    bool       `db:"extinct"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		config TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		years_run INTEGER NOT NULL DEFAULT 0,
		extinct INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS stats_history (
		run_id TEXT NOT NULL REFERENCES runs(id),
		year INTEGER NOT NULL,
		population INTEGER NOT NULL,
		mean_age REAL NOT NULL,
		lineages INTEGER NOT NULL,
		largest_lineage INTEGER NOT NULL,
		new_people INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		partnered_fraction REAL NOT NULL,
		new_people_delta INTEGER NOT NULL,
		deaths_delta INTEGER NOT NULL,
		net_per_year REAL NOT NULL,
		mean_death_age REAL NOT NULL,
		max_death_age INTEGER NOT NULL,
		extinct INTEGER NOT NULL,
		final INTEGER NOT NULL,
		PRIMARY KEY (run_id, year)
	);

	CREATE TABLE IF NOT EXISTS agents (
		run_id TEXT NOT NULL REFERENCES runs(id),
		id INTEGER NOT NULL,
		lineage INTEGER NOT NULL,
		original_lineage INTEGER NOT NULL,
		sex INTEGER NOT NULL,
		birth_year INTEGER NOT NULL,
		age INTEGER NOT NULL,
		max_age INTEGER NOT NULL,
		children INTEGER NOT NULL,
		max_children INTEGER NOT NULL,
		partner_id INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_agents_lineage ON agents(run_id, lineage);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun records a new run and returns its id.
func (db *DB) BeginRun(seed int64, config string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, config, started_at) VALUES (?, ?, ?, ?)",
		id, seed, config, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run with its outcome.
func (db *DB) FinishRun(runID string, res engine.RunResult) error {
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, years_run = ?, extinct = ? WHERE id = ?",
		time.Now().UTC(), res.YearsRun, res.Extinct, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT id, seed, config, started_at, finished_at, years_run, extinct FROM runs ORDER BY started_at DESC",
	)
	return runs, err
}

// historyRow is a snapshot tagged with its run.
type historyRow struct {
	RunID string `db:"run_id"`
	engine.Snapshot
}

// SaveSnapshot appends one report to the run's stats history.
func (db *DB) SaveSnapshot(ctx context.Context, runID string, snap engine.Snapshot) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO stats_history
		(run_id, year, population, mean_age, lineages, largest_lineage, new_people, deaths,
		 partnered_fraction, new_people_delta, deaths_delta, net_per_year,
		 mean_death_age, max_death_age, extinct, final)
		VALUES (:run_id, :year, :population, :mean_age, :lineages, :largest_lineage, :new_people, :deaths,
		 :partnered_fraction, :new_people_delta, :deaths_delta, :net_per_year,
		 :mean_death_age, :max_death_age, :extinct, :final)`,
		historyRow{RunID: runID, Snapshot: snap},
	)
	if err != nil {
		return fmt.Errorf("insert snapshot year %d: %w", snap.Year, err)
	}
	return nil
}

// History returns a run's stats history in year order.
func (db *DB) History(runID string) ([]engine.Snapshot, error) {
	var snaps []engine.Snapshot
	err := db.conn.Select(&snaps, `SELECT year, population, mean_age, lineages, largest_lineage,
		new_people, deaths, partnered_fraction, new_people_delta, deaths_delta, net_per_year,
		mean_death_age, max_death_age, extinct, final
		FROM stats_history WHERE run_id = ? ORDER BY year`, runID)
	if err != nil {
		return nil, fmt.Errorf("select history for %s: %w", runID, err)
	}
	return snaps, nil
}

// SaveAgents writes the run's population (full replace for that run).
func (db *DB) SaveAgents(runID string, agentList []*agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(run_id, id, lineage, original_lineage, sex, birth_year, age, max_age,
		 children, max_children, partner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		_, err := stmt.Exec(
			runID, a.ID, a.Lineage, a.OriginalLineage, a.Sex, a.BirthYear,
			a.Age, a.MaxAge, a.Children, a.MaxChildren, a.Partner,
		)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	slog.Debug("population saved", "run", runID, "agents", len(agentList))
	return tx.Commit()
}

// LineageCount is the number of saved agents carrying a lineage tag.
type LineageCount struct {
	Lineage uint64 `db:"lineage"`
	Members int    `db:"members"`
}

// TopLineages returns the limit largest lineages of a run's saved population.
func (db *DB) TopLineages(runID string, limit int) ([]LineageCount, error) {
	var counts []LineageCount
	err := db.conn.Select(&counts, `SELECT lineage, COUNT(*) AS members FROM agents
		WHERE run_id = ? GROUP BY lineage ORDER BY members DESC, lineage LIMIT ?`,
		runID, limit,
	)
	return counts, err
}

// HistoryReporter stores every snapshot it receives under one run.
type HistoryReporter struct {
	db    *DB
	runID string
}

// NewHistoryReporter binds a reporter to runID.
func NewHistoryReporter(db *DB, runID string) *HistoryReporter {
	return &HistoryReporter{db: db, runID: runID}
}

// RunID returns the run the reporter writes to.
func (r *HistoryReporter) RunID() string {
	return r.runID
}

// Report implements engine.Reporter.
func (r *HistoryReporter) Report(ctx context.Context, snap engine.Snapshot) error {
	return r.db.SaveSnapshot(ctx, r.runID, snap)
}
