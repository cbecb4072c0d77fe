// Package storage provides SQLite-based persistence for finished matches.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/quaternion/internal/core"
	"github.com/vovakirdan/quaternion/internal/room"
	"github.com/vovakirdan/quaternion/internal/scheduler"
	"github.com/vovakirdan/quaternion/internal/sim"
)

// Store manages the SQLite database connection for match results.
type Store struct {
	db *sql.DB
}

// MatchResult is one stored endgame.
type MatchResult struct {
	ID             int64
	MatchID        string
	Seed           int64
	Mode           core.Mode
	MapType        string
	Difficulty     string
	Outcome        sim.Outcome
	Track          sim.Track
	Winner         core.PlayerID // Empty when nobody won
	Loser          core.PlayerID
	ClaimID        string
	Reason         string
	Tick           uint64
	Elapsed        float64 // Simulated seconds
	FinalResources map[core.PlayerID]core.Resources
	CreatedAt      time.Time
}

// TelemetryRecord is the last scheduler telemetry of a match.
type TelemetryRecord struct {
	MatchID   string
	Telemetry scheduler.Telemetry
	CreatedAt time.Time
}

// TrackStats aggregates results that ended on one track.
type TrackStats struct {
	Track      sim.Track
	Matches    int
	AvgElapsed float64
	LastPlayed time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS match_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL UNIQUE,
			seed INTEGER NOT NULL,
			mode TEXT NOT NULL,
			map_type TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			outcome TEXT NOT NULL,
			track TEXT NOT NULL,
			winner TEXT,
			loser TEXT,
			claim_id TEXT,
			reason TEXT NOT NULL DEFAULT '',
			tick INTEGER NOT NULL,
			elapsed REAL NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_match_results_track ON match_results(track);

		CREATE TABLE IF NOT EXISTS match_players (
			match_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			ore REAL NOT NULL,
			energy REAL NOT NULL,
			biomass REAL NOT NULL,
			data REAL NOT NULL,
			PRIMARY KEY (match_id, player_id)
		);
		CREATE INDEX IF NOT EXISTS idx_match_players_player ON match_players(player_id);

		CREATE TABLE IF NOT EXISTS match_telemetry (
			match_id TEXT PRIMARY KEY,
			fps REAL NOT NULL,
			ticks INTEGER NOT NULL,
			frames INTEGER NOT NULL,
			dropped_ticks INTEGER NOT NULL,
			clamped_frames INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			quality REAL NOT NULL,
			tick_time_ns INTEGER NOT NULL,
			render_time_ns INTEGER NOT NULL,
			state TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveMatchResult records how a match ended, with every player's final
// resources. Returns the ID of the inserted record.
func (s *Store) SaveMatchResult(matchID string, cfg core.MatchConfig, sc sim.EndgameScenario) (int64, error) {
	if matchID == "" {
		return 0, errors.New("storage: match id is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO match_results
		 (match_id, seed, mode, map_type, difficulty, outcome, track, winner, loser, claim_id, reason, tick, elapsed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		matchID,
		cfg.Seed,
		string(cfg.Mode),
		cfg.MapType,
		cfg.AIDifficulty,
		string(sc.Outcome),
		string(sc.Track),
		nullString(string(sc.Winner)),
		nullString(string(sc.Loser)),
		nullString(sc.ClaimID),
		sc.Reason,
		int64(sc.Tick),
		sc.Elapsed,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot save match result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	for pid, r := range sc.FinalResources {
		if _, err := tx.Exec(
			`INSERT INTO match_players (match_id, player_id, ore, energy, biomass, data)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			matchID, string(pid), r.Ore, r.Energy, r.Biomass, r.Data,
		); err != nil {
			return 0, fmt.Errorf("storage: cannot save final resources of %s: %w", pid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: cannot commit match result: %w", err)
	}
	return id, nil
}

const resultColumns = `id, match_id, seed, mode, map_type, difficulty, outcome, track,
	winner, loser, claim_id, reason, tick, elapsed, created_at`

// MatchByID retrieves a result by its match ID. Returns nil if the match
// was never stored.
func (s *Store) MatchByID(matchID string) (*MatchResult, error) {
	results, err := s.queryResults(
		`SELECT `+resultColumns+` FROM match_results WHERE match_id = ?`,
		matchID,
	)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// RecentResults retrieves the most recent results, newest first.
func (s *Store) RecentResults(limit int) ([]MatchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryResults(
		`SELECT `+resultColumns+` FROM match_results
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
}

// ResultsByTrack retrieves the most recent results that ended on track.
func (s *Store) ResultsByTrack(track sim.Track, limit int) ([]MatchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryResults(
		`SELECT `+resultColumns+` FROM match_results
		 WHERE track = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		string(track), limit,
	)
}

// PlayerHistory retrieves the most recent matches a player took part in.
func (s *Store) PlayerHistory(playerID core.PlayerID, limit int) ([]MatchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryResults(
		`SELECT `+prefixed("r.", resultColumns)+` FROM match_results r
		 JOIN match_players p ON p.match_id = r.match_id
		 WHERE p.player_id = ?
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT ?`,
		string(playerID), limit,
	)
}

func (s *Store) queryResults(query string, args ...any) ([]MatchResult, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query match results: %w", err)
	}

	var results []MatchResult
	for rows.Next() {
		var (
			r                      MatchResult
			mode, outcome, track   string
			winner, loser, claimID sql.NullString
			tick                   int64
			createdAt              any
		)
		if err := rows.Scan(
			&r.ID,
			&r.MatchID,
			&r.Seed,
			&mode,
			&r.MapType,
			&r.Difficulty,
			&outcome,
			&track,
			&winner,
			&loser,
			&claimID,
			&r.Reason,
			&tick,
			&r.Elapsed,
			&createdAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		r.Mode = core.Mode(mode)
		r.Outcome = sim.Outcome(outcome)
		r.Track = sim.Track(track)
		r.Winner = core.PlayerID(winner.String)
		r.Loser = core.PlayerID(loser.String)
		r.ClaimID = claimID.String
		r.Tick = uint64(tick)
		r.CreatedAt = parseTime(createdAt)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	rows.Close()

	for i := range results {
		final, err := s.finalResources(results[i].MatchID)
		if err != nil {
			return nil, err
		}
		results[i].FinalResources = final
	}
	return results, nil
}

func (s *Store) finalResources(matchID string) (map[core.PlayerID]core.Resources, error) {
	rows, err := s.db.Query(
		`SELECT player_id, ore, energy, biomass, data FROM match_players WHERE match_id = ?`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query final resources: %w", err)
	}
	defer rows.Close()

	out := make(map[core.PlayerID]core.Resources)
	for rows.Next() {
		var pid string
		var r core.Resources
		if err := rows.Scan(&pid, &r.Ore, &r.Energy, &r.Biomass, &r.Data); err != nil {
			return nil, fmt.Errorf("storage: cannot scan final resources: %w", err)
		}
		out[core.PlayerID(pid)] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// SaveTelemetry stores the scheduler telemetry of a match, replacing any
// earlier record for it.
func (s *Store) SaveTelemetry(matchID string, tel scheduler.Telemetry) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO match_telemetry
		 (match_id, fps, ticks, frames, dropped_ticks, clamped_frames, errors, quality, tick_time_ns, render_time_ns, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		matchID,
		tel.FPS,
		int64(tel.Ticks),
		int64(tel.Frames),
		int64(tel.DroppedTicks),
		int64(tel.ClampedFrames),
		int64(tel.Errors),
		tel.Quality,
		int64(tel.TickTime),
		int64(tel.RenderTime),
		tel.State,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save telemetry: %w", err)
	}
	return nil
}

// Ensure Store can persist room results.
var _ room.ResultSaver = (*Store)(nil)

// TelemetryFor retrieves the stored telemetry of a match. Returns nil if
// none was saved.
func (s *Store) TelemetryFor(matchID string) (*TelemetryRecord, error) {
	var (
		rec                                   TelemetryRecord
		ticks, frames, dropped, clamped, errs int64
		tickNs, renderNs                      int64
		createdAt                             any
	)
	err := s.db.QueryRow(
		`SELECT match_id, fps, ticks, frames, dropped_ticks, clamped_frames, errors, quality,
		        tick_time_ns, render_time_ns, state, created_at
		 FROM match_telemetry
		 WHERE match_id = ?`,
		matchID,
	).Scan(
		&rec.MatchID,
		&rec.Telemetry.FPS,
		&ticks,
		&frames,
		&dropped,
		&clamped,
		&errs,
		&rec.Telemetry.Quality,
		&tickNs,
		&renderNs,
		&rec.Telemetry.State,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query telemetry: %w", err)
	}

	rec.Telemetry.Ticks = uint64(ticks)
	rec.Telemetry.Frames = uint64(frames)
	rec.Telemetry.DroppedTicks = uint64(dropped)
	rec.Telemetry.ClampedFrames = uint64(clamped)
	rec.Telemetry.Errors = uint64(errs)
	rec.Telemetry.TickTime = time.Duration(tickNs)
	rec.Telemetry.RenderTime = time.Duration(renderNs)
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

// AllTrackStats aggregates stored results per ending track, ordered by
// track name.
func (s *Store) AllTrackStats() ([]TrackStats, error) {
	rows, err := s.db.Query(
		`SELECT track, COUNT(*), AVG(elapsed), MAX(created_at)
		 FROM match_results
		 GROUP BY track`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get track stats: %w", err)
	}
	defer rows.Close()

	var stats []TrackStats
	for rows.Next() {
		var st TrackStats
		var track string
		var lastPlayed any
		if err := rows.Scan(&track, &st.Matches, &st.AvgElapsed, &lastPlayed); err != nil {
			return nil, fmt.Errorf("storage: cannot scan stats row: %w", err)
		}
		st.Track = sim.Track(track)
		st.LastPlayed = parseTime(lastPlayed)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Track < stats[j].Track })
	return stats, nil
}

// parseTime handles the driver returning either time.Time or text.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
