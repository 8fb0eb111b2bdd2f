// Package store persists telemetry events and fused track snapshots to
// SQLite for post-run analysis. It sits outside the processing chain:
// the pipeline only ever sees the telemetry.Sink interface.
package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/driftline/sitscope/internal/fusion"
	"github.com/driftline/sitscope/internal/telemetry"
)

//go:embed schema.sql
var schemaSQL string

// Recorder writes one session's events and snapshots. It implements
// telemetry.Sink; Emit never returns an error to the pipeline, failed
// writes are logged and dropped.
type Recorder struct {
	*sql.DB
	sessionID string
}

// Open creates or opens a recording database and registers the session.
func Open(path, sessionID, notes string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO sessions (id, notes) VALUES (?, ?)`,
		sessionID, notes,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: register session: %w", err)
	}
	telemetry.Opsf("store: recording session %s to %s", sessionID, path)
	return &Recorder{DB: db, sessionID: sessionID}, nil
}

// Emit persists one telemetry event.
func (r *Recorder) Emit(ev telemetry.Event) {
	payload := "{}"
	if ev.Payload != nil {
		if raw, err := json.Marshal(ev.Payload); err == nil {
			payload = string(raw)
		}
	}
	_, err := r.Exec(
		`INSERT INTO events (session_id, subsystem, event_type, truth_state, reason, payload, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.sessionID, ev.Subsystem, ev.EventType, ev.TruthState, ev.Reason,
		payload, float64(ev.TS.UnixNano())/1e9,
	)
	if err != nil {
		telemetry.Diagf("store: drop event %s/%s: %v", ev.Subsystem, ev.EventType, err)
	}
}

// RecordTracks snapshots the fused set for one frame.
func (r *Recorder) RecordTracks(frame int64, tracks fusion.FusedTrackSet) error {
	if len(tracks) == 0 {
		return nil
	}
	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("store: begin snapshot: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO track_snapshots (session_id, frame, fused_id, x, y, vx, vy, trust, flags, class, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: prepare snapshot: %w", err)
	}
	defer stmt.Close()

	for _, ft := range tracks {
		var vx, vy interface{}
		if ft.Vel != nil {
			vx, vy = ft.Vel.X, ft.Vel.Y
		}
		if _, err := stmt.Exec(
			r.sessionID, frame, ft.FusedID, ft.Pos.X, ft.Pos.Y, vx, vy,
			ft.Trust, strings.Join(ft.Flags, ","), ft.Class,
			float64(ft.LastUpdate.UnixNano())/1e9,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: insert snapshot %s: %w", ft.FusedID, err)
		}
	}
	return tx.Commit()
}

// EventCount reports how many events of a type this session recorded.
func (r *Recorder) EventCount(eventType string) (int, error) {
	var n int
	err := r.QueryRow(
		`SELECT COUNT(*) FROM events WHERE session_id = ? AND event_type = ?`,
		r.sessionID, eventType,
	).Scan(&n)
	return n, err
}

// SnapshotCount reports how many track snapshots this session recorded.
func (r *Recorder) SnapshotCount() (int, error) {
	var n int
	err := r.QueryRow(
		`SELECT COUNT(*) FROM track_snapshots WHERE session_id = ?`,
		r.sessionID,
	).Scan(&n)
	return n, err
}

// Close stamps the session end time and closes the database.
func (r *Recorder) Close() error {
	if _, err := r.Exec(
		`UPDATE sessions SET end_timestamp = UNIXEPOCH('subsec') WHERE id = ?`,
		r.sessionID,
	); err != nil {
		r.DB.Close()
		return fmt.Errorf("store: end session: %w", err)
	}
	return r.DB.Close()
}
