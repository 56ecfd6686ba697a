// Package recorder persists controller ticks to SQLite for replay analysis.
//
// Each run is a session keyed by a random UUID. Every tick stores its
// ActuationEcho as a CBOR blob and every emitted frame as a row, so a
// session can be summarised or diffed after the fact.
package recorder

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"adas-actuation-core/control"
)

//go:embed schema.sql
var schemaSQL string

var ErrUnknownSession = errors.New("recorder: unknown session")

type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

type Session struct {
	ID          string
	Name        string
	Calibration string
	StartedAt   time.Time
	EndedAt     *time.Time
}

// TickRecord is one stored tick.
type TickRecord struct {
	Tick uint64
	Now  time.Duration
	Echo control.ActuationEcho
}

type FrameRecord struct {
	Tick     uint64
	Name     string
	ID       uint32
	Data     []byte
	Checksum *byte
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply recorder schema: %w", err)
	}
	return &Recorder{db: db, now: time.Now}, nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

// StartSession registers a new run and returns its id.
func (r *Recorder) StartSession(ctx context.Context, name, calibration string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, calibration, started_at) VALUES (?, ?, ?, ?)`,
		id, name, calibration, r.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

func (r *Recorder) EndSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`, r.now().UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end session %s: %w", sessionID, ErrUnknownSession)
	}
	return nil
}

// Record stores one tick and its frames atomically.
func (r *Recorder) Record(ctx context.Context, sessionID string, now time.Duration, out control.TickOutput) error {
	echo, err := cbor.Marshal(out.Echo)
	if err != nil {
		return fmt.Errorf("encode echo: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record tick %d: %w", out.Tick, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ticks (session_id, tick, now_ns, diagnostics, echo) VALUES (?, ?, ?, ?, ?)`,
		sessionID, int64(out.Tick), int64(now), int64(out.Echo.Diagnostics), echo)
	if err != nil {
		return fmt.Errorf("record tick %d: %w", out.Tick, err)
	}

	for seq, f := range out.Frames {
		var sum any
		if f.Checksum != nil {
			sum = int64(*f.Checksum)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO frames (session_id, tick, seq, name, can_id, data, checksum) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, int64(out.Tick), seq, f.Name, int64(f.ID), f.Data, sum)
		if err != nil {
			return fmt.Errorf("record frame %s at tick %d: %w", f.Name, out.Tick, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record tick %d: %w", out.Tick, err)
	}
	return nil
}

// Sessions lists sessions, newest first.
func (r *Recorder) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, calibration, started_at, ended_at FROM sessions ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Calibration, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		if ended.Valid {
			t := time.Unix(0, ended.Int64)
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Ticks returns the stored ticks of a session in order.
func (r *Recorder) Ticks(ctx context.Context, sessionID string) ([]TickRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick, now_ns, echo FROM ticks WHERE session_id = ? ORDER BY tick`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load ticks: %w", err)
	}
	defer rows.Close()

	var out []TickRecord
	for rows.Next() {
		var (
			tick, now int64
			blob      []byte
			rec       TickRecord
		)
		if err := rows.Scan(&tick, &now, &blob); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		if err := cbor.Unmarshal(blob, &rec.Echo); err != nil {
			return nil, fmt.Errorf("decode echo at tick %d: %w", tick, err)
		}
		rec.Tick = uint64(tick)
		rec.Now = time.Duration(now)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Frames returns the stored frames of a session. An empty name selects all.
func (r *Recorder) Frames(ctx context.Context, sessionID, name string) ([]FrameRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick, name, can_id, data, checksum FROM frames
		 WHERE session_id = ? AND (? = '' OR name = ?)
		 ORDER BY tick, seq`, sessionID, name, name)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRecord
	for rows.Next() {
		var (
			f     FrameRecord
			tick  int64
			id    int64
			check sql.NullInt64
		)
		if err := rows.Scan(&tick, &f.Name, &id, &f.Data, &check); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Tick = uint64(tick)
		f.ID = uint32(id)
		if check.Valid {
			b := byte(check.Int64)
			f.Checksum = &b
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
