package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/buildmaster/internal/log"
	"github.com/mattjoyce/buildmaster/internal/supervisor"
)

const writeTimeout = 5 * time.Second

// Deployment is one row of builder history.
type Deployment struct {
	ID           int64      `json:"id"`
	Builder      string     `json:"builder"`
	GenerationID string     `json:"generation_id,omitempty"`
	PID          int        `json:"pid,omitempty"`
	Fingerprint  string     `json:"fingerprint,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// History records builder generations in the deployments table. It is a
// supervisor.Observer; write failures are logged and otherwise ignored.
type History struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ supervisor.Observer = (*History)(nil)

func NewHistory(db *sql.DB) *History {
	return &History{db: db, logger: log.WithComponent("history")}
}

func (h *History) Spawned(info supervisor.GenerationInfo) {
	h.exec("record spawn", `INSERT INTO deployments (builder, generation_id, pid, fingerprint, started_at)
VALUES (?, ?, ?, ?, ?);`,
		info.Builder, info.ID, info.PID, info.Fingerprint, formatTime(info.StartedAt))
}

func (h *History) Stopped(info supervisor.GenerationInfo, reason string) {
	h.exec("record stop", `UPDATE deployments
SET stopped_at = COALESCE(stopped_at, ?), reason = COALESCE(reason, ?)
WHERE generation_id = ?;`,
		formatTime(time.Now()), reason, info.ID)
}

// Exited keeps the stop time and reason of a signalled generation and fills
// them in for one that ended on its own.
func (h *History) Exited(info supervisor.GenerationInfo, exit supervisor.Exit) {
	h.exec("record exit", `UPDATE deployments
SET exit_code = ?, stopped_at = COALESCE(stopped_at, ?), reason = COALESCE(reason, 'exited')
WHERE generation_id = ?;`,
		exit.Code, formatTime(exit.At), info.ID)
}

func (h *History) Failed(name string, err error) {
	now := formatTime(time.Now())
	h.exec("record failure", `INSERT INTO deployments (builder, started_at, stopped_at, reason)
VALUES (?, ?, ?, ?);`,
		name, now, now, "failed: "+err.Error())
}

// List returns the most recent deployments of builder, newest first.
func (h *History) List(ctx context.Context, builder string, limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, `SELECT id, builder, generation_id, pid, fingerprint, started_at, stopped_at, exit_code, reason
FROM deployments
WHERE builder = ?
ORDER BY id DESC
LIMIT ?;`, builder, limit)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		var (
			d                          Deployment
			genID, fingerprint, reason sql.NullString
			pid, exitCode              sql.NullInt64
			startedAt                  string
			stoppedAt                  sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Builder, &genID, &pid, &fingerprint, &startedAt, &stoppedAt, &exitCode, &reason); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		d.GenerationID = genID.String
		d.PID = int(pid.Int64)
		d.Fingerprint = fingerprint.String
		d.Reason = reason.String
		if d.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if stoppedAt.Valid {
			t, err := parseTime(stoppedAt.String)
			if err != nil {
				return nil, err
			}
			d.StoppedAt = &t
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			d.ExitCode = &code
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return out, nil
}

func (h *History) exec(op, query string, args ...any) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		h.logger.Warn("history write failed", "op", op, "error", err)
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
