package out

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tabtrail/internal/modules/storage/dto"
	storageout "tabtrail/internal/modules/storage/port/out"
)

// SQLiteSessionIndex projects session summaries for listing without
// decoding the whole record.
type SQLiteSessionIndex struct {
	db *sql.DB
}

var _ storageout.SessionIndex = (*SQLiteSessionIndex)(nil)

func NewSQLiteSessionIndex(dbPath string) (*SQLiteSessionIndex, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	idx := &SQLiteSessionIndex{db: db}
	if err := idx.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *SQLiteSessionIndex) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  started_at INTEGER NOT NULL,
  ended_at INTEGER NOT NULL,
  end_reason TEXT,
  active INTEGER NOT NULL,
  total_active_ms INTEGER NOT NULL,
  navigation_count INTEGER NOT NULL,
  nodes_count INTEGER NOT NULL,
  dominant_category TEXT,
  top_url TEXT,
  distraction_average REAL NOT NULL,
  distraction_label TEXT,
  drift_label TEXT,
  archived INTEGER NOT NULL,
  deleted INTEGER NOT NULL,
  favorite INTEGER NOT NULL,
  summary TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// ReplaceAll swaps the projection for rows in one transaction.
func (s *SQLiteSessionIndex) ReplaceAll(ctx context.Context, rows []dto.SessionRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}
	const stmt = `
INSERT INTO sessions (id, started_at, ended_at, end_reason, active, total_active_ms, navigation_count, nodes_count,
  dominant_category, top_url, distraction_average, distraction_label, drift_label, archived, deleted, favorite, summary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	insert, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("prepare session insert: %w", err)
	}
	defer insert.Close()
	for _, row := range rows {
		_, err := insert.ExecContext(ctx,
			row.ID,
			row.StartedAt,
			row.EndedAt,
			row.EndReason,
			boolInt(row.Active),
			row.TotalActiveMs,
			row.NavigationCount,
			row.NodesCount,
			row.DominantCategory,
			row.TopURL,
			row.DistractionAverage,
			row.DistractionLabel,
			row.DriftLabel,
			boolInt(row.Archived),
			boolInt(row.Deleted),
			boolInt(row.Favorite),
			row.Summary,
		)
		if err != nil {
			return fmt.Errorf("insert session %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

func (s *SQLiteSessionIndex) List(ctx context.Context, query dto.SessionQuery) ([]dto.SessionRow, error) {
	where := []string{}
	if !query.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	if !query.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if query.FavoritesOnly {
		where = append(where, "favorite = 1")
	}
	sqlText := `
SELECT id, started_at, ended_at, end_reason, active, total_active_ms, navigation_count, nodes_count,
  dominant_category, top_url, distraction_average, distraction_label, drift_label, archived, deleted, favorite, summary
FROM sessions`
	if len(where) > 0 {
		sqlText += "\nWHERE " + strings.Join(where, " AND ")
	}
	sqlText += "\nORDER BY started_at DESC, id ASC"
	args := []any{}
	if query.Limit > 0 {
		sqlText += "\nLIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []dto.SessionRow{}
	for rows.Next() {
		var (
			row                                   dto.SessionRow
			endReason, category, topURL           sql.NullString
			distractionLabel, driftLabel, summary sql.NullString
			active, archived, deleted, favorite   int
		)
		if err := rows.Scan(
			&row.ID,
			&row.StartedAt,
			&row.EndedAt,
			&endReason,
			&active,
			&row.TotalActiveMs,
			&row.NavigationCount,
			&row.NodesCount,
			&category,
			&topURL,
			&row.DistractionAverage,
			&distractionLabel,
			&driftLabel,
			&archived,
			&deleted,
			&favorite,
			&summary,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		row.EndReason = endReason.String
		row.DominantCategory = category.String
		row.TopURL = topURL.String
		row.DistractionLabel = distractionLabel.String
		row.DriftLabel = driftLabel.String
		row.Summary = summary.String
		row.Active = active == 1
		row.Archived = archived == 1
		row.Deleted = deleted == 1
		row.Favorite = favorite == 1
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteSessionIndex) Close() error {
	return s.db.Close()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
