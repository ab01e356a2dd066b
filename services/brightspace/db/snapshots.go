package db

import (
	"context"
	"database/sql"
	"notify-backend/services/brightspace/scraper"
	"time"

	"github.com/google/uuid"
)

// SnapshotStore keeps a history of past scrape results so the UI can
// show what changed between refreshes. The scrape pipeline itself
// never reads from here, the session blob stays its only durable
// state.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(database *sql.DB) SnapshotStore {
	return SnapshotStore{db: database}
}

type Snapshot struct {
	Id          string               `json:"id"`
	Time        time.Time            `json:"time"`
	User        string               `json:"user"`
	Assignments []scraper.Assignment `json:"assignments"`
}

// Push records one scrape result and returns its snapshot id.
func (s SnapshotStore) Push(ctx context.Context, at time.Time, result scraper.Result) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	user := ""
	if result.User.Name != nil {
		user = *result.User.Name
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scrape (id, time, user) VALUES (?, ?, ?)`,
		id, at.Unix(), user,
	)
	if err != nil {
		return "", err
	}

	for i, a := range result.Assignments {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scrape_assignment (scrape_id, position, course, title, due)
			 VALUES (?, ?, ?, ?, ?)`,
			id, i, a.Course, a.Title, a.Due,
		)
		if err != nil {
			return "", err
		}
	}

	return id, tx.Commit()
}

// History returns the most recent snapshots, newest first, with their
// assignments in recorded order.
func (s SnapshotStore) History(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, user FROM scrape ORDER BY time DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var unix int64
		err = rows.Scan(&snap.Id, &unix, &snap.User)
		if err != nil {
			return nil, err
		}
		snap.Time = time.Unix(unix, 0)
		snapshots = append(snapshots, snap)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}

	for i := range snapshots {
		snapshots[i].Assignments, err = s.assignments(ctx, snapshots[i].Id)
		if err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}

func (s SnapshotStore) assignments(ctx context.Context, scrapeId string) ([]scraper.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course, title, due FROM scrape_assignment
		 WHERE scrape_id = ? ORDER BY position`,
		scrapeId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scraper.Assignment
	for rows.Next() {
		var a scraper.Assignment
		err = rows.Scan(&a.Course, &a.Title, &a.Due)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
