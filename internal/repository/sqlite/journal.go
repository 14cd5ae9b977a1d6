package sqlite

import (
	"context"
	"fmt"

	"github.com/forgecredit/forgecredit/internal/model"
	"github.com/forgecredit/forgecredit/internal/repository"
)

// Compile-time interface checks.
var (
	_ repository.EventJournal = (*DB)(nil)
	_ repository.TipArchive   = (*DB)(nil)
)

// Append writes one event. Events are never updated or deleted; the
// implicit rowid gives the commit order.
func (db *DB) Append(ctx context.Context, e *model.Event) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (id, type, actor, subject, repo_id, issue_id, application_id, tip_id, amount, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Type,
		e.Actor,
		e.Subject,
		int64(e.RepoID),
		int64(e.IssueID),
		int64(e.ApplicationID),
		int64(e.TipID),
		e.Amount,
		e.At,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting event: %w", err)
	}
	return nil
}

// Recent returns events most-recent-first.
func (db *DB) Recent(ctx context.Context, page repository.Page) ([]model.Event, error) {
	return db.queryEvents(ctx,
		`SELECT id, type, actor, subject, repo_id, issue_id, application_id, tip_id, amount, at
		 FROM events ORDER BY rowid DESC LIMIT ? OFFSET ?`,
		pageLimit(page), page.Offset)
}

// ByType returns events of one type, most-recent-first.
func (db *DB) ByType(ctx context.Context, eventType string, page repository.Page) ([]model.Event, error) {
	return db.queryEvents(ctx,
		`SELECT id, type, actor, subject, repo_id, issue_id, application_id, tip_id, amount, at
		 FROM events WHERE type = ? ORDER BY rowid DESC LIMIT ? OFFSET ?`,
		eventType, pageLimit(page), page.Offset)
}

// Count returns the number of journaled events.
func (db *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting events: %w", err)
	}
	return n, nil
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		var repoID, issueID, appID, tipID int64
		if err := rows.Scan(&e.ID, &e.Type, &e.Actor, &e.Subject, &repoID, &issueID, &appID, &tipID, &e.Amount, &e.At); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event: %w", err)
		}
		e.RepoID = uint64(repoID)
		e.IssueID = uint64(issueID)
		e.ApplicationID = uint64(appID)
		e.TipID = uint64(tipID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}
	return events, nil
}

// pageLimit maps "no limit" onto SQLite's -1 sentinel.
func pageLimit(page repository.Page) int {
	if page.Limit <= 0 {
		return -1
	}
	return page.Limit
}
