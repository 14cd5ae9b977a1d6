package sqlite

import (
	"context"
	"fmt"

	"github.com/forgecredit/forgecredit/internal/model"
	"github.com/forgecredit/forgecredit/internal/repository"
)

// AppendTip archives one settled tip. Records are immutable.
func (db *DB) AppendTip(ctx context.Context, t *model.Tip) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tips (id, sender, recipient, amount, issue_id, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(t.ID),
		t.Sender,
		t.Recipient,
		t.Amount,
		int64(t.IssueID),
		t.Message,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting tip: %w", err)
	}
	return nil
}

// RecentTips returns archived tips most-recent-first.
func (db *DB) RecentTips(ctx context.Context, page repository.Page) ([]model.Tip, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, sender, recipient, amount, issue_id, message, created_at
		 FROM tips ORDER BY id DESC LIMIT ? OFFSET ?`,
		pageLimit(page), page.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying tips: %w", err)
	}
	defer rows.Close()

	tips := []model.Tip{}
	for rows.Next() {
		var t model.Tip
		var id, issueID int64
		if err := rows.Scan(&id, &t.Sender, &t.Recipient, &t.Amount, &issueID, &t.Message, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tip: %w", err)
		}
		t.ID = uint64(id)
		t.IssueID = uint64(issueID)
		tips = append(tips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tips: %w", err)
	}
	return tips, nil
}

// CountTips returns the number of archived tips.
func (db *DB) CountTips(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tips`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting tips: %w", err)
	}
	return n, nil
}
