package repo

import (
	"context"
	"database/sql"
	"fmt"

	"earlyadopters/internal/domain"
)

// InsertAcceptance appends to the accepted set and returns the acceptance sequence.
func (r Repo) InsertAcceptance(ctx context.Context, tx *sql.Tx, a domain.Acceptance) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO acceptances(project_id,activity_index,completed_activity_id,author,accepted_at) VALUES (?,?,?,?,?)`,
		a.ProjectID, a.ActivityIndex, a.CompletedActivityID, a.Author, a.AcceptedAt)
	if err != nil {
		return 0, fmt.Errorf("insert acceptance: %w", err)
	}
	return res.LastInsertId()
}

// IsAccepted looks up the exact (project, activity, completion) tuple.
func (r Repo) IsAccepted(ctx context.Context, tx *sql.Tx, projectID int64, index int, completionID string) (bool, error) {
	return r.exists(ctx, tx, `SELECT 1 FROM acceptances WHERE project_id=? AND activity_index=? AND completed_activity_id=? LIMIT 1`, projectID, index, completionID)
}

// IsCompletionAccepted reports whether the completion id was accepted under
// any activity of the project.
func (r Repo) IsCompletionAccepted(ctx context.Context, tx *sql.Tx, projectID int64, completionID string) (bool, error) {
	return r.exists(ctx, tx, `SELECT 1 FROM acceptances WHERE project_id=? AND completed_activity_id=? LIMIT 1`, projectID, completionID)
}

func (r Repo) IsAuthorAccepted(ctx context.Context, tx *sql.Tx, projectID int64, author string) (bool, error) {
	return r.exists(ctx, tx, `SELECT 1 FROM acceptances WHERE project_id=? AND author=? LIMIT 1`, projectID, author)
}

// ListAcceptances returns acceptances in acceptance order. A nil index lists
// the whole project.
func (r Repo) ListAcceptances(ctx context.Context, tx *sql.Tx, projectID int64, index *int) ([]domain.Acceptance, error) {
	query := `SELECT seq,project_id,activity_index,completed_activity_id,author,accepted_at FROM acceptances WHERE project_id=?`
	args := []any{projectID}
	if index != nil {
		query += ` AND activity_index=?`
		args = append(args, *index)
	}
	query += ` ORDER BY seq ASC`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Acceptance{}
	for rows.Next() {
		var a domain.Acceptance
		if err := rows.Scan(&a.Seq, &a.ProjectID, &a.ActivityIndex, &a.CompletedActivityID, &a.Author, &a.AcceptedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// AcceptedAuthors returns each distinct accepted author once, ordered by
// their first acceptance.
func (r Repo) AcceptedAuthors(ctx context.Context, tx *sql.Tx, projectID int64) ([]string, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT author FROM acceptances WHERE project_id=? GROUP BY author ORDER BY MIN(seq) ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) exists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}
